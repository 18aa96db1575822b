package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/teamtrack/apiserver/types"
)

// AdminRepository handles persistence for the admin identity class.
type AdminRepository struct {
	db *sql.DB
}

func NewAdminRepository(db *sql.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) GetByEmail(ctx context.Context, email string) (types.Admin, error) {
	const query = `SELECT id, name, email, password_hash, created_at FROM admins WHERE email = $1`
	var admin types.Admin
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&admin.ID,
		&admin.Name,
		&admin.Email,
		&admin.PasswordHash,
		&admin.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Admin{}, ErrNotFound
		}
		return types.Admin{}, err
	}
	return admin, nil
}

// Upsert creates or refreshes the single admin row for the configured email.
// Login itself is checked against configured credentials; the row only anchors
// foreign keys and audit data.
func (r *AdminRepository) Upsert(ctx context.Context, admin types.Admin) (types.Admin, error) {
	admin.CreatedAt = time.Now()

	const query = `
		INSERT INTO admins (name, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, password_hash = EXCLUDED.password_hash
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, admin.Name, admin.Email, admin.PasswordHash, admin.CreatedAt).
		Scan(&admin.ID, &admin.CreatedAt)
	if err != nil {
		return types.Admin{}, err
	}
	return admin, nil
}
