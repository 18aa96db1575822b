package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/teamtrack/apiserver/types"
)

// RefreshTokenRepository handles persistence for refresh tokens.
type RefreshTokenRepository struct {
	db *sql.DB
}

func NewRefreshTokenRepository(db *sql.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token types.RefreshToken) (types.RefreshToken, error) {
	token.CreatedAt = time.Now()

	const query = `
		INSERT INTO refresh_tokens (token, subject_id, subject_type, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query, token.Token, token.SubjectID, token.SubjectType, token.ExpiresAt, token.CreatedAt).
		Scan(&token.ID)
	if err != nil {
		return types.RefreshToken{}, err
	}
	return token, nil
}

func (r *RefreshTokenRepository) Get(ctx context.Context, token string) (types.RefreshToken, error) {
	const query = `
		SELECT id, token, subject_id, subject_type, expires_at, revoked, created_at
		FROM refresh_tokens
		WHERE token = $1`
	var rt types.RefreshToken
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&rt.ID,
		&rt.Token,
		&rt.SubjectID,
		&rt.SubjectType,
		&rt.ExpiresAt,
		&rt.Revoked,
		&rt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.RefreshToken{}, ErrNotFound
		}
		return types.RefreshToken{}, err
	}
	return rt, nil
}

// Revoke marks the token unusable. Revoking an unknown token is not an error.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`
	_, err := r.db.ExecContext(ctx, query, token)
	return err
}

// DeleteExpired sweeps tokens past their expiry. Stands in for the TTL
// mechanism the data store would otherwise provide.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE expires_at < NOW()`
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
