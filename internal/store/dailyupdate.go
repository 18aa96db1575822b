package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/teamtrack/apiserver/types"
)

// DailyUpdateRepository handles persistence for daily updates.
type DailyUpdateRepository struct {
	db *sql.DB
}

func NewDailyUpdateRepository(db *sql.DB) *DailyUpdateRepository {
	return &DailyUpdateRepository{db: db}
}

const updateColumns = `id, user_id, project_id, module_id, date, hours_worked, progress_percentage,
		description, blockers, status, attachment_key, created_at, updated_at`

func scanUpdate(row interface{ Scan(...any) error }) (types.DailyUpdate, error) {
	var u types.DailyUpdate
	err := row.Scan(
		&u.ID,
		&u.UserID,
		&u.ProjectID,
		&u.ModuleID,
		&u.Date,
		&u.HoursWorked,
		&u.ProgressPercentage,
		&u.Description,
		&u.Blockers,
		&u.Status,
		&u.AttachmentKey,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func (r *DailyUpdateRepository) GetByID(ctx context.Context, id int) (types.DailyUpdate, error) {
	const query = `SELECT ` + updateColumns + ` FROM daily_updates WHERE id = $1`
	update, err := scanUpdate(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.DailyUpdate{}, ErrNotFound
		}
		return types.DailyUpdate{}, err
	}
	return update, nil
}

// Create inserts a daily update. A second update for the same
// user+module+day violates the unique constraint and maps to ErrConflict.
func (r *DailyUpdateRepository) Create(ctx context.Context, update types.DailyUpdate) (types.DailyUpdate, error) {
	now := time.Now()
	update.CreatedAt = now
	update.UpdatedAt = now

	const query = `
		INSERT INTO daily_updates (user_id, project_id, module_id, date, hours_worked,
			progress_percentage, description, blockers, status, attachment_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		update.UserID,
		update.ProjectID,
		update.ModuleID,
		update.Date,
		update.HoursWorked,
		update.ProgressPercentage,
		update.Description,
		update.Blockers,
		update.Status,
		update.AttachmentKey,
		update.CreatedAt,
		update.UpdatedAt,
	).Scan(&update.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return types.DailyUpdate{}, ErrConflict
		}
		return types.DailyUpdate{}, err
	}
	return update, nil
}

// Update persists an edit of the mutable report fields.
func (r *DailyUpdateRepository) Update(ctx context.Context, update types.DailyUpdate) (types.DailyUpdate, error) {
	update.UpdatedAt = time.Now()

	const query = `
		UPDATE daily_updates
		SET hours_worked = $1,
			progress_percentage = $2,
			description = $3,
			blockers = $4,
			status = $5,
			attachment_key = $6,
			updated_at = $7
		WHERE id = $8`
	result, err := r.db.ExecContext(
		ctx,
		query,
		update.HoursWorked,
		update.ProgressPercentage,
		update.Description,
		update.Blockers,
		update.Status,
		update.AttachmentKey,
		update.UpdatedAt,
		update.ID,
	)
	if err != nil {
		return types.DailyUpdate{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.DailyUpdate{}, err
	}
	if affected == 0 {
		return types.DailyUpdate{}, ErrNotFound
	}
	return update, nil
}

// ListByModule returns every update for the module, newest-first by creation
// time. The module aggregator depends on this ordering.
func (r *DailyUpdateRepository) ListByModule(ctx context.Context, moduleID int) ([]types.DailyUpdate, error) {
	const query = `SELECT ` + updateColumns + ` FROM daily_updates WHERE module_id = $1 ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, moduleID)
}

// ListByProject returns every update for the project, newest-first.
func (r *DailyUpdateRepository) ListByProject(ctx context.Context, projectID int) ([]types.DailyUpdate, error) {
	const query = `SELECT ` + updateColumns + ` FROM daily_updates WHERE project_id = $1 ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, projectID)
}

// ListByUser returns the user's own updates, newest-first.
func (r *DailyUpdateRepository) ListByUser(ctx context.Context, userID int) ([]types.DailyUpdate, error) {
	const query = `SELECT ` + updateColumns + ` FROM daily_updates WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, userID)
}

func (r *DailyUpdateRepository) list(ctx context.Context, query string, arg any) ([]types.DailyUpdate, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updates []types.DailyUpdate
	for rows.Next() {
		update, err := scanUpdate(rows)
		if err != nil {
			return nil, err
		}
		updates = append(updates, update)
	}
	return updates, rows.Err()
}

// HoursByUserForProject sums hoursWorked per user across all daily updates
// on the project. The points engine splits the member pool on these sums.
func (r *DailyUpdateRepository) HoursByUserForProject(ctx context.Context, projectID int) (map[int]float64, error) {
	const query = `
		SELECT user_id, COALESCE(SUM(hours_worked), 0)
		FROM daily_updates
		WHERE project_id = $1
		GROUP BY user_id`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hours := make(map[int]float64)
	for rows.Next() {
		var userID int
		var sum float64
		if err := rows.Scan(&userID, &sum); err != nil {
			return nil, err
		}
		hours[userID] = sum
	}
	return hours, rows.Err()
}
