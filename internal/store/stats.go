package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/teamtrack/apiserver/types"
)

// StatsRepository handles persistence for per-user statistics, the
// append-only project history and the monthly rollup.
type StatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// EnsureForUser lazily creates the stats row for a user on first contact.
func (r *StatsRepository) EnsureForUser(ctx context.Context, userID int) error {
	const query = `
		INSERT INTO user_stats (user_id, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

func (r *StatsRepository) GetByUserID(ctx context.Context, userID int) (types.UserStats, error) {
	const query = `
		SELECT id, user_id, total_projects, completed_projects, total_hours_worked, total_points, created_at, updated_at
		FROM user_stats
		WHERE user_id = $1`
	var stats types.UserStats
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.ID,
		&stats.UserID,
		&stats.TotalProjects,
		&stats.CompletedProjects,
		&stats.TotalHoursWorked,
		&stats.TotalPoints,
		&stats.CreatedAt,
		&stats.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.UserStats{}, ErrNotFound
		}
		return types.UserStats{}, err
	}
	return stats, nil
}

// IncrementTotals bumps the running totals. completedInc is 1 when the
// history entry records a lead role, 0 otherwise. Totals never decrement.
func (r *StatsRepository) IncrementTotals(ctx context.Context, userID, points int, hours float64, completedInc int) error {
	const query = `
		UPDATE user_stats
		SET total_projects = total_projects + 1,
			completed_projects = completed_projects + $1,
			total_points = total_points + $2,
			total_hours_worked = total_hours_worked + $3,
			updated_at = NOW()
		WHERE user_id = $4`
	result, err := r.db.ExecContext(ctx, query, completedInc, points, hours, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendHistory appends one entry to the user's project history ledger.
func (r *StatsRepository) AppendHistory(ctx context.Context, entry types.ProjectHistoryEntry) (types.ProjectHistoryEntry, error) {
	const query = `
		INSERT INTO project_history (user_id, project_id, role, points_earned, hours_worked, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		entry.UserID,
		entry.ProjectID,
		entry.Role,
		entry.PointsEarned,
		entry.HoursWorked,
		entry.CompletedAt,
	).Scan(&entry.ID)
	if err != nil {
		return types.ProjectHistoryEntry{}, err
	}
	return entry, nil
}

// UpsertMonthly finds-or-creates the month bucket and adds the deltas to it.
func (r *StatsRepository) UpsertMonthly(ctx context.Context, userID int, month string, points int, hours float64) error {
	const query = `
		INSERT INTO monthly_stats (user_id, month, projects_completed, points_earned, hours_worked)
		VALUES ($1, $2, 1, $3, $4)
		ON CONFLICT (user_id, month) DO UPDATE
		SET projects_completed = monthly_stats.projects_completed + 1,
			points_earned = monthly_stats.points_earned + EXCLUDED.points_earned,
			hours_worked = monthly_stats.hours_worked + EXCLUDED.hours_worked`
	_, err := r.db.ExecContext(ctx, query, userID, month, points, hours)
	return err
}

func (r *StatsRepository) History(ctx context.Context, userID int) ([]types.ProjectHistoryEntry, error) {
	const query = `
		SELECT id, user_id, project_id, role, points_earned, hours_worked, completed_at
		FROM project_history
		WHERE user_id = $1
		ORDER BY completed_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []types.ProjectHistoryEntry
	for rows.Next() {
		var entry types.ProjectHistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.ProjectID,
			&entry.Role,
			&entry.PointsEarned,
			&entry.HoursWorked,
			&entry.CompletedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *StatsRepository) Monthly(ctx context.Context, userID int) ([]types.MonthlyStat, error) {
	const query = `
		SELECT id, user_id, month, projects_completed, points_earned, hours_worked
		FROM monthly_stats
		WHERE user_id = $1
		ORDER BY month DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []types.MonthlyStat
	for rows.Next() {
		var stat types.MonthlyStat
		if err := rows.Scan(
			&stat.ID,
			&stat.UserID,
			&stat.Month,
			&stat.ProjectsCompleted,
			&stat.PointsEarned,
			&stat.HoursWorked,
		); err != nil {
			return nil, err
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

// Leaderboard returns users ordered by total points, highest first.
func (r *StatsRepository) Leaderboard(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	if limit < 1 {
		limit = 20
	}

	const query = `
		SELECT s.user_id, u.name, u.department, s.total_points, s.completed_projects
		FROM user_stats s
		JOIN users u ON u.id = s.user_id
		WHERE u.is_active = TRUE
		ORDER BY s.total_points DESC, s.user_id
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []types.LeaderboardEntry
	for rows.Next() {
		var entry types.LeaderboardEntry
		if err := rows.Scan(
			&entry.UserID,
			&entry.Name,
			&entry.Department,
			&entry.TotalPoints,
			&entry.CompletedProjects,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
