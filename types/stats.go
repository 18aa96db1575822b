package types

import "time"

// UserStats holds one record per user with running totals. It is mutated only
// by the points distribution engine and the statistics aggregator, never by
// direct user action.
type UserStats struct {
	ID     int `json:"id" db:"id"`
	UserID int `json:"user_id" db:"user_id"`

	// TotalProjects counts projects that ever reached the user's history.
	TotalProjects int `json:"total_projects" db:"total_projects"`

	// CompletedProjects counts completed projects the user led.
	CompletedProjects int `json:"completed_projects" db:"completed_projects"`

	// TotalHoursWorked accumulates hours credited through distributions.
	TotalHoursWorked float64 `json:"total_hours_worked" db:"total_hours_worked"`

	// TotalPoints accumulates all points ever earned.
	TotalPoints int `json:"total_points" db:"total_points"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProjectHistoryEntry is one row of the append-only per-user ledger written
// when a completed project's points are distributed.
type ProjectHistoryEntry struct {
	ID        int `json:"id" db:"id"`
	UserID    int `json:"user_id" db:"user_id"`
	ProjectID int `json:"project_id" db:"project_id"`

	// Role the user held on the project: "lead" or "member".
	Role string `json:"role" db:"role"`

	PointsEarned int       `json:"points_earned" db:"points_earned"`
	HoursWorked  float64   `json:"hours_worked" db:"hours_worked"`
	CompletedAt  time.Time `json:"completed_at" db:"completed_at"`
}

// History roles recorded in ProjectHistoryEntry.
const (
	HistoryRoleLead   = "lead"
	HistoryRoleMember = "member"
)

// MonthlyStat is the derived per-month rollup, keyed by "YYYY-MM".
type MonthlyStat struct {
	ID     int    `json:"id" db:"id"`
	UserID int    `json:"user_id" db:"user_id"`
	Month  string `json:"month" db:"month"`

	ProjectsCompleted int     `json:"projects_completed" db:"projects_completed"`
	PointsEarned      int     `json:"points_earned" db:"points_earned"`
	HoursWorked       float64 `json:"hours_worked" db:"hours_worked"`
}

// LeaderboardEntry is one row of the points leaderboard.
type LeaderboardEntry struct {
	UserID            int    `json:"user_id" db:"user_id"`
	Name              string `json:"name" db:"name"`
	Department        string `json:"department" db:"department"`
	TotalPoints       int    `json:"total_points" db:"total_points"`
	CompletedProjects int    `json:"completed_projects" db:"completed_projects"`
}

// MonthKey formats t as the "YYYY-MM" bucket key used by MonthlyStat.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
