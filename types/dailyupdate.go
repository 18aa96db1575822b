package types

import "time"

// Daily update statuses, self-reported by the submitting user.
const (
	UpdateOnTrack   = "on_track"
	UpdateDelayed   = "delayed"
	UpdateBlocked   = "blocked"
	UpdateCompleted = "completed"
)

// ValidUpdateStatus reports whether s is a known daily-update status.
func ValidUpdateStatus(s string) bool {
	switch s {
	case UpdateOnTrack, UpdateDelayed, UpdateBlocked, UpdateCompleted:
		return true
	}
	return false
}

// DailyUpdate is a per-day, per-user, per-module progress report. It is the
// sole input feeding the aggregation cascade. One update per user+module+day;
// editable only same-day by its author.
type DailyUpdate struct {
	// ID is the unique identifier of the update.
	ID int `json:"id" db:"id"`

	// UserID identifies the author.
	UserID int `json:"user_id" db:"user_id"`

	// ProjectID identifies the project the module belongs to. Denormalized
	// so per-project hour sums do not need a join through modules.
	ProjectID int `json:"project_id" db:"project_id"`

	// ModuleID identifies the module the update reports on.
	ModuleID int `json:"module_id" db:"module_id"`

	// Date is the calendar day (day granularity) the update covers.
	Date time.Time `json:"date" db:"date"`

	// HoursWorked is the effort spent that day, in [0,24].
	HoursWorked float64 `json:"hours_worked" db:"hours_worked"`

	// ProgressPercentage is the absolute progress-to-date in [0,100],
	// not a delta.
	ProgressPercentage int `json:"progress_percentage" db:"progress_percentage"`

	// Description summarizes the work done.
	Description string `json:"description" db:"description"`

	// Blockers lists anything impeding progress.
	Blockers string `json:"blockers,omitempty" db:"blockers"`

	// Status is the author's self-assessment for the day.
	Status string `json:"status" db:"status"`

	// AttachmentKey is the object-storage key of an optional supporting
	// file. Empty when nothing was attached.
	AttachmentKey string `json:"attachment_key,omitempty" db:"attachment_key"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
