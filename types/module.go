package types

import "time"

// Module statuses.
const (
	ModulePending    = "pending"
	ModuleInProgress = "in_progress"
	ModuleCompleted  = "completed"
	ModuleBlocked    = "blocked"
)

// ValidModuleStatus reports whether s is a known module status.
func ValidModuleStatus(s string) bool {
	switch s {
	case ModulePending, ModuleInProgress, ModuleCompleted, ModuleBlocked:
		return true
	}
	return false
}

// ValidModulePriority reports whether p is a known module priority.
// Modules use the low/medium/high subset; "urgent" is project-only.
func ValidModulePriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Module is a unit of work within a project, tracked independently for
// progress and time. The project reference is immutable after creation.
type Module struct {
	// ID is the unique identifier of the module.
	ID int `json:"id" db:"id"`

	// ProjectID identifies the owning project. Immutable after creation.
	ProjectID int `json:"project_id" db:"project_id"`

	// Name is the human-readable module name.
	Name string `json:"name" db:"name"`

	// Description is the free-form module description.
	Description string `json:"description" db:"description"`

	// AssignedUsers is the set of member user IDs working on this module.
	// Assigning a user here auto-adds them to the parent project's members.
	AssignedUsers []int `json:"assigned_users" db:"-"`

	// EstimatedTime is the planned effort in hours.
	EstimatedTime float64 `json:"estimated_time" db:"estimated_time"`

	// ActualTime is the derived sum of hours across all daily updates.
	ActualTime float64 `json:"actual_time" db:"actual_time"`

	// Progress is the completion percentage in [0,100]. The direct update
	// path enforces monotonic non-decrease; the daily-update path is
	// latest-wins.
	Progress int `json:"progress" db:"progress"`

	// Status is the lifecycle state of the module.
	Status string `json:"status" db:"status"`

	// Priority is the scheduling priority (low/medium/high).
	Priority string `json:"priority" db:"priority"`

	// StartDate is set automatically on the first progress above zero.
	StartDate *time.Time `json:"start_date,omitempty" db:"start_date"`

	// EndDate is set automatically when progress reaches 100.
	EndDate *time.Time `json:"end_date,omitempty" db:"end_date"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
