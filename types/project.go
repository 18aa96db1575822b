package types

import "time"

// Project statuses. "completed" is set by the aggregation engine, never by
// clients directly.
const (
	ProjectPending    = "pending"
	ProjectInProgress = "in_progress"
	ProjectCompleted  = "completed"
	ProjectOnHold     = "on_hold"
	ProjectCancelled  = "cancelled"
)

// Project priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// ValidProjectStatus reports whether s is a known project status.
func ValidProjectStatus(s string) bool {
	switch s {
	case ProjectPending, ProjectInProgress, ProjectCompleted, ProjectOnHold, ProjectCancelled:
		return true
	}
	return false
}

// ValidProjectPriority reports whether p is a known project priority.
func ValidProjectPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Project represents a unit of delivery owned by exactly one lead and worked
// on by a set of assigned users. Progress, hour totals, status, completion
// timestamp and the points-distributed flag are derived by the aggregation
// engine and must never be written by clients.
type Project struct {
	// ID is the unique identifier of the project.
	ID int `json:"id" db:"id"`

	// Name is the human-readable project name.
	Name string `json:"name" db:"name"`

	// Description is the free-form project description.
	Description string `json:"description" db:"description"`

	// Department scopes the project. The assigned lead and all assigned
	// users must belong to this department at assignment time.
	Department string `json:"department" db:"department"`

	// AssignedLead is the ID of the single lead responsible for the project.
	AssignedLead int `json:"assigned_lead" db:"assigned_lead"`

	// AssignedUsers is the set of member user IDs. Membership is unique;
	// inserts use add-to-set semantics.
	AssignedUsers []int `json:"assigned_users" db:"-"`

	// Progress is the derived completion percentage in [0,100]:
	// the rounded mean of all module progress values.
	Progress int `json:"progress" db:"progress"`

	// Status is the lifecycle state of the project.
	Status string `json:"status" db:"status"`

	// Priority is the scheduling priority of the project.
	Priority string `json:"priority" db:"priority"`

	// Deadline is the agreed delivery date, used by the deadline multiplier.
	Deadline time.Time `json:"deadline" db:"deadline"`

	// CompletedAt is set exactly once, on the transition to completed.
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	// TotalEstimatedHours is the derived sum of module estimates.
	TotalEstimatedHours float64 `json:"total_estimated_hours" db:"total_estimated_hours"`

	// TotalActualHours is the derived sum of module actual hours.
	TotalActualHours float64 `json:"total_actual_hours" db:"total_actual_hours"`

	// BasePoints is the point budget converted into awards on completion.
	BasePoints int `json:"base_points" db:"base_points"`

	// PointsDistributed is the one-shot guard: once true, the points engine
	// must never run again for this project.
	PointsDistributed bool `json:"points_distributed" db:"points_distributed"`

	// IsActive soft-deletes the project when false.
	IsActive bool `json:"is_active" db:"is_active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
