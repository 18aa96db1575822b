package services

import (
	"context"
	"time"

	"github.com/teamtrack/apiserver/types"
)

// Repository interfaces abstract the store so services can be exercised
// against in-memory fakes. The store package provides the SQL
// implementations.

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByIDs(ctx context.Context, ids []int) ([]types.User, error)
	List(ctx context.Context, department string, offset, limit int) ([]types.User, int, error)
	ListPending(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// AdminRepository defines persistence operations for the admin identity.
type AdminRepository interface {
	GetByEmail(ctx context.Context, email string) (types.Admin, error)
	Upsert(ctx context.Context, admin types.Admin) (types.Admin, error)
}

// ProjectRepository defines persistence operations for projects.
type ProjectRepository interface {
	GetByID(ctx context.Context, id int) (types.Project, error)
	List(ctx context.Context, leadID, memberID, offset, limit int) ([]types.Project, int, error)
	Create(ctx context.Context, project types.Project) (types.Project, error)
	Update(ctx context.Context, project types.Project) (types.Project, error)
	UpdateAggregates(ctx context.Context, id, progress int, estimated, actual float64, status string, completedAt *time.Time) error
	ClaimPointsDistribution(ctx context.Context, id int) (bool, error)
	SoftDelete(ctx context.Context, id int) error
	AddMembers(ctx context.Context, projectID int, userIDs []int) error
	MemberIDs(ctx context.Context, projectID int) ([]int, error)
	IsMember(ctx context.Context, projectID, userID int) (bool, error)
}

// ModuleRepository defines persistence operations for modules.
type ModuleRepository interface {
	GetByID(ctx context.Context, id int) (types.Module, error)
	ListByProject(ctx context.Context, projectID int) ([]types.Module, error)
	Create(ctx context.Context, module types.Module) (types.Module, error)
	Update(ctx context.Context, module types.Module) (types.Module, error)
	Delete(ctx context.Context, id int) error
	AddAssignees(ctx context.Context, moduleID int, userIDs []int) error
	AssigneeIDs(ctx context.Context, moduleID int) ([]int, error)
	IsAssignee(ctx context.Context, moduleID, userID int) (bool, error)
}

// DailyUpdateRepository defines persistence operations for daily updates.
type DailyUpdateRepository interface {
	GetByID(ctx context.Context, id int) (types.DailyUpdate, error)
	Create(ctx context.Context, update types.DailyUpdate) (types.DailyUpdate, error)
	Update(ctx context.Context, update types.DailyUpdate) (types.DailyUpdate, error)
	ListByModule(ctx context.Context, moduleID int) ([]types.DailyUpdate, error)
	ListByProject(ctx context.Context, projectID int) ([]types.DailyUpdate, error)
	ListByUser(ctx context.Context, userID int) ([]types.DailyUpdate, error)
	HoursByUserForProject(ctx context.Context, projectID int) (map[int]float64, error)
}

// StatsRepository defines persistence operations for user statistics.
type StatsRepository interface {
	EnsureForUser(ctx context.Context, userID int) error
	GetByUserID(ctx context.Context, userID int) (types.UserStats, error)
	IncrementTotals(ctx context.Context, userID, points int, hours float64, completedInc int) error
	AppendHistory(ctx context.Context, entry types.ProjectHistoryEntry) (types.ProjectHistoryEntry, error)
	UpsertMonthly(ctx context.Context, userID int, month string, points int, hours float64) error
	History(ctx context.Context, userID int) ([]types.ProjectHistoryEntry, error)
	Monthly(ctx context.Context, userID int) ([]types.MonthlyStat, error)
	Leaderboard(ctx context.Context, limit int) ([]types.LeaderboardEntry, error)
}

// RefreshTokenRepository defines persistence operations for refresh tokens.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token types.RefreshToken) (types.RefreshToken, error)
	Get(ctx context.Context, token string) (types.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
