package services

import (
	"context"
	"errors"
	"time"

	"github.com/teamtrack/apiserver/internal/apperr"
	"github.com/teamtrack/apiserver/internal/store"
	"github.com/teamtrack/apiserver/types"
)

// StatsService maintains per-user statistics: the append-only project
// history ledger and the derived monthly rollup. Only the points engine
// writes through it; reads back the leaderboard and stats endpoints.
type StatsService struct {
	stats StatsRepository
	now   func() time.Time
}

func NewStatsService(stats StatsRepository) *StatsService {
	return &StatsService{stats: stats, now: time.Now}
}

// AddProjectToHistory appends a history record and folds it into the running
// totals and the current month's bucket. Lead entries additionally bump the
// completed-projects counter. Totals never decrement.
func (s *StatsService) AddProjectToHistory(ctx context.Context, entry types.ProjectHistoryEntry) error {
	if err := s.stats.EnsureForUser(ctx, entry.UserID); err != nil {
		return apperr.Internal(err)
	}
	if _, err := s.stats.AppendHistory(ctx, entry); err != nil {
		return apperr.Internal(err)
	}

	completedInc := 0
	if entry.Role == types.HistoryRoleLead {
		completedInc = 1
	}
	if err := s.stats.IncrementTotals(ctx, entry.UserID, entry.PointsEarned, entry.HoursWorked, completedInc); err != nil {
		return apperr.Internal(err)
	}

	month := types.MonthKey(s.now())
	if err := s.stats.UpsertMonthly(ctx, entry.UserID, month, entry.PointsEarned, entry.HoursWorked); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// UserStatsReport bundles a user's totals with the ledger and rollup.
type UserStatsReport struct {
	Stats   types.UserStats             `json:"stats"`
	History []types.ProjectHistoryEntry `json:"history"`
	Monthly []types.MonthlyStat         `json:"monthly"`
}

// Report returns a user's statistics. Users may read their own; leads and
// admins may read anyone's.
func (s *StatsService) Report(ctx context.Context, principal types.Principal, userID int) (UserStatsReport, error) {
	if !principal.IsAdmin() && principal.Role != types.RoleLead && principal.ID != userID {
		return UserStatsReport{}, apperr.Forbidden("Not authorized to view these statistics")
	}

	stats, err := s.stats.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// No distribution has touched this user yet; report zeros.
			stats = types.UserStats{UserID: userID}
		} else {
			return UserStatsReport{}, apperr.Internal(err)
		}
	}

	history, err := s.stats.History(ctx, userID)
	if err != nil {
		return UserStatsReport{}, apperr.Internal(err)
	}
	monthly, err := s.stats.Monthly(ctx, userID)
	if err != nil {
		return UserStatsReport{}, apperr.Internal(err)
	}

	return UserStatsReport{Stats: stats, History: history, Monthly: monthly}, nil
}

// Leaderboard returns users ranked by total points.
func (s *StatsService) Leaderboard(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	entries, err := s.stats.Leaderboard(ctx, limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return entries, nil
}
