package services

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"github.com/teamtrack/apiserver/internal/apperr"
	"github.com/teamtrack/apiserver/internal/store"
	"github.com/teamtrack/apiserver/types"
)

// ProgressPipeline is the explicit, synchronous aggregation cascade:
//
//	daily update -> module recompute -> project recompute -> completion
//	detection -> points distribution -> per-user statistics
//
// Each stage re-reads persisted state before writing and returns an error
// instead of relying on hidden persistence hooks, so every stage is testable
// in isolation. The whole cascade runs on the caller's goroutine; a
// daily-update request does not return until distribution (if any) finished.
type ProgressPipeline struct {
	projects ProjectRepository
	modules  ModuleRepository
	updates  DailyUpdateRepository
	stats    *StatsService
	now      func() time.Time
}

func NewProgressPipeline(
	projects ProjectRepository,
	modules ModuleRepository,
	updates DailyUpdateRepository,
	stats *StatsService,
) *ProgressPipeline {
	return &ProgressPipeline{
		projects: projects,
		modules:  modules,
		updates:  updates,
		stats:    stats,
		now:      time.Now,
	}
}

func clampProgress(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// RecomputeModule rebuilds a module's progress, actual time and status from
// the complete set of its daily updates, newest-first. Progress is
// latest-wins (the most recent report is authoritative, not an average);
// actual time is the cumulative sum of hours. With zero updates the module
// is left untouched.
func (p *ProgressPipeline) RecomputeModule(ctx context.Context, moduleID int) (types.Module, error) {
	module, err := p.modules.GetByID(ctx, moduleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Module{}, apperr.NotFound("Module not found")
		}
		return types.Module{}, apperr.Internal(err)
	}

	updates, err := p.updates.ListByModule(ctx, moduleID)
	if err != nil {
		return types.Module{}, apperr.Internal(err)
	}
	if len(updates) == 0 {
		return module, nil
	}

	module.Progress = clampProgress(updates[0].ProgressPercentage)
	var total float64
	for _, u := range updates {
		total += u.HoursWorked
	}
	module.ActualTime = total

	now := p.now()
	applyModuleStatus(&module, now)

	module, err = p.modules.Update(ctx, module)
	if err != nil {
		return types.Module{}, apperr.Internal(err)
	}
	return module, nil
}

// applyModuleStatus derives module status from progress. Completion sets the
// end date once; the first nonzero progress moves a pending module to
// in_progress and stamps the start date once.
func applyModuleStatus(module *types.Module, now time.Time) {
	if module.Progress == 100 && module.Status != types.ModuleCompleted {
		module.Status = types.ModuleCompleted
		if module.EndDate == nil {
			module.EndDate = &now
		}
		return
	}
	if module.Progress > 0 && module.Status == types.ModulePending {
		module.Status = types.ModuleInProgress
		if module.StartDate == nil {
			module.StartDate = &now
		}
	}
}

// RecomputeProject rebuilds a project's progress, hour totals and status
// from its modules, detects completion, and runs the one-shot points
// distribution. The recomputation is idempotent: the same module set always
// yields the same aggregates, and the distribution claim admits exactly one
// caller per project lifetime.
func (p *ProgressPipeline) RecomputeProject(ctx context.Context, projectID int) (types.Project, error) {
	project, err := p.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Project{}, apperr.NotFound("Project not found")
		}
		return types.Project{}, apperr.Internal(err)
	}

	modules, err := p.modules.ListByProject(ctx, projectID)
	if err != nil {
		return types.Project{}, apperr.Internal(err)
	}

	if len(modules) == 0 {
		project.Progress = 0
		project.TotalEstimatedHours = 0
		project.TotalActualHours = 0
		if err := p.projects.UpdateAggregates(ctx, project.ID, 0, 0, 0, project.Status, nil); err != nil {
			return types.Project{}, apperr.Internal(err)
		}
		return project, nil
	}

	var progressSum, estimated, actual float64
	for _, m := range modules {
		progressSum += float64(m.Progress)
		estimated += m.EstimatedTime
		actual += m.ActualTime
	}
	progress := int(math.Round(progressSum / float64(len(modules))))

	status := project.Status
	completedAt := project.CompletedAt
	var newlyCompleted *time.Time
	if progress == 100 && status != types.ProjectCompleted {
		status = types.ProjectCompleted
		now := p.now()
		newlyCompleted = &now
		if completedAt == nil {
			completedAt = &now
		}
	}

	if err := p.projects.UpdateAggregates(ctx, project.ID, progress, estimated, actual, status, newlyCompleted); err != nil {
		return types.Project{}, apperr.Internal(err)
	}

	project.Progress = progress
	project.TotalEstimatedHours = estimated
	project.TotalActualHours = actual
	project.Status = status
	project.CompletedAt = completedAt

	if progress == 100 && !project.PointsDistributed {
		claimed, err := p.projects.ClaimPointsDistribution(ctx, project.ID)
		if err != nil {
			return types.Project{}, apperr.Internal(err)
		}
		if claimed {
			project.PointsDistributed = true
			if err := p.distribute(ctx, project); err != nil {
				return types.Project{}, err
			}
		}
	}

	return project, nil
}

// distribute runs the points engine for a freshly completed project and
// credits each recipient through the statistics aggregator. There is no
// multi-user transaction: if a credit fails mid-way the earlier credits
// remain and the failure is logged and returned rather than retried, since
// the distribution claim has already been consumed.
func (p *ProgressPipeline) distribute(ctx context.Context, project types.Project) error {
	hoursByUser, err := p.updates.HoursByUserForProject(ctx, project.ID)
	if err != nil {
		return apperr.Internal(err)
	}

	completedAt := p.now()
	if project.CompletedAt != nil {
		completedAt = *project.CompletedAt
	}

	awards := DistributePoints(
		project.BasePoints,
		project.TotalEstimatedHours,
		project.TotalActualHours,
		project.Deadline,
		completedAt,
		project.AssignedLead,
		hoursByUser,
	)

	var firstErr error
	for _, award := range awards {
		entry := types.ProjectHistoryEntry{
			UserID:       award.UserID,
			ProjectID:    project.ID,
			Role:         award.Role,
			PointsEarned: award.Points,
			HoursWorked:  award.Hours,
			CompletedAt:  completedAt,
		}
		if err := p.stats.AddProjectToHistory(ctx, entry); err != nil {
			log.Printf("points distribution: project %d: failed to credit user %d: %v", project.ID, award.UserID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
