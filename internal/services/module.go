package services

import (
	"context"
	"errors"
	"log"

	"github.com/teamtrack/apiserver/internal/apperr"
	"github.com/teamtrack/apiserver/internal/store"
	"github.com/teamtrack/apiserver/types"
)

// ModuleService implements the module lifecycle. Modules belong to the
// project's lead: creation, editing, assignment and deletion are lead-only,
// while progress reporting is open to module assignees. Every structural
// change re-runs the project aggregation so derived fields never go stale.
type ModuleService struct {
	projects ProjectRepository
	modules  ModuleRepository
	users    UserRepository
	pipeline *ProgressPipeline
}

func NewModuleService(projects ProjectRepository, modules ModuleRepository, users UserRepository, pipeline *ProgressPipeline) *ModuleService {
	return &ModuleService{projects: projects, modules: modules, users: users, pipeline: pipeline}
}

// CreateModuleInput carries client-writable module fields.
type CreateModuleInput struct {
	ProjectID     int
	Name          string
	Description   string
	EstimatedTime float64
	Priority      string
	AssignedUsers []int
}

// UpdateModuleInput carries optional lead-editable fields. Nil means leave
// unchanged. Progress is deliberately absent; it has its own endpoint.
type UpdateModuleInput struct {
	Name          *string
	Description   *string
	EstimatedTime *float64
	Priority      *string
	Status        *string
}

// Create creates a module under a project. Only the project's lead may
// create modules. Initial assignees are validated as a batch and auto-added
// to the project's member set.
func (s *ModuleService) Create(ctx context.Context, principal types.Principal, in CreateModuleInput) (types.Module, error) {
	project, err := s.getProject(ctx, in.ProjectID)
	if err != nil {
		return types.Module{}, err
	}
	if err := requireProjectLead(principal, project); err != nil {
		return types.Module{}, err
	}

	if in.Priority == "" {
		in.Priority = types.PriorityMedium
	}
	if !types.ValidModulePriority(in.Priority) {
		return types.Module{}, apperr.Validation("Invalid module priority")
	}
	if in.EstimatedTime < 0 {
		return types.Module{}, apperr.Validation("Estimated time cannot be negative")
	}

	module := types.Module{
		ProjectID:     in.ProjectID,
		Name:          in.Name,
		Description:   in.Description,
		EstimatedTime: in.EstimatedTime,
		Status:        types.ModulePending,
		Priority:      in.Priority,
	}

	created, err := s.modules.Create(ctx, module)
	if err != nil {
		return types.Module{}, apperr.Internal(err)
	}

	if len(in.AssignedUsers) > 0 {
		if err := s.assign(ctx, project, created.ID, in.AssignedUsers); err != nil {
			return types.Module{}, err
		}
		created.AssignedUsers = in.AssignedUsers
	}

	// A new module dilutes the project mean, so recompute immediately.
	if _, err := s.pipeline.RecomputeProject(ctx, in.ProjectID); err != nil {
		return types.Module{}, err
	}
	return created, nil
}

// Get returns a module for principals who can see the owning project.
func (s *ModuleService) Get(ctx context.Context, principal types.Principal, id int) (types.Module, error) {
	module, err := s.getModule(ctx, id)
	if err != nil {
		return types.Module{}, err
	}
	project, err := s.getProject(ctx, module.ProjectID)
	if err != nil {
		return types.Module{}, err
	}
	if err := canViewModules(principal, project); err != nil {
		return types.Module{}, err
	}
	return module, nil
}

// Update edits general module fields. Lead only; assignees report progress
// through UpdateProgress instead. Status "completed" is derived from
// progress and cannot be set directly.
func (s *ModuleService) Update(ctx context.Context, principal types.Principal, id int, in UpdateModuleInput) (types.Module, error) {
	module, err := s.getModule(ctx, id)
	if err != nil {
		return types.Module{}, err
	}
	project, err := s.getProject(ctx, module.ProjectID)
	if err != nil {
		return types.Module{}, err
	}
	if err := requireProjectLead(principal, project); err != nil {
		return types.Module{}, err
	}

	if in.Name != nil {
		module.Name = *in.Name
	}
	if in.Description != nil {
		module.Description = *in.Description
	}
	if in.EstimatedTime != nil {
		if *in.EstimatedTime < 0 {
			return types.Module{}, apperr.Validation("Estimated time cannot be negative")
		}
		module.EstimatedTime = *in.EstimatedTime
	}
	if in.Priority != nil {
		if !types.ValidModulePriority(*in.Priority) {
			return types.Module{}, apperr.Validation("Invalid module priority")
		}
		module.Priority = *in.Priority
	}
	if in.Status != nil {
		if !types.ValidModuleStatus(*in.Status) {
			return types.Module{}, apperr.Validation("Invalid module status")
		}
		if *in.Status == types.ModuleCompleted {
			return types.Module{}, apperr.Validation("Module status cannot be set to completed directly")
		}
		module.Status = *in.Status
	}

	updated, err := s.modules.Update(ctx, module)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Module{}, apperr.NotFound("Module not found")
		}
		return types.Module{}, apperr.Internal(err)
	}
	updated.AssignedUsers = module.AssignedUsers

	if _, err := s.pipeline.RecomputeProject(ctx, module.ProjectID); err != nil {
		return types.Module{}, err
	}
	return updated, nil
}

// UpdateProgress sets a module's progress directly. Open to the project's
// lead and the module's assignees. Values are clamped to [0,100] and may
// never decrease on this path; corrections go through daily updates, where
// the latest report wins.
func (s *ModuleService) UpdateProgress(ctx context.Context, principal types.Principal, id, progress int) (types.Module, error) {
	module, err := s.getModule(ctx, id)
	if err != nil {
		return types.Module{}, err
	}
	project, err := s.getProject(ctx, module.ProjectID)
	if err != nil {
		return types.Module{}, err
	}

	assignee, err := s.modules.IsAssignee(ctx, module.ID, principal.ID)
	if err != nil {
		return types.Module{}, apperr.Internal(err)
	}
	if err := canTouchModule(principal, project, assignee); err != nil {
		return types.Module{}, err
	}

	progress = clampProgress(progress)
	if progress < module.Progress {
		return types.Module{}, apperr.Validation("Progress cannot decrease")
	}

	module.Progress = progress
	applyModuleStatus(&module, s.pipeline.now())

	updated, err := s.modules.Update(ctx, module)
	if err != nil {
		return types.Module{}, apperr.Internal(err)
	}
	updated.AssignedUsers = module.AssignedUsers

	if _, err := s.pipeline.RecomputeProject(ctx, module.ProjectID); err != nil {
		return types.Module{}, err
	}
	return updated, nil
}

// AssignUsers adds assignees to a module. Lead only. Assignees not yet on
// the project are auto-added to its member set.
func (s *ModuleService) AssignUsers(ctx context.Context, principal types.Principal, moduleID int, userIDs []int) (types.Module, error) {
	module, err := s.getModule(ctx, moduleID)
	if err != nil {
		return types.Module{}, err
	}
	project, err := s.getProject(ctx, module.ProjectID)
	if err != nil {
		return types.Module{}, err
	}
	if err := requireProjectLead(principal, project); err != nil {
		return types.Module{}, err
	}

	if err := s.assign(ctx, project, moduleID, userIDs); err != nil {
		return types.Module{}, err
	}

	assignees, err := s.modules.AssigneeIDs(ctx, moduleID)
	if err != nil {
		return types.Module{}, apperr.Internal(err)
	}
	module.AssignedUsers = assignees
	return module, nil
}

// Delete removes a module. Lead only. The project aggregates are recomputed
// over the remaining modules.
func (s *ModuleService) Delete(ctx context.Context, principal types.Principal, id int) error {
	module, err := s.getModule(ctx, id)
	if err != nil {
		return err
	}
	project, err := s.getProject(ctx, module.ProjectID)
	if err != nil {
		return err
	}
	if err := requireProjectLead(principal, project); err != nil {
		return err
	}

	if err := s.modules.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Module not found")
		}
		return apperr.Internal(err)
	}

	if _, err := s.pipeline.RecomputeProject(ctx, module.ProjectID); err != nil {
		return err
	}
	return nil
}

// assign validates a batch of candidate assignees, records them on the
// module and auto-adds them to the project's member set. The auto-add is a
// logged, explicit side effect, not a hidden hook.
func (s *ModuleService) assign(ctx context.Context, project types.Project, moduleID int, userIDs []int) error {
	candidates, err := s.users.GetByIDs(ctx, userIDs)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := validateAssignees(project, candidates, len(userIDs)); err != nil {
		return err
	}

	if err := s.modules.AddAssignees(ctx, moduleID, userIDs); err != nil {
		return apperr.Internal(err)
	}

	onProject := make(map[int]bool, len(project.AssignedUsers))
	for _, id := range project.AssignedUsers {
		onProject[id] = true
	}
	var missing []int
	for _, id := range userIDs {
		if !onProject[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		log.Printf("modules: module %d assignment auto-added users %v to project %d", moduleID, missing, project.ID)
		if err := s.projects.AddMembers(ctx, project.ID, missing); err != nil {
			return apperr.Internal(err)
		}
	}
	return nil
}

func (s *ModuleService) getModule(ctx context.Context, id int) (types.Module, error) {
	module, err := s.modules.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Module{}, apperr.NotFound("Module not found")
		}
		return types.Module{}, apperr.Internal(err)
	}
	return module, nil
}

func (s *ModuleService) getProject(ctx context.Context, id int) (types.Project, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Project{}, apperr.NotFound("Project not found")
		}
		return types.Project{}, apperr.Internal(err)
	}
	return project, nil
}
