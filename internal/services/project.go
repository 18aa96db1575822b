package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/teamtrack/apiserver/internal/apperr"
	"github.com/teamtrack/apiserver/internal/store"
	"github.com/teamtrack/apiserver/types"
)

// ProjectService implements the project lifecycle: admin-owned CRUD plus
// lead-owned member assignment. Derived fields (progress, hour totals,
// completion, points) are owned by the pipeline and never pass through here.
type ProjectService struct {
	projects ProjectRepository
	modules  ModuleRepository
	users    UserRepository
	pipeline *ProgressPipeline
}

func NewProjectService(projects ProjectRepository, modules ModuleRepository, users UserRepository, pipeline *ProgressPipeline) *ProjectService {
	return &ProjectService{projects: projects, modules: modules, users: users, pipeline: pipeline}
}

// CreateProjectInput carries client-writable project fields.
type CreateProjectInput struct {
	Name          string
	Description   string
	Department    string
	AssignedLead  int
	Priority      string
	Deadline      time.Time
	BasePoints    int
	AssignedUsers []int
}

// UpdateProjectInput carries optional admin-editable fields. Nil means leave
// unchanged.
type UpdateProjectInput struct {
	Name         *string
	Description  *string
	AssignedLead *int
	Status       *string
	Priority     *string
	Deadline     *time.Time
	BasePoints   *int
}

// Create creates a project. Admin only. The lead must hold the lead role,
// be approved and active, and belong to the project's department.
func (s *ProjectService) Create(ctx context.Context, principal types.Principal, in CreateProjectInput) (types.Project, error) {
	if err := requireAdmin(principal); err != nil {
		return types.Project{}, err
	}

	if in.Priority == "" {
		in.Priority = types.PriorityMedium
	}
	if !types.ValidProjectPriority(in.Priority) {
		return types.Project{}, apperr.Validation("Invalid project priority")
	}
	if in.Deadline.IsZero() {
		return types.Project{}, apperr.Validation("Deadline is required")
	}
	if in.BasePoints < 0 {
		return types.Project{}, apperr.Validation("Base points cannot be negative")
	}

	if err := s.validateLead(ctx, in.AssignedLead, in.Department); err != nil {
		return types.Project{}, err
	}

	project := types.Project{
		Name:         in.Name,
		Description:  in.Description,
		Department:   in.Department,
		AssignedLead: in.AssignedLead,
		Status:       types.ProjectPending,
		Priority:     in.Priority,
		Deadline:     in.Deadline,
		BasePoints:   in.BasePoints,
		IsActive:     true,
	}

	created, err := s.projects.Create(ctx, project)
	if err != nil {
		return types.Project{}, apperr.Internal(err)
	}

	if len(in.AssignedUsers) > 0 {
		members, err := s.users.GetByIDs(ctx, in.AssignedUsers)
		if err != nil {
			return types.Project{}, apperr.Internal(err)
		}
		if err := validateAssignees(created, members, len(in.AssignedUsers)); err != nil {
			return types.Project{}, err
		}
		if err := s.projects.AddMembers(ctx, created.ID, in.AssignedUsers); err != nil {
			return types.Project{}, apperr.Internal(err)
		}
		created.AssignedUsers = in.AssignedUsers
	}
	return created, nil
}

// Get returns a project visible to the principal.
func (s *ProjectService) Get(ctx context.Context, principal types.Principal, id int) (types.Project, error) {
	project, err := s.getProject(ctx, id)
	if err != nil {
		return types.Project{}, err
	}
	if err := canViewProject(principal, project); err != nil {
		return types.Project{}, err
	}
	return project, nil
}

// List returns projects scoped by role: admins see everything, leads see
// projects they lead, users see projects they are assigned to.
func (s *ProjectService) List(ctx context.Context, principal types.Principal, offset, limit int) ([]types.Project, int, error) {
	var leadID, memberID int
	switch {
	case principal.IsAdmin():
	case principal.Role == types.RoleLead:
		leadID = principal.ID
	default:
		memberID = principal.ID
	}

	projects, total, err := s.projects.List(ctx, leadID, memberID, offset, limit)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return projects, total, nil
}

// Update edits admin-mutable fields. Status "completed" is derived only and
// is rejected here; a lead change is revalidated like at creation.
func (s *ProjectService) Update(ctx context.Context, principal types.Principal, id int, in UpdateProjectInput) (types.Project, error) {
	if err := requireAdmin(principal); err != nil {
		return types.Project{}, err
	}

	project, err := s.getProject(ctx, id)
	if err != nil {
		return types.Project{}, err
	}

	if in.Name != nil {
		project.Name = *in.Name
	}
	if in.Description != nil {
		project.Description = *in.Description
	}
	if in.Status != nil {
		if !types.ValidProjectStatus(*in.Status) {
			return types.Project{}, apperr.Validation("Invalid project status")
		}
		if *in.Status == types.ProjectCompleted {
			return types.Project{}, apperr.Validation("Project status cannot be set to completed directly")
		}
		project.Status = *in.Status
	}
	if in.Priority != nil {
		if !types.ValidProjectPriority(*in.Priority) {
			return types.Project{}, apperr.Validation("Invalid project priority")
		}
		project.Priority = *in.Priority
	}
	if in.Deadline != nil {
		if in.Deadline.IsZero() {
			return types.Project{}, apperr.Validation("Deadline is required")
		}
		project.Deadline = *in.Deadline
	}
	if in.BasePoints != nil {
		if *in.BasePoints < 0 {
			return types.Project{}, apperr.Validation("Base points cannot be negative")
		}
		project.BasePoints = *in.BasePoints
	}
	if in.AssignedLead != nil && *in.AssignedLead != project.AssignedLead {
		if err := s.validateLead(ctx, *in.AssignedLead, project.Department); err != nil {
			return types.Project{}, err
		}
		project.AssignedLead = *in.AssignedLead
	}

	updated, err := s.projects.Update(ctx, project)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Project{}, apperr.NotFound("Project not found")
		}
		return types.Project{}, apperr.Internal(err)
	}
	updated.AssignedUsers = project.AssignedUsers
	return updated, nil
}

// Delete soft-deletes a project. Admin only. History and statistics already
// credited remain untouched.
func (s *ProjectService) Delete(ctx context.Context, principal types.Principal, id int) error {
	if err := requireAdmin(principal); err != nil {
		return err
	}
	if err := s.projects.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Project not found")
		}
		return apperr.Internal(err)
	}
	return nil
}

// AssignUsers adds members to a project. Only the assigned lead may do this,
// and every candidate in the batch must pass the assignment rules.
func (s *ProjectService) AssignUsers(ctx context.Context, principal types.Principal, projectID int, userIDs []int) (types.Project, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return types.Project{}, err
	}
	if err := requireProjectLead(principal, project); err != nil {
		return types.Project{}, err
	}

	candidates, err := s.users.GetByIDs(ctx, userIDs)
	if err != nil {
		return types.Project{}, apperr.Internal(err)
	}
	if err := validateAssignees(project, candidates, len(userIDs)); err != nil {
		return types.Project{}, err
	}

	if err := s.projects.AddMembers(ctx, projectID, userIDs); err != nil {
		return types.Project{}, apperr.Internal(err)
	}

	members, err := s.projects.MemberIDs(ctx, projectID)
	if err != nil {
		return types.Project{}, apperr.Internal(err)
	}
	project.AssignedUsers = members
	return project, nil
}

// ModulesOf lists a project's modules for principals who can see the project.
func (s *ProjectService) ModulesOf(ctx context.Context, principal types.Principal, projectID int) ([]types.Module, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := canViewModules(principal, project); err != nil {
		return nil, err
	}

	modules, err := s.modules.ListByProject(ctx, projectID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return modules, nil
}

// Recompute re-runs the aggregation for a project on demand. Admin only; the
// pipeline itself is idempotent so the endpoint is safe to retry.
func (s *ProjectService) Recompute(ctx context.Context, principal types.Principal, projectID int) (types.Project, error) {
	if err := requireAdmin(principal); err != nil {
		return types.Project{}, err
	}
	log.Printf("projects: manual recompute of project %d requested by admin %d", projectID, principal.ID)
	return s.pipeline.RecomputeProject(ctx, projectID)
}

func (s *ProjectService) getProject(ctx context.Context, id int) (types.Project, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Project{}, apperr.NotFound("Project not found")
		}
		return types.Project{}, apperr.Internal(err)
	}
	return project, nil
}

func (s *ProjectService) validateLead(ctx context.Context, leadID int, department string) error {
	lead, err := s.users.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Validation("Assigned lead does not exist")
		}
		return apperr.Internal(err)
	}
	if lead.Role != types.RoleLead || !lead.Approved || !lead.IsActive {
		return apperr.Validation("Assigned lead must be an approved, active lead")
	}
	if lead.Department != department {
		return apperr.Validation("Assigned lead must belong to the project's department")
	}
	return nil
}
