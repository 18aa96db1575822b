package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"time"

	"github.com/teamtrack/apiserver/internal/apperr"
	"github.com/teamtrack/apiserver/internal/storage"
	"github.com/teamtrack/apiserver/internal/store"
	"github.com/teamtrack/apiserver/types"
)

const maxHoursPerDay = 24

// DailyUpdateService implements daily progress reporting, the sole input to
// the aggregation cascade. Submitting or editing an update synchronously
// recomputes the module and its project before the call returns.
type DailyUpdateService struct {
	projects ProjectRepository
	modules  ModuleRepository
	updates  DailyUpdateRepository
	store    *storage.Storage
	pipeline *ProgressPipeline
	now      func() time.Time
}

func NewDailyUpdateService(
	projects ProjectRepository,
	modules ModuleRepository,
	updates DailyUpdateRepository,
	store *storage.Storage,
	pipeline *ProgressPipeline,
) *DailyUpdateService {
	return &DailyUpdateService{
		projects: projects,
		modules:  modules,
		updates:  updates,
		store:    store,
		pipeline: pipeline,
		now:      time.Now,
	}
}

// SubmitUpdateInput carries the report fields of a daily update.
type SubmitUpdateInput struct {
	ModuleID           int
	HoursWorked        float64
	ProgressPercentage int
	Description        string
	Blockers           string
	Status             string
}

// day truncates a timestamp to calendar-day granularity in UTC.
func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func validateReport(in SubmitUpdateInput) error {
	if in.HoursWorked < 0 || in.HoursWorked > maxHoursPerDay {
		return apperr.Validation("Hours worked must be between 0 and 24")
	}
	if in.Status == "" {
		return nil
	}
	if !types.ValidUpdateStatus(in.Status) {
		return apperr.Validation("Invalid update status")
	}
	return nil
}

// Submit records today's update for a module and runs the cascade. The
// author must be assigned to the module or be the project's lead. At most
// one update per author, module and day.
func (s *DailyUpdateService) Submit(ctx context.Context, principal types.Principal, in SubmitUpdateInput) (types.DailyUpdate, error) {
	if principal.IsAdmin() {
		return types.DailyUpdate{}, apperr.Forbidden("Admins do not submit daily updates")
	}
	if err := validateReport(in); err != nil {
		return types.DailyUpdate{}, err
	}

	module, err := s.modules.GetByID(ctx, in.ModuleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.DailyUpdate{}, apperr.NotFound("Module not found")
		}
		return types.DailyUpdate{}, apperr.Internal(err)
	}
	project, err := s.projects.GetByID(ctx, module.ProjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.DailyUpdate{}, apperr.NotFound("Project not found")
		}
		return types.DailyUpdate{}, apperr.Internal(err)
	}

	assignee, err := s.modules.IsAssignee(ctx, module.ID, principal.ID)
	if err != nil {
		return types.DailyUpdate{}, apperr.Internal(err)
	}
	if err := canTouchModule(principal, project, assignee); err != nil {
		return types.DailyUpdate{}, err
	}

	status := in.Status
	if status == "" {
		status = types.UpdateOnTrack
	}

	update := types.DailyUpdate{
		UserID:             principal.ID,
		ProjectID:          module.ProjectID,
		ModuleID:           module.ID,
		Date:               day(s.now()),
		HoursWorked:        in.HoursWorked,
		ProgressPercentage: clampProgress(in.ProgressPercentage),
		Description:        in.Description,
		Blockers:           in.Blockers,
		Status:             status,
	}

	created, err := s.updates.Create(ctx, update)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.DailyUpdate{}, apperr.Conflict("A daily update for this module has already been submitted today")
		}
		return types.DailyUpdate{}, apperr.Internal(err)
	}

	if err := s.cascade(ctx, module.ID, module.ProjectID); err != nil {
		return types.DailyUpdate{}, err
	}
	return created, nil
}

// Edit rewrites the report fields of an update. Only the author may edit,
// and only on the calendar day the update covers; afterwards the record is
// immutable. The cascade re-runs so latest-wins progress stays consistent.
func (s *DailyUpdateService) Edit(ctx context.Context, principal types.Principal, id int, in SubmitUpdateInput) (types.DailyUpdate, error) {
	update, err := s.getUpdate(ctx, id)
	if err != nil {
		return types.DailyUpdate{}, err
	}
	if update.UserID != principal.ID || principal.IsAdmin() {
		return types.DailyUpdate{}, apperr.Forbidden("Only the author can edit a daily update")
	}
	if !day(s.now()).Equal(day(update.Date)) {
		return types.DailyUpdate{}, apperr.Validation("Daily updates can only be edited on the day they were submitted")
	}
	if err := validateReport(in); err != nil {
		return types.DailyUpdate{}, err
	}

	update.HoursWorked = in.HoursWorked
	update.ProgressPercentage = clampProgress(in.ProgressPercentage)
	update.Description = in.Description
	update.Blockers = in.Blockers
	if in.Status != "" {
		update.Status = in.Status
	}

	edited, err := s.updates.Update(ctx, update)
	if err != nil {
		return types.DailyUpdate{}, apperr.Internal(err)
	}

	if err := s.cascade(ctx, update.ModuleID, update.ProjectID); err != nil {
		return types.DailyUpdate{}, err
	}
	return edited, nil
}

// ListByModule returns a module's updates, newest first, for principals who
// can see the owning project.
func (s *DailyUpdateService) ListByModule(ctx context.Context, principal types.Principal, moduleID int) ([]types.DailyUpdate, error) {
	module, err := s.modules.GetByID(ctx, moduleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Module not found")
		}
		return nil, apperr.Internal(err)
	}
	project, err := s.projects.GetByID(ctx, module.ProjectID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := canViewModules(principal, project); err != nil {
		return nil, err
	}

	updates, err := s.updates.ListByModule(ctx, moduleID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return updates, nil
}

// ListByProject returns all updates across a project's modules, newest
// first, for principals who can see the project.
func (s *DailyUpdateService) ListByProject(ctx context.Context, principal types.Principal, projectID int) ([]types.DailyUpdate, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Project not found")
		}
		return nil, apperr.Internal(err)
	}
	if err := canViewProject(principal, project); err != nil {
		return nil, err
	}

	updates, err := s.updates.ListByProject(ctx, projectID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return updates, nil
}

// ListByUser returns a user's updates. Users see their own; leads and
// admins see anyone's.
func (s *DailyUpdateService) ListByUser(ctx context.Context, principal types.Principal, userID int) ([]types.DailyUpdate, error) {
	if !principal.IsAdmin() && principal.Role != types.RoleLead && principal.ID != userID {
		return nil, apperr.Forbidden("Not authorized to view these updates")
	}
	updates, err := s.updates.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return updates, nil
}

// Attach uploads a supporting file for an update and records its storage
// key. Author only, same-day only, like Edit.
func (s *DailyUpdateService) Attach(ctx context.Context, principal types.Principal, id int, filename string, r io.Reader, size int64, contentType string) (types.DailyUpdate, error) {
	if s.store == nil {
		return types.DailyUpdate{}, apperr.Validation("Attachments are not enabled")
	}

	update, err := s.getUpdate(ctx, id)
	if err != nil {
		return types.DailyUpdate{}, err
	}
	if update.UserID != principal.ID || principal.IsAdmin() {
		return types.DailyUpdate{}, apperr.Forbidden("Only the author can attach files to a daily update")
	}
	if !day(s.now()).Equal(day(update.Date)) {
		return types.DailyUpdate{}, apperr.Validation("Daily updates can only be edited on the day they were submitted")
	}

	key := fmt.Sprintf("attachments/%d/%s", update.ID, path.Base(filename))
	if err := s.store.Put(ctx, key, r, size, contentType); err != nil {
		return types.DailyUpdate{}, apperr.Internal(err)
	}

	oldKey := update.AttachmentKey
	update.AttachmentKey = key
	saved, err := s.updates.Update(ctx, update)
	if err != nil {
		return types.DailyUpdate{}, apperr.Internal(err)
	}

	if oldKey != "" && oldKey != key {
		if err := s.store.Delete(ctx, oldKey); err != nil {
			log.Printf("daily updates: removing replaced attachment %s failed: %v", oldKey, err)
		}
	}
	return saved, nil
}

// Attachment opens the stored attachment of an update for principals who
// can see the owning project.
func (s *DailyUpdateService) Attachment(ctx context.Context, principal types.Principal, id int) (io.ReadCloser, string, error) {
	if s.store == nil {
		return nil, "", apperr.NotFound("Attachment not found")
	}

	update, err := s.getUpdate(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if update.AttachmentKey == "" {
		return nil, "", apperr.NotFound("Attachment not found")
	}

	project, err := s.projects.GetByID(ctx, update.ProjectID)
	if err != nil {
		return nil, "", apperr.Internal(err)
	}
	if !principal.IsAdmin() && principal.ID != update.UserID {
		if err := canViewProject(principal, project); err != nil {
			return nil, "", err
		}
	}

	rc, err := s.store.Get(ctx, update.AttachmentKey)
	if err != nil {
		return nil, "", apperr.Internal(err)
	}
	return rc, path.Base(update.AttachmentKey), nil
}

func (s *DailyUpdateService) cascade(ctx context.Context, moduleID, projectID int) error {
	if _, err := s.pipeline.RecomputeModule(ctx, moduleID); err != nil {
		return err
	}
	if _, err := s.pipeline.RecomputeProject(ctx, projectID); err != nil {
		return err
	}
	return nil
}

func (s *DailyUpdateService) getUpdate(ctx context.Context, id int) (types.DailyUpdate, error) {
	update, err := s.updates.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.DailyUpdate{}, apperr.NotFound("Daily update not found")
		}
		return types.DailyUpdate{}, apperr.Internal(err)
	}
	return update, nil
}
