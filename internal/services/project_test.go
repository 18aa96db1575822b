package services

import (
	"context"
	"testing"

	"github.com/teamtrack/apiserver/internal/apperr"
	"github.com/teamtrack/apiserver/types"
)

type projectFixture struct {
	*pipelineFixture
	users   *fakeUserRepo
	service *ProjectService
	lead    types.Principal
	member  types.Principal
}

func newProjectFixture() *projectFixture {
	pf := newPipelineFixture()
	users := newFakeUserRepo()
	users.add(types.User{ID: 1, Role: types.RoleLead, Approved: true, IsActive: true, Department: "engineering"})
	users.add(types.User{ID: 2, Role: types.RoleUser, Approved: true, IsActive: true, Department: "engineering"})
	users.add(types.User{ID: 3, Role: types.RoleUser, Approved: true, IsActive: true, Department: "engineering"})
	users.add(types.User{ID: 4, Role: types.RoleUser, Approved: true, IsActive: true, Department: "sales"})

	return &projectFixture{
		pipelineFixture: pf,
		users:           users,
		service:         NewProjectService(pf.projects, pf.modules, users, pf.pipeline),
		lead:            types.Principal{ID: 1, Type: types.PrincipalUser, Role: types.RoleLead, Department: "engineering"},
		member:          types.Principal{ID: 2, Type: types.PrincipalUser, Role: types.RoleUser, Department: "engineering"},
	}
}

func validCreateInput() CreateProjectInput {
	return CreateProjectInput{
		Name:         "billing revamp",
		Department:   "engineering",
		AssignedLead: 1,
		Deadline:     testNow.AddDate(0, 1, 0),
		BasePoints:   100,
	}
}

func TestProjectCreateAdminOnly(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	if _, err := f.service.Create(ctx, f.lead, validCreateInput()); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("lead create: expected forbidden, got %v", err)
	}

	project, err := f.service.Create(ctx, adminPrincipal, validCreateInput())
	if err != nil {
		t.Fatalf("admin create: %v", err)
	}
	if project.Status != types.ProjectPending {
		t.Fatalf("status = %q, want pending", project.Status)
	}
	if project.Priority != types.PriorityMedium {
		t.Fatalf("priority = %q, want default medium", project.Priority)
	}
	if !project.IsActive {
		t.Fatal("new projects must be active")
	}
}

func TestProjectCreateLeadValidation(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	in := validCreateInput()
	in.AssignedLead = 2 // regular user
	if _, err := f.service.Create(ctx, adminPrincipal, in); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("non-lead: expected validation error, got %v", err)
	}

	in = validCreateInput()
	in.Department = "sales" // lead 1 is engineering
	if _, err := f.service.Create(ctx, adminPrincipal, in); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("wrong department: expected validation error, got %v", err)
	}

	in = validCreateInput()
	in.AssignedLead = 999
	if _, err := f.service.Create(ctx, adminPrincipal, in); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("missing lead: expected validation error, got %v", err)
	}
}

func TestProjectUpdateRejectsDirectCompletion(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	project, err := f.service.Create(ctx, adminPrincipal, validCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	completed := types.ProjectCompleted
	if _, err := f.service.Update(ctx, adminPrincipal, project.ID, UpdateProjectInput{Status: &completed}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	onHold := types.ProjectOnHold
	updated, err := f.service.Update(ctx, adminPrincipal, project.ID, UpdateProjectInput{Status: &onHold})
	if err != nil {
		t.Fatalf("on hold: %v", err)
	}
	if updated.Status != types.ProjectOnHold {
		t.Fatalf("status = %q, want on_hold", updated.Status)
	}
}

func TestProjectListScoping(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	p1, _ := f.service.Create(ctx, adminPrincipal, validCreateInput())
	in := validCreateInput()
	in.Name = "unrelated"
	in.AssignedUsers = []int{3}
	p2, _ := f.service.Create(ctx, adminPrincipal, in)

	_, total, err := f.service.List(ctx, adminPrincipal, 0, 20)
	if err != nil || total != 2 {
		t.Fatalf("admin list: total=%d err=%v", total, err)
	}

	if _, total, err = f.service.List(ctx, f.lead, 0, 20); err != nil || total != 2 {
		t.Fatalf("lead list: total=%d err=%v", total, err)
	}

	memberOf3 := types.Principal{ID: 3, Type: types.PrincipalUser, Role: types.RoleUser, Department: "engineering"}
	scoped, total, err := f.service.List(ctx, memberOf3, 0, 20)
	if err != nil {
		t.Fatalf("member list: %v", err)
	}
	if total != 1 || scoped[0].ID != p2.ID {
		t.Fatalf("member should see only project %d, got %v (total %d)", p2.ID, scoped, total)
	}

	if _, err := f.service.Get(ctx, memberOf3, p1.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("member get of unrelated project: expected forbidden, got %v", err)
	}
}

func TestProjectAssignUsers(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	project, err := f.service.Create(ctx, adminPrincipal, validCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Admins are excluded from assignment; it belongs to the lead.
	if _, err := f.service.AssignUsers(ctx, adminPrincipal, project.ID, []int{2}); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("admin assign: expected forbidden, got %v", err)
	}

	// Cross-department candidate rejects the whole batch.
	if _, err := f.service.AssignUsers(ctx, f.lead, project.ID, []int{2, 4}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("cross-department: expected validation error, got %v", err)
	}

	got, err := f.service.AssignUsers(ctx, f.lead, project.ID, []int{2, 3})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(got.AssignedUsers) != 2 {
		t.Fatalf("members = %v, want [2 3]", got.AssignedUsers)
	}

	// Re-assigning an existing member is add-to-set, not an error.
	got, err = f.service.AssignUsers(ctx, f.lead, project.ID, []int{2})
	if err != nil {
		t.Fatalf("re-assign: %v", err)
	}
	if len(got.AssignedUsers) != 2 {
		t.Fatalf("members after re-assign = %v, want unchanged", got.AssignedUsers)
	}
}

func TestProjectSoftDelete(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	project, err := f.service.Create(ctx, adminPrincipal, validCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.service.Delete(ctx, f.lead, project.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("lead delete: expected forbidden, got %v", err)
	}
	if err := f.service.Delete(ctx, adminPrincipal, project.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.service.Get(ctx, adminPrincipal, project.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("deleted project: expected not found, got %v", err)
	}
	if err := f.service.Delete(ctx, adminPrincipal, project.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("double delete: expected not found, got %v", err)
	}
}

func TestProjectModulesVisibility(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	project, err := f.service.Create(ctx, adminPrincipal, validCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.addModule(types.Module{ProjectID: project.ID, Name: "api"})

	outsider := types.Principal{ID: 3, Type: types.PrincipalUser, Role: types.RoleUser}
	_, err = f.service.ModulesOf(ctx, outsider, project.ID)
	if !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("outsider: expected forbidden, got %v", err)
	}
	if got := apperr.MessageOf(err); got != "Not authorized to view these modules" {
		t.Fatalf("message = %q", got)
	}

	modules, err := f.service.ModulesOf(ctx, f.lead, project.ID)
	if err != nil {
		t.Fatalf("lead modules: %v", err)
	}
	if len(modules) != 1 {
		t.Fatalf("modules = %d, want 1", len(modules))
	}
}
