package services

import (
	"context"
	"testing"
	"time"

	"github.com/teamtrack/apiserver/types"
)

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type pipelineFixture struct {
	projects *fakeProjectRepo
	modules  *fakeModuleRepo
	updates  *fakeUpdateRepo
	stats    *fakeStatsRepo
	pipeline *ProgressPipeline
}

func newPipelineFixture() *pipelineFixture {
	projects := newFakeProjectRepo()
	modules := newFakeModuleRepo()
	updates := newFakeUpdateRepo()
	statsRepo := newFakeStatsRepo()

	statsService := NewStatsService(statsRepo)
	statsService.now = func() time.Time { return testNow }

	pipeline := NewProgressPipeline(projects, modules, updates, statsService)
	pipeline.now = func() time.Time { return testNow }

	return &pipelineFixture{
		projects: projects,
		modules:  modules,
		updates:  updates,
		stats:    statsRepo,
		pipeline: pipeline,
	}
}

func (f *pipelineFixture) addProject(p types.Project) types.Project {
	if p.Status == "" {
		p.Status = types.ProjectPending
	}
	p.IsActive = true
	return f.projects.add(p)
}

func (f *pipelineFixture) addModule(m types.Module) types.Module {
	if m.Status == "" {
		m.Status = types.ModulePending
	}
	return f.modules.add(m)
}

func (f *pipelineFixture) addUpdate(t *testing.T, u types.DailyUpdate) types.DailyUpdate {
	t.Helper()
	created, err := f.updates.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("create update: %v", err)
	}
	return created
}

func TestRecomputeModuleNoUpdates(t *testing.T) {
	f := newPipelineFixture()
	project := f.addProject(types.Project{Deadline: testNow.AddDate(0, 1, 0)})
	module := f.addModule(types.Module{ProjectID: project.ID, Progress: 30, Status: types.ModuleInProgress})

	got, err := f.pipeline.RecomputeModule(context.Background(), module.ID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if got.Progress != 30 {
		t.Fatalf("progress = %d, want untouched 30", got.Progress)
	}
}

func TestRecomputeModuleLatestWins(t *testing.T) {
	f := newPipelineFixture()
	project := f.addProject(types.Project{Deadline: testNow.AddDate(0, 1, 0)})
	module := f.addModule(types.Module{ProjectID: project.ID})

	day1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	f.addUpdate(t, types.DailyUpdate{UserID: 2, ProjectID: project.ID, ModuleID: module.ID, Date: day1, HoursWorked: 4, ProgressPercentage: 60})
	f.addUpdate(t, types.DailyUpdate{UserID: 2, ProjectID: project.ID, ModuleID: module.ID, Date: day2, HoursWorked: 3, ProgressPercentage: 40})

	got, err := f.pipeline.RecomputeModule(context.Background(), module.ID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if got.Progress != 40 {
		t.Fatalf("progress = %d, want latest report 40", got.Progress)
	}
	if got.ActualTime != 7 {
		t.Fatalf("actual time = %v, want summed 7", got.ActualTime)
	}
	if got.Status != types.ModuleInProgress {
		t.Fatalf("status = %q, want in_progress", got.Status)
	}
	if got.StartDate == nil {
		t.Fatal("start date should be stamped on first progress")
	}
}

func TestRecomputeModuleCompletion(t *testing.T) {
	f := newPipelineFixture()
	project := f.addProject(types.Project{Deadline: testNow.AddDate(0, 1, 0)})
	module := f.addModule(types.Module{ProjectID: project.ID})

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	f.addUpdate(t, types.DailyUpdate{UserID: 2, ProjectID: project.ID, ModuleID: module.ID, Date: day, HoursWorked: 5, ProgressPercentage: 100})

	got, err := f.pipeline.RecomputeModule(context.Background(), module.ID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if got.Status != types.ModuleCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	if got.EndDate == nil || !got.EndDate.Equal(testNow) {
		t.Fatalf("end date = %v, want %v", got.EndDate, testNow)
	}
}

func TestRecomputeProjectRoundedMean(t *testing.T) {
	f := newPipelineFixture()
	project := f.addProject(types.Project{Deadline: testNow.AddDate(0, 1, 0)})
	f.addModule(types.Module{ProjectID: project.ID, Progress: 50, EstimatedTime: 10, ActualTime: 8})
	f.addModule(types.Module{ProjectID: project.ID, Progress: 75, EstimatedTime: 20, ActualTime: 12})
	f.addModule(types.Module{ProjectID: project.ID, Progress: 25, EstimatedTime: 30, ActualTime: 5})

	got, err := f.pipeline.RecomputeProject(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if got.Progress != 50 {
		t.Fatalf("progress = %d, want mean 50", got.Progress)
	}
	if got.TotalEstimatedHours != 60 {
		t.Fatalf("estimated = %v, want 60", got.TotalEstimatedHours)
	}
	if got.TotalActualHours != 25 {
		t.Fatalf("actual = %v, want 25", got.TotalActualHours)
	}
	if got.Status == types.ProjectCompleted {
		t.Fatal("project should not be completed at 50%")
	}
}

func TestRecomputeProjectNoModules(t *testing.T) {
	f := newPipelineFixture()
	project := f.addProject(types.Project{Status: types.ProjectInProgress, Progress: 40, Deadline: testNow.AddDate(0, 1, 0)})

	got, err := f.pipeline.RecomputeProject(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if got.Progress != 0 {
		t.Fatalf("progress = %d, want 0 with no modules", got.Progress)
	}
	if got.Status != types.ProjectInProgress {
		t.Fatalf("status = %q, want unchanged in_progress", got.Status)
	}
}

func TestRecomputeProjectCompletionDistributesOnce(t *testing.T) {
	f := newPipelineFixture()
	deadline := testNow.AddDate(0, 0, 5)
	project := f.addProject(types.Project{
		AssignedLead: 1,
		BasePoints:   100,
		Deadline:     deadline,
	})
	module := f.addModule(types.Module{ProjectID: project.ID, Progress: 100, EstimatedTime: 100, ActualTime: 100})
	_ = module

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	f.addUpdate(t, types.DailyUpdate{UserID: 2, ProjectID: project.ID, ModuleID: 1, Date: day, HoursWorked: 60, ProgressPercentage: 100})
	f.addUpdate(t, types.DailyUpdate{UserID: 3, ProjectID: project.ID, ModuleID: 1, Date: day, HoursWorked: 40, ProgressPercentage: 100})

	got, err := f.pipeline.RecomputeProject(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if got.Status != types.ProjectCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	if got.CompletedAt == nil {
		t.Fatal("completed_at should be stamped")
	}
	if !got.PointsDistributed {
		t.Fatal("points should be marked distributed")
	}
	if f.projects.claims != 1 {
		t.Fatalf("claims = %d, want 1", f.projects.claims)
	}
	if len(f.stats.history) != 3 {
		t.Fatalf("history entries = %d, want lead plus two members", len(f.stats.history))
	}

	// Five days early on a met estimate: multiplier 1.5, total 150.
	leadStats := f.stats.stats[1]
	if leadStats.TotalPoints != 60 {
		t.Fatalf("lead points = %d, want 60", leadStats.TotalPoints)
	}
	if leadStats.CompletedProjects != 1 {
		t.Fatalf("lead completed projects = %d, want 1", leadStats.CompletedProjects)
	}
	if f.stats.stats[2].TotalPoints != 54 {
		t.Fatalf("user 2 points = %d, want 54", f.stats.stats[2].TotalPoints)
	}
	if f.stats.stats[3].TotalPoints != 36 {
		t.Fatalf("user 3 points = %d, want 36", f.stats.stats[3].TotalPoints)
	}
	if f.stats.stats[2].CompletedProjects != 0 {
		t.Fatal("member completed-projects counter must not move")
	}

	// Idempotence: a second recompute must not distribute again.
	firstCompleted := *got.CompletedAt
	again, err := f.pipeline.RecomputeProject(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("second recompute: %v", err)
	}
	if f.projects.claims != 1 {
		t.Fatalf("claims after rerun = %d, want still 1", f.projects.claims)
	}
	if len(f.stats.history) != 3 {
		t.Fatalf("history after rerun = %d, want still 3", len(f.stats.history))
	}
	if again.CompletedAt == nil || !again.CompletedAt.Equal(firstCompleted) {
		t.Fatalf("completed_at changed on rerun: %v vs %v", again.CompletedAt, firstCompleted)
	}
}

func TestRecomputeProjectMonthlyRollup(t *testing.T) {
	f := newPipelineFixture()
	project := f.addProject(types.Project{AssignedLead: 1, BasePoints: 100, Deadline: testNow})
	f.addModule(types.Module{ProjectID: project.ID, Progress: 100})

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	f.addUpdate(t, types.DailyUpdate{UserID: 2, ProjectID: project.ID, ModuleID: 1, Date: day, HoursWorked: 10, ProgressPercentage: 100})

	if _, err := f.pipeline.RecomputeProject(context.Background(), project.ID); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	month := types.MonthKey(testNow)
	rollup, ok := f.stats.monthly[2][month]
	if !ok {
		t.Fatalf("no monthly rollup for user 2 in %s", month)
	}
	if rollup.PointsEarned != 60 {
		t.Fatalf("monthly points = %d, want 60", rollup.PointsEarned)
	}
	if rollup.HoursWorked != 10 {
		t.Fatalf("monthly hours = %v, want 10", rollup.HoursWorked)
	}
}
