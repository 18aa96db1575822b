package services

import (
	"context"
	"sort"
	"time"

	"github.com/teamtrack/apiserver/internal/store"
	"github.com/teamtrack/apiserver/types"
)

// In-memory repository fakes. Behavior mirrors the SQL store: sentinel
// errors, add-to-set membership, newest-first update listing and the
// one-shot distribution claim.

type fakeUserRepo struct {
	users  map[int]types.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int]types.User{}, nextID: 1}
}

func (r *fakeUserRepo) add(u types.User) types.User {
	if u.ID == 0 {
		u.ID = r.nextID
	}
	if u.ID >= r.nextID {
		r.nextID = u.ID + 1
	}
	r.users[u.ID] = u
	return u
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	u, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) GetByIDs(_ context.Context, ids []int) ([]types.User, error) {
	var out []types.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) List(_ context.Context, department string, offset, limit int) ([]types.User, int, error) {
	var all []types.User
	for _, u := range r.users {
		if department == "" || u.Department == department {
			all = append(all, u)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (r *fakeUserRepo) ListPending(_ context.Context) ([]types.User, error) {
	var out []types.User
	for _, u := range r.users {
		if !u.Approved {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	for _, u := range r.users {
		if u.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	return r.add(user), nil
}

func (r *fakeUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type fakeProjectRepo struct {
	projects map[int]types.Project
	members  map[int]map[int]bool
	nextID   int
	claims   int
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{
		projects: map[int]types.Project{},
		members:  map[int]map[int]bool{},
		nextID:   1,
	}
}

func (r *fakeProjectRepo) add(p types.Project) types.Project {
	if p.ID == 0 {
		p.ID = r.nextID
	}
	if p.ID >= r.nextID {
		r.nextID = p.ID + 1
	}
	r.projects[p.ID] = p
	if r.members[p.ID] == nil {
		r.members[p.ID] = map[int]bool{}
	}
	return p
}

func (r *fakeProjectRepo) withMembers(p types.Project) types.Project {
	ids := make([]int, 0, len(r.members[p.ID]))
	for id := range r.members[p.ID] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	p.AssignedUsers = ids
	return p
}

func (r *fakeProjectRepo) GetByID(_ context.Context, id int) (types.Project, error) {
	p, ok := r.projects[id]
	if !ok || !p.IsActive {
		return types.Project{}, store.ErrNotFound
	}
	return r.withMembers(p), nil
}

func (r *fakeProjectRepo) List(_ context.Context, leadID, memberID, offset, limit int) ([]types.Project, int, error) {
	var all []types.Project
	for _, p := range r.projects {
		if !p.IsActive {
			continue
		}
		if leadID != 0 && p.AssignedLead != leadID {
			continue
		}
		if memberID != 0 && !r.members[p.ID][memberID] {
			continue
		}
		all = append(all, r.withMembers(p))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (r *fakeProjectRepo) Create(_ context.Context, project types.Project) (types.Project, error) {
	return r.add(project), nil
}

func (r *fakeProjectRepo) Update(_ context.Context, project types.Project) (types.Project, error) {
	if _, ok := r.projects[project.ID]; !ok {
		return types.Project{}, store.ErrNotFound
	}
	r.projects[project.ID] = project
	return project, nil
}

func (r *fakeProjectRepo) UpdateAggregates(_ context.Context, id, progress int, estimated, actual float64, status string, completedAt *time.Time) error {
	p, ok := r.projects[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Progress = progress
	p.TotalEstimatedHours = estimated
	p.TotalActualHours = actual
	p.Status = status
	if p.CompletedAt == nil && completedAt != nil {
		p.CompletedAt = completedAt
	}
	r.projects[id] = p
	return nil
}

func (r *fakeProjectRepo) ClaimPointsDistribution(_ context.Context, id int) (bool, error) {
	p, ok := r.projects[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if p.PointsDistributed {
		return false, nil
	}
	p.PointsDistributed = true
	r.projects[id] = p
	r.claims++
	return true, nil
}

func (r *fakeProjectRepo) SoftDelete(_ context.Context, id int) error {
	p, ok := r.projects[id]
	if !ok || !p.IsActive {
		return store.ErrNotFound
	}
	p.IsActive = false
	r.projects[id] = p
	return nil
}

func (r *fakeProjectRepo) AddMembers(_ context.Context, projectID int, userIDs []int) error {
	if r.members[projectID] == nil {
		r.members[projectID] = map[int]bool{}
	}
	for _, id := range userIDs {
		r.members[projectID][id] = true
	}
	return nil
}

func (r *fakeProjectRepo) MemberIDs(_ context.Context, projectID int) ([]int, error) {
	ids := make([]int, 0, len(r.members[projectID]))
	for id := range r.members[projectID] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func (r *fakeProjectRepo) IsMember(_ context.Context, projectID, userID int) (bool, error) {
	return r.members[projectID][userID], nil
}

type fakeModuleRepo struct {
	modules   map[int]types.Module
	assignees map[int]map[int]bool
	nextID    int
}

func newFakeModuleRepo() *fakeModuleRepo {
	return &fakeModuleRepo{
		modules:   map[int]types.Module{},
		assignees: map[int]map[int]bool{},
		nextID:    1,
	}
}

func (r *fakeModuleRepo) add(m types.Module) types.Module {
	if m.ID == 0 {
		m.ID = r.nextID
	}
	if m.ID >= r.nextID {
		r.nextID = m.ID + 1
	}
	r.modules[m.ID] = m
	if r.assignees[m.ID] == nil {
		r.assignees[m.ID] = map[int]bool{}
	}
	return m
}

func (r *fakeModuleRepo) withAssignees(m types.Module) types.Module {
	ids := make([]int, 0, len(r.assignees[m.ID]))
	for id := range r.assignees[m.ID] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	m.AssignedUsers = ids
	return m
}

func (r *fakeModuleRepo) GetByID(_ context.Context, id int) (types.Module, error) {
	m, ok := r.modules[id]
	if !ok {
		return types.Module{}, store.ErrNotFound
	}
	return r.withAssignees(m), nil
}

func (r *fakeModuleRepo) ListByProject(_ context.Context, projectID int) ([]types.Module, error) {
	var out []types.Module
	for _, m := range r.modules {
		if m.ProjectID == projectID {
			out = append(out, r.withAssignees(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeModuleRepo) Create(_ context.Context, module types.Module) (types.Module, error) {
	return r.add(module), nil
}

func (r *fakeModuleRepo) Update(_ context.Context, module types.Module) (types.Module, error) {
	if _, ok := r.modules[module.ID]; !ok {
		return types.Module{}, store.ErrNotFound
	}
	r.modules[module.ID] = module
	return module, nil
}

func (r *fakeModuleRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.modules[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.modules, id)
	delete(r.assignees, id)
	return nil
}

func (r *fakeModuleRepo) AddAssignees(_ context.Context, moduleID int, userIDs []int) error {
	if r.assignees[moduleID] == nil {
		r.assignees[moduleID] = map[int]bool{}
	}
	for _, id := range userIDs {
		r.assignees[moduleID][id] = true
	}
	return nil
}

func (r *fakeModuleRepo) AssigneeIDs(_ context.Context, moduleID int) ([]int, error) {
	ids := make([]int, 0, len(r.assignees[moduleID]))
	for id := range r.assignees[moduleID] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func (r *fakeModuleRepo) IsAssignee(_ context.Context, moduleID, userID int) (bool, error) {
	return r.assignees[moduleID][userID], nil
}

type fakeUpdateRepo struct {
	updates []types.DailyUpdate
	nextID  int
	clock   time.Time
}

func newFakeUpdateRepo() *fakeUpdateRepo {
	return &fakeUpdateRepo{nextID: 1, clock: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (r *fakeUpdateRepo) GetByID(_ context.Context, id int) (types.DailyUpdate, error) {
	for _, u := range r.updates {
		if u.ID == id {
			return u, nil
		}
	}
	return types.DailyUpdate{}, store.ErrNotFound
}

func (r *fakeUpdateRepo) Create(_ context.Context, update types.DailyUpdate) (types.DailyUpdate, error) {
	for _, u := range r.updates {
		if u.UserID == update.UserID && u.ModuleID == update.ModuleID && u.Date.Equal(update.Date) {
			return types.DailyUpdate{}, store.ErrConflict
		}
	}
	update.ID = r.nextID
	r.nextID++
	r.clock = r.clock.Add(time.Minute)
	update.CreatedAt = r.clock
	update.UpdatedAt = r.clock
	r.updates = append(r.updates, update)
	return update, nil
}

func (r *fakeUpdateRepo) Update(_ context.Context, update types.DailyUpdate) (types.DailyUpdate, error) {
	for i, u := range r.updates {
		if u.ID == update.ID {
			update.CreatedAt = u.CreatedAt
			r.clock = r.clock.Add(time.Minute)
			update.UpdatedAt = r.clock
			r.updates[i] = update
			return update, nil
		}
	}
	return types.DailyUpdate{}, store.ErrNotFound
}

// newestFirst matches the store ordering: created_at DESC, id DESC.
func newestFirst(in []types.DailyUpdate) []types.DailyUpdate {
	out := make([]types.DailyUpdate, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *fakeUpdateRepo) ListByModule(_ context.Context, moduleID int) ([]types.DailyUpdate, error) {
	var out []types.DailyUpdate
	for _, u := range r.updates {
		if u.ModuleID == moduleID {
			out = append(out, u)
		}
	}
	return newestFirst(out), nil
}

func (r *fakeUpdateRepo) ListByProject(_ context.Context, projectID int) ([]types.DailyUpdate, error) {
	var out []types.DailyUpdate
	for _, u := range r.updates {
		if u.ProjectID == projectID {
			out = append(out, u)
		}
	}
	return newestFirst(out), nil
}

func (r *fakeUpdateRepo) ListByUser(_ context.Context, userID int) ([]types.DailyUpdate, error) {
	var out []types.DailyUpdate
	for _, u := range r.updates {
		if u.UserID == userID {
			out = append(out, u)
		}
	}
	return newestFirst(out), nil
}

func (r *fakeUpdateRepo) HoursByUserForProject(_ context.Context, projectID int) (map[int]float64, error) {
	hours := map[int]float64{}
	for _, u := range r.updates {
		if u.ProjectID == projectID {
			hours[u.UserID] += u.HoursWorked
		}
	}
	return hours, nil
}

type fakeStatsRepo struct {
	stats   map[int]types.UserStats
	history []types.ProjectHistoryEntry
	monthly map[int]map[string]types.MonthlyStat
	nextID  int
}

func newFakeStatsRepo() *fakeStatsRepo {
	return &fakeStatsRepo{
		stats:   map[int]types.UserStats{},
		monthly: map[int]map[string]types.MonthlyStat{},
		nextID:  1,
	}
}

func (r *fakeStatsRepo) EnsureForUser(_ context.Context, userID int) error {
	if _, ok := r.stats[userID]; !ok {
		r.stats[userID] = types.UserStats{UserID: userID}
	}
	return nil
}

func (r *fakeStatsRepo) GetByUserID(_ context.Context, userID int) (types.UserStats, error) {
	s, ok := r.stats[userID]
	if !ok {
		return types.UserStats{}, store.ErrNotFound
	}
	return s, nil
}

func (r *fakeStatsRepo) IncrementTotals(_ context.Context, userID, points int, hours float64, completedInc int) error {
	s := r.stats[userID]
	s.UserID = userID
	s.TotalProjects++
	s.CompletedProjects += completedInc
	s.TotalPoints += points
	s.TotalHoursWorked += hours
	r.stats[userID] = s
	return nil
}

func (r *fakeStatsRepo) AppendHistory(_ context.Context, entry types.ProjectHistoryEntry) (types.ProjectHistoryEntry, error) {
	entry.ID = r.nextID
	r.nextID++
	r.history = append(r.history, entry)
	return entry, nil
}

func (r *fakeStatsRepo) UpsertMonthly(_ context.Context, userID int, month string, points int, hours float64) error {
	if r.monthly[userID] == nil {
		r.monthly[userID] = map[string]types.MonthlyStat{}
	}
	m := r.monthly[userID][month]
	m.UserID = userID
	m.Month = month
	m.ProjectsCompleted++
	m.PointsEarned += points
	m.HoursWorked += hours
	r.monthly[userID][month] = m
	return nil
}

func (r *fakeStatsRepo) History(_ context.Context, userID int) ([]types.ProjectHistoryEntry, error) {
	var out []types.ProjectHistoryEntry
	for _, e := range r.history {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeStatsRepo) Monthly(_ context.Context, userID int) ([]types.MonthlyStat, error) {
	var out []types.MonthlyStat
	for _, m := range r.monthly[userID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (r *fakeStatsRepo) Leaderboard(_ context.Context, limit int) ([]types.LeaderboardEntry, error) {
	var out []types.LeaderboardEntry
	for _, s := range r.stats {
		out = append(out, types.LeaderboardEntry{UserID: s.UserID, TotalPoints: s.TotalPoints})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalPoints > out[j].TotalPoints })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type fakeTokenRepo struct {
	tokens map[string]types.RefreshToken
	nextID int
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: map[string]types.RefreshToken{}, nextID: 1}
}

func (r *fakeTokenRepo) Create(_ context.Context, token types.RefreshToken) (types.RefreshToken, error) {
	token.ID = r.nextID
	r.nextID++
	r.tokens[token.Token] = token
	return token, nil
}

func (r *fakeTokenRepo) Get(_ context.Context, token string) (types.RefreshToken, error) {
	t, ok := r.tokens[token]
	if !ok {
		return types.RefreshToken{}, store.ErrNotFound
	}
	return t, nil
}

func (r *fakeTokenRepo) Revoke(_ context.Context, token string) error {
	if t, ok := r.tokens[token]; ok {
		t.Revoked = true
		r.tokens[token] = t
	}
	return nil
}

func (r *fakeTokenRepo) DeleteExpired(_ context.Context) (int64, error) {
	var n int64
	for key, t := range r.tokens {
		if time.Now().After(t.ExpiresAt) {
			delete(r.tokens, key)
			n++
		}
	}
	return n, nil
}

type fakeAdminRepo struct {
	admins map[string]types.Admin
	nextID int
}

func newFakeAdminRepo() *fakeAdminRepo {
	return &fakeAdminRepo{admins: map[string]types.Admin{}, nextID: 1}
}

func (r *fakeAdminRepo) GetByEmail(_ context.Context, email string) (types.Admin, error) {
	a, ok := r.admins[email]
	if !ok {
		return types.Admin{}, store.ErrNotFound
	}
	return a, nil
}

func (r *fakeAdminRepo) Upsert(_ context.Context, admin types.Admin) (types.Admin, error) {
	if existing, ok := r.admins[admin.Email]; ok {
		admin.ID = existing.ID
	} else {
		admin.ID = r.nextID
		r.nextID++
	}
	r.admins[admin.Email] = admin
	return admin, nil
}

type fakeNotifier struct {
	welcomes  []string
	approvals []string
	rejects   []string
}

func (n *fakeNotifier) Welcome(_ context.Context, _, name string) error {
	n.welcomes = append(n.welcomes, name)
	return nil
}

func (n *fakeNotifier) AccountApproved(_ context.Context, _, name string) error {
	n.approvals = append(n.approvals, name)
	return nil
}

func (n *fakeNotifier) AccountRejected(_ context.Context, _, name string) error {
	n.rejects = append(n.rejects, name)
	return nil
}
