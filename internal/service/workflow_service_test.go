package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	contractsmq "fibreflow/contracts/mq"
	"fibreflow/internal/model"
	"fibreflow/internal/workflow"
)

// fakeTx satisfies pgx.Tx through embedding; only the lifecycle methods
// the service touches are overridden.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	tx *fakeTx
}

func (d *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	d.tx = &fakeTx{}
	return d.tx, nil
}

type recordedEvent struct {
	aggregateID int
	routingKey  string
	payload     any
}

// fakeStore backs every store interface with in-memory maps.
type fakeStore struct {
	projects map[int]model.Project
	phases   map[int]model.Phase
	tasks    map[int]model.Task
	users    map[int]model.User
	updates  []model.ProjectUpdate
	events   []recordedEvent
}

func (s *fakeStore) GetByID(ctx context.Context, id int) (model.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return model.Project{}, fmt.Errorf("project %d: %w", id, pgx.ErrNoRows)
	}
	return p, nil
}

func (s *fakeStore) List(ctx context.Context) ([]model.Project, error) {
	var out []model.Project
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) GetForUpdate(ctx context.Context, tx pgx.Tx, id int) (model.Project, error) {
	return s.GetByID(ctx, id)
}

func (s *fakeStore) UpdateWorkflowState(ctx context.Context, tx pgx.Tx, p model.Project) (int64, error) {
	cur := s.projects[p.ID]
	p.Version = cur.Version + 1
	s.projects[p.ID] = p
	return p.Version, nil
}

func (s *fakeStore) BumpVersion(ctx context.Context, tx pgx.Tx, id int) (int64, error) {
	p := s.projects[id]
	p.Version++
	s.projects[id] = p
	return p.Version, nil
}

func (s *fakeStore) UpdateCompletion(ctx context.Context, tx pgx.Tx, id int, percentage int) error {
	p := s.projects[id]
	p.CompletionPercentage = percentage
	s.projects[id] = p
	return nil
}

func (s *fakeStore) phasesStore() *fakePhaseStore { return &fakePhaseStore{s} }

type fakePhaseStore struct{ s *fakeStore }

func (f *fakePhaseStore) ListByProject(ctx context.Context, projectID int) ([]model.Phase, error) {
	var out []model.Phase
	for _, ph := range f.s.phases {
		if ph.ProjectID == projectID {
			out = append(out, ph)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakePhaseStore) UpdateStatus(ctx context.Context, tx pgx.Tx, phase model.Phase) error {
	f.s.phases[phase.ID] = phase
	return nil
}

type fakeTaskStore struct{ s *fakeStore }

func (f *fakeTaskStore) GetByID(ctx context.Context, id int) (model.Task, error) {
	t, ok := f.s.tasks[id]
	if !ok {
		return model.Task{}, fmt.Errorf("task %d: %w", id, pgx.ErrNoRows)
	}
	return t, nil
}

func (f *fakeTaskStore) List(ctx context.Context) ([]model.Task, error) {
	var out []model.Task
	for _, t := range f.s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTaskStore) ListByProject(ctx context.Context, projectID int) ([]model.Task, error) {
	all, _ := f.List(ctx)
	var out []model.Task
	for _, t := range all {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) UpdateProgress(ctx context.Context, tx pgx.Tx, task model.Task) error {
	f.s.tasks[task.ID] = task
	return nil
}

func (f *fakeTaskStore) UpdateAssignee(ctx context.Context, tx pgx.Tx, taskID int, assigneeID *int) error {
	t := f.s.tasks[taskID]
	t.AssigneeID = assigneeID
	f.s.tasks[taskID] = t
	return nil
}

type fakeUserStore struct{ s *fakeStore }

func (f *fakeUserStore) GetByID(ctx context.Context, id int) (model.User, error) {
	u, ok := f.s.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("user %d: %w", id, pgx.ErrNoRows)
	}
	return u, nil
}

func (f *fakeUserStore) List(ctx context.Context) ([]model.User, error) {
	var out []model.User
	for _, u := range f.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeUpdateStore struct{ s *fakeStore }

func (f *fakeUpdateStore) ListByProject(ctx context.Context, projectID int) ([]model.ProjectUpdate, error) {
	var out []model.ProjectUpdate
	for _, u := range f.s.updates {
		if u.ProjectID == projectID {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeOutbox struct{ s *fakeStore }

func (f *fakeOutbox) InsertTx(ctx context.Context, tx pgx.Tx, aggregateID int, routingKey string, payload any) error {
	f.s.events = append(f.s.events, recordedEvent{aggregateID, routingKey, payload})
	return nil
}

type fakeCache struct {
	entries      map[int]workflow.ProjectProgress
	invalidated  []int
	hits, misses int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[int]workflow.ProjectProgress)}
}

func (c *fakeCache) Get(ctx context.Context, projectID int) (workflow.ProjectProgress, bool) {
	p, ok := c.entries[projectID]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return p, ok
}

func (c *fakeCache) Set(ctx context.Context, projectID int, progress workflow.ProjectProgress) error {
	c.entries[projectID] = progress
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, projectID int) {
	delete(c.entries, projectID)
	c.invalidated = append(c.invalidated, projectID)
}

func intptr(v int) *int { return &v }

func newFixture() *fakeStore {
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	return &fakeStore{
		projects: map[int]model.Project{
			1: {
				ID:           1,
				Name:         "Riverside fibre rollout",
				Status:       model.ProjectActive,
				CurrentPhase: model.PhaseDesign,
				ManagerID:    2,
				ClientID:     4,
				Version:      3,
			},
			2: {
				ID:           2,
				Name:         "Hillcrest extension",
				Status:       model.ProjectActive,
				CurrentPhase: model.PhasePlanning,
				ManagerID:    2,
				ClientID:     5,
				Version:      1,
			},
		},
		phases: map[int]model.Phase{
			1: {ID: 1, ProjectID: 1, PhaseName: model.PhasePlanning, Status: model.PhaseStatusComplete},
			2: {ID: 2, ProjectID: 1, PhaseName: model.PhaseDesign, Status: model.PhaseActive},
			3: {ID: 3, ProjectID: 1, PhaseName: model.PhaseImplementation, Status: model.PhaseLocked},
			4: {ID: 4, ProjectID: 1, PhaseName: model.PhaseTesting, Status: model.PhaseLocked},
			5: {ID: 5, ProjectID: 1, PhaseName: model.PhaseDeployment, Status: model.PhaseLocked},
			6: {ID: 6, ProjectID: 2, PhaseName: model.PhasePlanning, Status: model.PhaseActive},
		},
		tasks: map[int]model.Task{
			10: {ID: 10, ProjectID: 1, PhaseID: 2, Name: "Survey sign-off", Status: model.TaskCompleted, CompletionPercentage: 100, IsBlocking: true},
			11: {ID: 11, ProjectID: 1, PhaseID: 2, Name: "Route design", Status: model.TaskInProgress, CompletionPercentage: 40, AssigneeID: intptr(3), DueDate: &due},
			12: {ID: 12, ProjectID: 2, PhaseID: 6, Name: "Wayleave applications", Status: model.TaskNotStarted, AssigneeID: intptr(2)},
		},
		users: map[int]model.User{
			1: {ID: 1, Name: "Ada", Role: model.RoleAdmin},
			2: {ID: 2, Name: "Priya", Role: model.RoleProjectManager},
			3: {ID: 3, Name: "Tom", Role: model.RoleFieldTechnician},
			4: {ID: 4, Name: "Northgate Ltd", Role: model.RoleClient},
		},
	}
}

func newTestService(store *fakeStore) (*WorkflowService, *fakeDB, *fakeCache) {
	db := &fakeDB{}
	cache := newFakeCache()
	svc := NewWorkflowService(
		db,
		store,
		store.phasesStore(),
		&fakeTaskStore{store},
		&fakeUserStore{store},
		&fakeUpdateStore{store},
		&fakeOutbox{store},
		cache,
		zap.NewNop(),
	)
	return svc, db, cache
}

func TestAdvancePhaseCommits(t *testing.T) {
	store := newFixture()
	svc, db, cache := newTestService(store)

	result, err := svc.AdvancePhase(context.Background(), 1, 2, 2, 3)
	if err != nil {
		t.Fatalf("AdvancePhase: %v", err)
	}
	if result.Project.CurrentPhase != model.PhaseImplementation {
		t.Errorf("current phase = %s, want implementation", result.Project.CurrentPhase)
	}
	if result.Project.Version != 4 {
		t.Errorf("version = %d, want 4", result.Project.Version)
	}
	if !db.tx.committed {
		t.Error("transaction not committed")
	}
	if store.phases[2].Status != model.PhaseStatusComplete {
		t.Errorf("phase 2 status = %s, want completed", store.phases[2].Status)
	}
	if store.phases[2].CompletedDate == nil {
		t.Error("completed phase has no completed date")
	}
	if store.phases[3].Status != model.PhaseActive {
		t.Errorf("phase 3 status = %s, want active", store.phases[3].Status)
	}
	if len(store.events) != 1 {
		t.Fatalf("outbox events = %d, want 1", len(store.events))
	}
	if store.events[0].routingKey != contractsmq.RoutingKeyPhaseAdvanced {
		t.Errorf("routing key = %s", store.events[0].routingKey)
	}
	payload := store.events[0].payload.(contractsmq.PhaseAdvancedPayload)
	if payload.NextPhaseName != string(model.PhaseImplementation) {
		t.Errorf("next phase in payload = %s", payload.NextPhaseName)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != 1 {
		t.Errorf("cache invalidations = %v, want [1]", cache.invalidated)
	}
}

func TestAdvancePhaseVersionConflict(t *testing.T) {
	store := newFixture()
	svc, db, _ := newTestService(store)

	_, err := svc.AdvancePhase(context.Background(), 1, 2, 2, 2)
	var conflict *workflow.ConcurrentModificationError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConcurrentModificationError", err)
	}
	if conflict.ActualVersion != 3 || conflict.ExpectedVersion != 2 {
		t.Errorf("conflict versions = %d/%d", conflict.ExpectedVersion, conflict.ActualVersion)
	}
	if !db.tx.rolledBack {
		t.Error("transaction not rolled back")
	}
	if store.phases[2].Status != model.PhaseActive {
		t.Error("phase mutated despite conflict")
	}
	if len(store.events) != 0 {
		t.Error("outbox event written despite conflict")
	}
}

func TestAdvancePhaseBlockedRollsBack(t *testing.T) {
	store := newFixture()
	blocker := store.tasks[10]
	blocker.Status = model.TaskInProgress
	blocker.CompletionPercentage = 60
	store.tasks[10] = blocker
	svc, db, _ := newTestService(store)

	_, err := svc.AdvancePhase(context.Background(), 1, 2, 2, 3)
	var blocked *workflow.PhaseAdvanceBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("err = %v, want PhaseAdvanceBlockedError", err)
	}
	if len(blocked.BlockingTaskIDs) != 1 || blocked.BlockingTaskIDs[0] != 10 {
		t.Errorf("blocking tasks = %v, want [10]", blocked.BlockingTaskIDs)
	}
	if !db.tx.rolledBack {
		t.Error("transaction not rolled back")
	}
	if store.projects[1].Version != 3 {
		t.Error("version bumped despite rejection")
	}
}

func TestAdvancePhaseDeniedForTechnician(t *testing.T) {
	store := newFixture()
	svc, _, _ := newTestService(store)

	_, err := svc.AdvancePhase(context.Background(), 1, 2, 3, 3)
	var denied *workflow.PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("err = %v, want PermissionDeniedError", err)
	}
	if len(store.events) != 0 {
		t.Error("outbox event written despite denial")
	}
}

func TestUpdateTaskProgressDerivesStatus(t *testing.T) {
	store := newFixture()
	svc, db, cache := newTestService(store)

	updated, err := svc.UpdateTaskProgress(context.Background(), 11, 3, 100, 3)
	if err != nil {
		t.Fatalf("UpdateTaskProgress: %v", err)
	}
	if updated.Status != model.TaskCompleted {
		t.Errorf("status = %s, want completed", updated.Status)
	}
	if !db.tx.committed {
		t.Error("transaction not committed")
	}
	if store.projects[1].Version != 4 {
		t.Errorf("version = %d, want 4", store.projects[1].Version)
	}
	// planning 100, design 100, three locked phases 0 -> mean 40
	if store.projects[1].CompletionPercentage != 40 {
		t.Errorf("project completion = %d, want 40", store.projects[1].CompletionPercentage)
	}
	if len(store.events) != 1 || store.events[0].routingKey != contractsmq.RoutingKeyTaskProgressUpdated {
		t.Fatalf("events = %+v", store.events)
	}
	if len(cache.invalidated) == 0 {
		t.Error("cache not invalidated")
	}
}

func TestUpdateTaskProgressDeniedForClient(t *testing.T) {
	store := newFixture()
	svc, _, _ := newTestService(store)

	_, err := svc.UpdateTaskProgress(context.Background(), 11, 4, 50, 3)
	var denied *workflow.PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("err = %v, want PermissionDeniedError", err)
	}
	if store.tasks[11].CompletionPercentage != 40 {
		t.Error("task mutated despite denial")
	}
}

func TestUpdateTaskProgressAssignedOnlyScope(t *testing.T) {
	store := newFixture()
	svc, _, _ := newTestService(store)

	// task 12 belongs to the project manager, not the technician
	_, err := svc.UpdateTaskProgress(context.Background(), 12, 3, 50, 1)
	var denied *workflow.PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("err = %v, want PermissionDeniedError", err)
	}

	// the project manager's scope is not assigned_only, so it may update
	// any task in its projects
	if _, err := svc.UpdateTaskProgress(context.Background(), 11, 2, 60, 3); err != nil {
		t.Errorf("manager update failed: %v", err)
	}
}

func TestAssignTask(t *testing.T) {
	store := newFixture()
	svc, _, _ := newTestService(store)

	task, err := svc.AssignTask(context.Background(), 11, 2, intptr(1), 3)
	if err != nil {
		t.Fatalf("AssignTask: %v", err)
	}
	if task.AssigneeID == nil || *task.AssigneeID != 1 {
		t.Errorf("assignee = %v, want 1", task.AssigneeID)
	}
	if store.projects[1].Version != 4 {
		t.Error("version not bumped")
	}
	if len(store.events) != 1 || store.events[0].routingKey != contractsmq.RoutingKeyTaskAssigned {
		t.Fatalf("events = %+v", store.events)
	}

	_, err = svc.AssignTask(context.Background(), 11, 3, intptr(1), 4)
	var denied *workflow.PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("technician assign err = %v, want PermissionDeniedError", err)
	}
}

func TestGetProjectOverviewCaching(t *testing.T) {
	store := newFixture()
	svc, _, cache := newTestService(store)
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	first, err := svc.GetProjectOverview(context.Background(), 1, 2, now)
	if err != nil {
		t.Fatalf("GetProjectOverview: %v", err)
	}
	// planning completed 100, design 50 (1 of 2 tasks complete), rest 0 -> 30
	if first.Progress.OverallProgress != 30 {
		t.Errorf("overall = %d, want 30", first.Progress.OverallProgress)
	}
	if len(first.Tasks) != 2 {
		t.Errorf("manager sees %d tasks in project 1, want 2", len(first.Tasks))
	}
	if cache.misses != 1 {
		t.Errorf("cache misses = %d, want 1", cache.misses)
	}

	second, err := svc.GetProjectOverview(context.Background(), 1, 2, now)
	if err != nil {
		t.Fatalf("second GetProjectOverview: %v", err)
	}
	if cache.hits != 1 {
		t.Errorf("cache hits = %d, want 1", cache.hits)
	}
	if second.Progress.OverallProgress != first.Progress.OverallProgress {
		t.Error("cached progress differs from computed")
	}
}

func TestGetProjectOverviewRejectsClient(t *testing.T) {
	store := newFixture()
	svc, _, _ := newTestService(store)

	_, err := svc.GetProjectOverview(context.Background(), 1, 4, time.Now())
	var clientOnly *workflow.ClientViewOnlyError
	if !errors.As(err, &clientOnly) {
		t.Fatalf("err = %v, want ClientViewOnlyError", err)
	}
}

func TestGetClientViewOwnership(t *testing.T) {
	store := newFixture()
	svc, _, _ := newTestService(store)

	view, err := svc.GetClientView(context.Background(), 1, 4)
	if err != nil {
		t.Fatalf("GetClientView for own project: %v", err)
	}
	if view.ProjectName != "Riverside fibre rollout" {
		t.Errorf("project name = %q", view.ProjectName)
	}

	_, err = svc.GetClientView(context.Background(), 2, 4)
	var denied *workflow.PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("foreign project err = %v, want PermissionDeniedError", err)
	}

	if _, err := svc.GetClientView(context.Background(), 2, 2); err != nil {
		t.Errorf("staff preview of client view failed: %v", err)
	}
}

func TestGetMyTasksScoping(t *testing.T) {
	store := newFixture()
	svc, _, _ := newTestService(store)
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	tasks, err := svc.GetMyTasks(context.Background(), 3, now)
	if err != nil {
		t.Fatalf("GetMyTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != 11 {
		t.Fatalf("technician tasks = %+v, want only task 11", tasks)
	}
	if tasks[0].ProjectName != "Riverside fibre rollout" {
		t.Errorf("project name = %q", tasks[0].ProjectName)
	}
	if tasks[0].UrgencyStatus != workflow.UrgencyDueSoon {
		t.Errorf("urgency = %s, want due_soon", tasks[0].UrgencyStatus)
	}

	all, err := svc.GetMyTasks(context.Background(), 1, now)
	if err != nil {
		t.Fatalf("GetMyTasks admin: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("admin sees %d tasks, want 3", len(all))
	}
}
