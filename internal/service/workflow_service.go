package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	contractsmq "fibreflow/contracts/mq"
	"fibreflow/internal/model"
	"fibreflow/internal/workflow"
	"fibreflow/pkg/metrics"
	"fibreflow/pkg/trace"
)

// TxStarter opens database transactions. *pgxpool.Pool satisfies it.
type TxStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type ProjectStore interface {
	GetByID(ctx context.Context, id int) (model.Project, error)
	List(ctx context.Context) ([]model.Project, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id int) (model.Project, error)
	UpdateWorkflowState(ctx context.Context, tx pgx.Tx, p model.Project) (int64, error)
	BumpVersion(ctx context.Context, tx pgx.Tx, id int) (int64, error)
	UpdateCompletion(ctx context.Context, tx pgx.Tx, id int, percentage int) error
}

type PhaseStore interface {
	ListByProject(ctx context.Context, projectID int) ([]model.Phase, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, phase model.Phase) error
}

type TaskStore interface {
	GetByID(ctx context.Context, id int) (model.Task, error)
	List(ctx context.Context) ([]model.Task, error)
	ListByProject(ctx context.Context, projectID int) ([]model.Task, error)
	UpdateProgress(ctx context.Context, tx pgx.Tx, task model.Task) error
	UpdateAssignee(ctx context.Context, tx pgx.Tx, taskID int, assigneeID *int) error
}

type UserStore interface {
	GetByID(ctx context.Context, id int) (model.User, error)
	List(ctx context.Context) ([]model.User, error)
}

type UpdateStore interface {
	ListByProject(ctx context.Context, projectID int) ([]model.ProjectUpdate, error)
}

type OutboxStore interface {
	InsertTx(ctx context.Context, tx pgx.Tx, aggregateID int, routingKey string, payload any) error
}

// ProgressCache is the derived-view cache in front of progress reads.
type ProgressCache interface {
	Get(ctx context.Context, projectID int) (workflow.ProjectProgress, bool)
	Set(ctx context.Context, projectID int, progress workflow.ProjectProgress) error
	Invalidate(ctx context.Context, projectID int)
}

// WorkflowService hosts the workflow engine: it assembles snapshots from
// the store, runs the pure computations, and persists accepted mutations
// transactionally together with their outbox events.
type WorkflowService struct {
	db       TxStarter
	projects ProjectStore
	phases   PhaseStore
	tasks    TaskStore
	users    UserStore
	updates  UpdateStore
	outbox   OutboxStore
	cache    ProgressCache
	logger   *zap.Logger
}

func NewWorkflowService(
	db TxStarter,
	projects ProjectStore,
	phases PhaseStore,
	tasks TaskStore,
	users UserStore,
	updates UpdateStore,
	outbox OutboxStore,
	cache ProgressCache,
	logger *zap.Logger,
) *WorkflowService {
	return &WorkflowService{
		db:       db,
		projects: projects,
		phases:   phases,
		tasks:    tasks,
		users:    users,
		updates:  updates,
		outbox:   outbox,
		cache:    cache,
		logger:   logger,
	}
}

// ProjectOverview is the staff-facing dashboard view of one project:
// the project record, derived progress, and the caller's visible tasks.
type ProjectOverview struct {
	Project  model.Project              `json:"project"`
	Progress workflow.ProjectProgress   `json:"progress"`
	Tasks    []workflow.TaskWithProject `json:"tasks"`
}

func (s *WorkflowService) loadSnapshot(ctx context.Context, project model.Project) (workflow.Snapshot, error) {
	phases, err := s.phases.ListByProject(ctx, project.ID)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	tasks, err := s.tasks.ListByProject(ctx, project.ID)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	updates, err := s.updates.ListByProject(ctx, project.ID)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	return workflow.Snapshot{
		Project: project,
		Phases:  phases,
		Tasks:   tasks,
		Users:   users,
		Updates: updates,
		Version: project.Version,
	}, nil
}

// GetProjectOverview returns the project with its per-phase and overall
// progress plus the tasks the caller's view scope admits. Client-role
// callers are rejected here and served by GetClientView instead.
func (s *WorkflowService) GetProjectOverview(ctx context.Context, projectID, callerID int, now time.Time) (ProjectOverview, error) {
	caller, err := s.users.GetByID(ctx, callerID)
	if err != nil {
		return ProjectOverview{}, err
	}
	cap, err := workflow.Lookup(caller.Role)
	if err != nil {
		return ProjectOverview{}, err
	}
	if cap.ClientViewOnly {
		return ProjectOverview{}, &workflow.ClientViewOnlyError{UserID: caller.ID}
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return ProjectOverview{}, err
	}
	phases, err := s.phases.ListByProject(ctx, projectID)
	if err != nil {
		return ProjectOverview{}, err
	}
	tasks, err := s.tasks.ListByProject(ctx, projectID)
	if err != nil {
		return ProjectOverview{}, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return ProjectOverview{}, err
	}

	vc := workflow.ViewContext{
		Projects: []model.Project{project},
		Phases:   phases,
		Users:    users,
	}
	visible, err := workflow.ResolveTaskView(tasks, vc, caller, now)
	if err != nil {
		return ProjectOverview{}, err
	}

	progress, ok := s.cache.Get(ctx, projectID)
	if !ok {
		progress = workflow.ProjectProgressOf(phases, workflow.NormalizeTasks(tasks))
		if err := s.cache.Set(ctx, projectID, progress); err != nil {
			s.logger.Warn("Failed to cache project progress", zap.Int("project_id", projectID), zap.Error(err))
		}
	}
	return ProjectOverview{Project: project, Progress: progress, Tasks: visible}, nil
}

// GetMyTasks returns the tasks visible to callerID under its role's view
// scope, projected with project/phase names and urgency.
func (s *WorkflowService) GetMyTasks(ctx context.Context, callerID int, now time.Time) ([]workflow.TaskWithProject, error) {
	caller, err := s.users.GetByID(ctx, callerID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.tasks.List(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := s.projects.List(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	var phases []model.Phase
	for _, p := range projects {
		ph, err := s.phases.ListByProject(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		phases = append(phases, ph...)
	}

	vc := workflow.ViewContext{
		Projects: projects,
		Phases:   phases,
		Users:    users,
	}
	return workflow.ResolveTaskView(tasks, vc, caller, now)
}

// GetClientView returns the sanitized client projection of a project.
// Client-role callers may only view the project they are the client of;
// staff roles may preview any project's client view.
func (s *WorkflowService) GetClientView(ctx context.Context, projectID, callerID int) (workflow.ClientProjectView, error) {
	caller, err := s.users.GetByID(ctx, callerID)
	if err != nil {
		return workflow.ClientProjectView{}, err
	}
	cap, err := workflow.Lookup(caller.Role)
	if err != nil {
		return workflow.ClientProjectView{}, err
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return workflow.ClientProjectView{}, err
	}
	if cap.ClientViewOnly && project.ClientID != caller.ID {
		return workflow.ClientProjectView{}, &workflow.PermissionDeniedError{
			UserID:     caller.ID,
			Role:       caller.Role,
			Capability: workflow.CapabilityViewProject,
		}
	}

	snap, err := s.loadSnapshot(ctx, project)
	if err != nil {
		return workflow.ClientProjectView{}, err
	}
	snap.Tasks = workflow.NormalizeTasks(snap.Tasks)
	return workflow.BuildClientView(snap), nil
}

// AdvancePhase moves a project from phaseID to the next phase. The whole
// mutation runs under a row lock with a version check; a stale
// expectedVersion fails with *ConcurrentModificationError and nothing is
// written.
func (s *WorkflowService) AdvancePhase(ctx context.Context, projectID, phaseID, actorID int, expectedVersion int64) (workflow.AdvanceResult, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return workflow.AdvanceResult{}, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return workflow.AdvanceResult{}, err
	}
	defer tx.Rollback(ctx)

	project, err := s.projects.GetForUpdate(ctx, tx, projectID)
	if err != nil {
		return workflow.AdvanceResult{}, err
	}
	if project.Version != expectedVersion {
		metrics.IncrementPhaseAdvance("conflict")
		return workflow.AdvanceResult{}, &workflow.ConcurrentModificationError{
			ProjectID:       projectID,
			ExpectedVersion: expectedVersion,
			ActualVersion:   project.Version,
		}
	}

	snap, err := s.loadSnapshot(ctx, project)
	if err != nil {
		return workflow.AdvanceResult{}, err
	}
	snap.Tasks = workflow.NormalizeTasks(snap.Tasks)

	result, err := workflow.AdvancePhase(snap, phaseID, actor)
	if err != nil {
		s.recordAdvanceFailure(actor, err)
		return workflow.AdvanceResult{}, err
	}

	now := time.Now()
	before := make(map[int]model.PhaseStatus, len(snap.Phases))
	for _, ph := range snap.Phases {
		before[ph.ID] = ph.Status
	}
	var completedName, nextName model.PhaseName
	for _, ph := range result.Phases {
		if ph.Status == before[ph.ID] {
			continue
		}
		switch ph.Status {
		case model.PhaseStatusComplete:
			ph.CompletedDate = &now
			completedName = ph.PhaseName
		case model.PhaseActive:
			ph.StartDate = &now
			nextName = ph.PhaseName
		}
		if err := s.phases.UpdateStatus(ctx, tx, ph); err != nil {
			return workflow.AdvanceResult{}, err
		}
	}

	version, err := s.projects.UpdateWorkflowState(ctx, tx, result.Project)
	if err != nil {
		return workflow.AdvanceResult{}, err
	}
	result.Project.Version = version

	payload := contractsmq.PhaseAdvancedPayload{
		ProjectID:        projectID,
		PhaseID:          phaseID,
		PhaseName:        string(completedName),
		NextPhaseName:    string(nextName),
		ActorID:          actorID,
		ProjectCompleted: result.ProjectCompleted,
		Version:          version,
		TraceID:          trace.FromContext(ctx),
	}
	if err := s.outbox.InsertTx(ctx, tx, projectID, contractsmq.RoutingKeyPhaseAdvanced, payload); err != nil {
		return workflow.AdvanceResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return workflow.AdvanceResult{}, err
	}

	s.cache.Invalidate(ctx, projectID)
	metrics.IncrementPhaseAdvance("success")
	s.logger.Info("Phase advanced",
		zap.Int("project_id", projectID),
		zap.Int("phase_id", phaseID),
		zap.Int("actor_id", actorID),
		zap.Bool("project_completed", result.ProjectCompleted),
		zap.Int64("version", version),
	)
	return result, nil
}

func (s *WorkflowService) recordAdvanceFailure(actor model.User, err error) {
	switch e := err.(type) {
	case *workflow.PermissionDeniedError:
		metrics.IncrementPhaseAdvance("denied")
		metrics.IncrementPermissionDenied(string(actor.Role), e.Capability)
	case *workflow.PhaseAdvanceBlockedError:
		metrics.IncrementPhaseAdvance("blocked")
	default:
		metrics.IncrementPhaseAdvance("rejected")
	}
}

// UpdateTaskProgress sets a task's completion percentage, derives its
// status, and refreshes the owning project's overall completion.
func (s *WorkflowService) UpdateTaskProgress(ctx context.Context, taskID, actorID, percentage int, expectedVersion int64) (model.Task, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return model.Task{}, err
	}
	if err := workflow.CheckUpdateTaskProgress(actor); err != nil {
		metrics.IncrementTaskProgressUpdate("denied")
		if e, ok := err.(*workflow.PermissionDeniedError); ok {
			metrics.IncrementPermissionDenied(string(actor.Role), e.Capability)
		}
		return model.Task{}, err
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return model.Task{}, err
	}

	// assigned_only roles may only report progress on their own tasks
	cap, _ := workflow.Lookup(actor.Role)
	if cap.ViewScope == workflow.ScopeAssignedOnly && (task.AssigneeID == nil || *task.AssigneeID != actor.ID) {
		metrics.IncrementTaskProgressUpdate("denied")
		metrics.IncrementPermissionDenied(string(actor.Role), workflow.CapabilityUpdateTaskProgress)
		return model.Task{}, &workflow.PermissionDeniedError{
			UserID:     actor.ID,
			Role:       actor.Role,
			Capability: workflow.CapabilityUpdateTaskProgress,
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return model.Task{}, err
	}
	defer tx.Rollback(ctx)

	project, err := s.projects.GetForUpdate(ctx, tx, task.ProjectID)
	if err != nil {
		return model.Task{}, err
	}
	if project.Version != expectedVersion {
		metrics.IncrementTaskProgressUpdate("conflict")
		return model.Task{}, &workflow.ConcurrentModificationError{
			ProjectID:       task.ProjectID,
			ExpectedVersion: expectedVersion,
			ActualVersion:   project.Version,
		}
	}

	updated := workflow.ApplyTaskProgress(task, percentage)
	if err := s.tasks.UpdateProgress(ctx, tx, updated); err != nil {
		return model.Task{}, err
	}

	phases, err := s.phases.ListByProject(ctx, task.ProjectID)
	if err != nil {
		return model.Task{}, err
	}
	tasks, err := s.tasks.ListByProject(ctx, task.ProjectID)
	if err != nil {
		return model.Task{}, err
	}
	for i := range tasks {
		if tasks[i].ID == updated.ID {
			tasks[i] = updated
		}
	}
	progress := workflow.ProjectProgressOf(phases, workflow.NormalizeTasks(tasks))
	if err := s.projects.UpdateCompletion(ctx, tx, task.ProjectID, progress.OverallProgress); err != nil {
		return model.Task{}, err
	}

	version, err := s.projects.BumpVersion(ctx, tx, task.ProjectID)
	if err != nil {
		return model.Task{}, err
	}

	payload := contractsmq.TaskProgressUpdatedPayload{
		TaskID:    taskID,
		ProjectID: task.ProjectID,
		ActorID:   actorID,
		Progress:  updated.CompletionPercentage,
		Status:    string(updated.Status),
		Version:   version,
		TraceID:   trace.FromContext(ctx),
	}
	if err := s.outbox.InsertTx(ctx, tx, task.ProjectID, contractsmq.RoutingKeyTaskProgressUpdated, payload); err != nil {
		return model.Task{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Task{}, err
	}

	s.cache.Invalidate(ctx, task.ProjectID)
	metrics.IncrementTaskProgressUpdate("success")
	return updated, nil
}

// AssignTask sets or clears a task's assignee. Requires the
// modifyWorkflow capability.
func (s *WorkflowService) AssignTask(ctx context.Context, taskID, actorID int, assigneeID *int, expectedVersion int64) (model.Task, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return model.Task{}, err
	}
	if err := workflow.CheckModifyWorkflow(actor); err != nil {
		if e, ok := err.(*workflow.PermissionDeniedError); ok {
			metrics.IncrementPermissionDenied(string(actor.Role), e.Capability)
		}
		return model.Task{}, err
	}

	if assigneeID != nil {
		if _, err := s.users.GetByID(ctx, *assigneeID); err != nil {
			return model.Task{}, err
		}
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return model.Task{}, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return model.Task{}, err
	}
	defer tx.Rollback(ctx)

	project, err := s.projects.GetForUpdate(ctx, tx, task.ProjectID)
	if err != nil {
		return model.Task{}, err
	}
	if project.Version != expectedVersion {
		return model.Task{}, &workflow.ConcurrentModificationError{
			ProjectID:       task.ProjectID,
			ExpectedVersion: expectedVersion,
			ActualVersion:   project.Version,
		}
	}

	if err := s.tasks.UpdateAssignee(ctx, tx, taskID, assigneeID); err != nil {
		return model.Task{}, err
	}
	version, err := s.projects.BumpVersion(ctx, tx, task.ProjectID)
	if err != nil {
		return model.Task{}, err
	}

	payload := contractsmq.TaskAssignedPayload{
		TaskID:    taskID,
		ProjectID: task.ProjectID,
		ActorID:   actorID,
		Version:   version,
		TraceID:   trace.FromContext(ctx),
	}
	if assigneeID != nil {
		payload.AssigneeID = *assigneeID
	}
	if err := s.outbox.InsertTx(ctx, tx, task.ProjectID, contractsmq.RoutingKeyTaskAssigned, payload); err != nil {
		return model.Task{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Task{}, err
	}

	s.cache.Invalidate(ctx, task.ProjectID)
	task.AssigneeID = assigneeID
	return task, nil
}
