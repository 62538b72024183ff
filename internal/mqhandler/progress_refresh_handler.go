package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"fibreflow/internal/cache"
	"fibreflow/internal/repository"
	"fibreflow/internal/workflow"
)

// ProgressRefreshHandler rebuilds the cached progress view for a project
// whenever a workflow mutation event arrives. All three workflow routing
// keys carry a project_id, so one handler serves every queue.
type ProgressRefreshHandler struct {
	projectRepo *repository.ProjectRepository
	phaseRepo   *repository.PhaseRepository
	taskRepo    *repository.TaskRepository
	cache       *cache.ProgressCache
	logger      *zap.Logger
}

func NewProgressRefreshHandler(
	projectRepo *repository.ProjectRepository,
	phaseRepo *repository.PhaseRepository,
	taskRepo *repository.TaskRepository,
	progressCache *cache.ProgressCache,
	logger *zap.Logger,
) *ProgressRefreshHandler {
	return &ProgressRefreshHandler{
		projectRepo: projectRepo,
		phaseRepo:   phaseRepo,
		taskRepo:    taskRepo,
		cache:       progressCache,
		logger:      logger,
	}
}

type projectScopedEvent struct {
	ProjectID int    `json:"project_id"`
	TraceID   string `json:"trace_id"`
}

func (h *ProgressRefreshHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	// Malformed payloads are acked, not returned: the consumer nacks with
	// requeue on error, and a payload that cannot decode never will.
	var p projectScopedEvent
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Discarding undecodable workflow event", zap.Error(err))
		return nil
	}
	if p.ProjectID <= 0 {
		h.logger.Error("Discarding workflow event with invalid project_id", zap.Int("project_id", p.ProjectID))
		return nil
	}

	h.logger.Info("Refreshing project progress cache",
		zap.Int("project_id", p.ProjectID),
		zap.String("trace_id", p.TraceID),
	)

	if _, err := h.projectRepo.GetByID(ctx, p.ProjectID); err != nil {
		return err
	}
	phases, err := h.phaseRepo.ListByProject(ctx, p.ProjectID)
	if err != nil {
		return err
	}
	tasks, err := h.taskRepo.ListByProject(ctx, p.ProjectID)
	if err != nil {
		return err
	}

	progress := workflow.ProjectProgressOf(phases, workflow.NormalizeTasks(tasks))
	if err := h.cache.Set(ctx, p.ProjectID, progress); err != nil {
		return err
	}

	h.logger.Info("Project progress cache refreshed",
		zap.Int("project_id", p.ProjectID),
		zap.Int("overall_progress", progress.OverallProgress),
	)
	return nil
}
