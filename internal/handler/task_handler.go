package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fibreflow/internal/service"
)

type TaskHandler struct {
	svc    *service.WorkflowService
	logger *zap.Logger
}

func NewTaskHandler(svc *service.WorkflowService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{svc: svc, logger: logger}
}

// GetMyTasks returns the caller's visible tasks under its role's view
// scope, with urgency derived from today's date.
func (h *TaskHandler) GetMyTasks(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}

	tasks, err := h.svc.GetMyTasks(c.Request.Context(), caller, time.Now())
	if err != nil {
		h.logger.Warn("GetMyTasks: request failed",
			zap.Int("caller_id", caller),
			zap.Error(err),
		)
		writeWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

type updateProgressRequest struct {
	Progress *int  `json:"progress" binding:"required"`
	Version  int64 `json:"version" binding:"required"`
}

func (h *TaskHandler) UpdateProgress(c *gin.Context) {
	taskID, ok := pathIntParam(c, "id")
	if !ok {
		return
	}
	caller, ok := callerID(c)
	if !ok {
		return
	}

	var req updateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("UpdateProgress: invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "progress and version required"})
		return
	}

	task, err := h.svc.UpdateTaskProgress(c.Request.Context(), taskID, caller, *req.Progress, req.Version)
	if err != nil {
		h.logger.Warn("UpdateProgress: rejected",
			zap.Int("task_id", taskID),
			zap.Int("caller_id", caller),
			zap.Error(err),
		)
		writeWorkflowError(c, err)
		return
	}

	h.logger.Info("UpdateProgress: success",
		zap.Int("task_id", taskID),
		zap.String("status", string(task.Status)),
		zap.Int("completion_percentage", task.CompletionPercentage),
	)
	c.JSON(http.StatusOK, gin.H{"task": task})
}

type assignTaskRequest struct {
	AssigneeID *int  `json:"assignee_id"`
	Version    int64 `json:"version" binding:"required"`
}

// AssignTask sets the task's assignee, or clears it when assignee_id is
// null.
func (h *TaskHandler) AssignTask(c *gin.Context) {
	taskID, ok := pathIntParam(c, "id")
	if !ok {
		return
	}
	caller, ok := callerID(c)
	if !ok {
		return
	}

	var req assignTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("AssignTask: invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "version required"})
		return
	}

	task, err := h.svc.AssignTask(c.Request.Context(), taskID, caller, req.AssigneeID, req.Version)
	if err != nil {
		h.logger.Warn("AssignTask: rejected",
			zap.Int("task_id", taskID),
			zap.Int("caller_id", caller),
			zap.Error(err),
		)
		writeWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"task": task})
}
