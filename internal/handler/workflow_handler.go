package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fibreflow/internal/service"
)

const userIDHeader = "X-User-ID"

// callerID extracts the acting user's id from the user_id query parameter
// or the X-User-ID header. Authentication happens upstream; this service
// only resolves the caller's role.
func callerID(c *gin.Context) (int, bool) {
	raw := c.Query("user_id")
	if raw == "" {
		raw = c.GetHeader(userIDHeader)
	}
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return 0, false
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return 0, false
	}
	return id, true
}

func pathIntParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

type WorkflowHandler struct {
	svc    *service.WorkflowService
	logger *zap.Logger
}

func NewWorkflowHandler(svc *service.WorkflowService, logger *zap.Logger) *WorkflowHandler {
	return &WorkflowHandler{svc: svc, logger: logger}
}

func (h *WorkflowHandler) GetOverview(c *gin.Context) {
	projectID, ok := pathIntParam(c, "id")
	if !ok {
		return
	}
	caller, ok := callerID(c)
	if !ok {
		return
	}

	overview, err := h.svc.GetProjectOverview(c.Request.Context(), projectID, caller, time.Now())
	if err != nil {
		h.logger.Warn("GetOverview: request failed",
			zap.Int("project_id", projectID),
			zap.Int("caller_id", caller),
			zap.Error(err),
		)
		writeWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, overview)
}

type advancePhaseRequest struct {
	Version int64 `json:"version" binding:"required"`
}

func (h *WorkflowHandler) AdvancePhase(c *gin.Context) {
	projectID, ok := pathIntParam(c, "id")
	if !ok {
		return
	}
	phaseID, ok := pathIntParam(c, "phaseId")
	if !ok {
		return
	}
	caller, ok := callerID(c)
	if !ok {
		return
	}

	var req advancePhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("AdvancePhase: invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "version required"})
		return
	}

	h.logger.Info("AdvancePhase request received",
		zap.Int("project_id", projectID),
		zap.Int("phase_id", phaseID),
		zap.Int("caller_id", caller),
		zap.String("client_ip", c.ClientIP()),
	)

	result, err := h.svc.AdvancePhase(c.Request.Context(), projectID, phaseID, caller, req.Version)
	if err != nil {
		h.logger.Warn("AdvancePhase: rejected",
			zap.Int("project_id", projectID),
			zap.Int("phase_id", phaseID),
			zap.Error(err),
		)
		writeWorkflowError(c, err)
		return
	}

	h.logger.Info("AdvancePhase: success",
		zap.Int("project_id", projectID),
		zap.String("current_phase", string(result.Project.CurrentPhase)),
		zap.Bool("project_completed", result.ProjectCompleted),
	)
	c.JSON(http.StatusOK, gin.H{
		"project":           result.Project,
		"phases":            result.Phases,
		"project_completed": result.ProjectCompleted,
	})
}
