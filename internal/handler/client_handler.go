package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fibreflow/internal/service"
)

type ClientHandler struct {
	svc    *service.WorkflowService
	logger *zap.Logger
}

func NewClientHandler(svc *service.WorkflowService, logger *zap.Logger) *ClientHandler {
	return &ClientHandler{svc: svc, logger: logger}
}

// GetClientView returns the sanitized client-facing projection: public
// phase names, milestones and the updates feed, never internal task data.
// recent=true truncates the feed to the latest entries.
func (h *ClientHandler) GetClientView(c *gin.Context) {
	projectID, ok := pathIntParam(c, "id")
	if !ok {
		return
	}
	caller, ok := callerID(c)
	if !ok {
		return
	}

	view, err := h.svc.GetClientView(c.Request.Context(), projectID, caller)
	if err != nil {
		h.logger.Warn("GetClientView: request failed",
			zap.Int("project_id", projectID),
			zap.Int("caller_id", caller),
			zap.Error(err),
		)
		writeWorkflowError(c, err)
		return
	}

	if recent, _ := strconv.ParseBool(c.Query("recent")); recent {
		view.PublicUpdates = view.RecentUpdates()
	}
	c.JSON(http.StatusOK, view)
}
