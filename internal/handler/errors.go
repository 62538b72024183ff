package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"fibreflow/internal/workflow"
)

// writeWorkflowError maps engine and store errors onto HTTP status codes.
// Access failures are 403, stale versions and workflow-state conflicts are
// 409, missing rows are 404, everything else is 500.
func writeWorkflowError(c *gin.Context, err error) {
	var (
		denied     *workflow.PermissionDeniedError
		clientOnly *workflow.ClientViewOnlyError
		unknown    *workflow.UnknownRoleError
		conflict   *workflow.ConcurrentModificationError
		blocked    *workflow.PhaseAdvanceBlockedError
		invalid    *workflow.InvalidPhaseTransitionError
	)

	switch {
	case errors.As(err, &denied):
		c.JSON(http.StatusForbidden, gin.H{"error": denied.Error()})
	case errors.As(err, &clientOnly):
		c.JSON(http.StatusForbidden, gin.H{
			"error":       "client accounts use the client view",
			"client_view": true,
		})
	case errors.As(err, &unknown):
		c.JSON(http.StatusForbidden, gin.H{"error": unknown.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":            "project was modified concurrently, refresh and retry",
			"expected_version": conflict.ExpectedVersion,
			"actual_version":   conflict.ActualVersion,
		})
	case errors.As(err, &blocked):
		c.JSON(http.StatusConflict, gin.H{
			"error":             "phase has incomplete blocking tasks",
			"blocking_task_ids": blocked.BlockingTaskIDs,
		})
	case errors.As(err, &invalid):
		c.JSON(http.StatusConflict, gin.H{"error": invalid.Error()})
	case errors.Is(err, pgx.ErrNoRows):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
