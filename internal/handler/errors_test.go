package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"fibreflow/internal/model"
	"fibreflow/internal/workflow"
)

func TestWriteWorkflowError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "permission denied",
			err:        &workflow.PermissionDeniedError{UserID: 3, Role: model.RoleFieldTechnician, Capability: workflow.CapabilityModifyWorkflow},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "client view only",
			err:        &workflow.ClientViewOnlyError{UserID: 4},
			wantStatus: http.StatusForbidden,
			wantBody:   `"client_view":true`,
		},
		{
			name:       "unknown role",
			err:        &workflow.UnknownRoleError{Role: "contractor"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "version conflict",
			err:        &workflow.ConcurrentModificationError{ProjectID: 1, ExpectedVersion: 2, ActualVersion: 3},
			wantStatus: http.StatusConflict,
			wantBody:   `"actual_version":3`,
		},
		{
			name:       "blocked advance",
			err:        &workflow.PhaseAdvanceBlockedError{PhaseID: 2, BlockingTaskIDs: []int{10, 12}},
			wantStatus: http.StatusConflict,
			wantBody:   `"blocking_task_ids":[10,12]`,
		},
		{
			name:       "inactive phase",
			err:        &workflow.InvalidPhaseTransitionError{ProjectID: 1, PhaseID: 3},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "missing row",
			err:        fmt.Errorf("project 99: %w", pgx.ErrNoRows),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "unexpected error",
			err:        errors.New("connection reset"),
			wantStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			writeWorkflowError(c, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want substring %s", w.Body.String(), tt.wantBody)
			}
		})
	}
}
