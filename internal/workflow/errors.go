package workflow

import (
	"fmt"

	"fibreflow/internal/model"
)

// InvalidPhaseTransitionError reports an advance request against a phase
// that is not the project's current active phase.
type InvalidPhaseTransitionError struct {
	ProjectID     int
	PhaseID       int
	ActivePhaseID int
	ActivePhase   model.PhaseName
}

func (e *InvalidPhaseTransitionError) Error() string {
	return fmt.Sprintf("phase %d is not the active phase of project %d (active: %d %s)",
		e.PhaseID, e.ProjectID, e.ActivePhaseID, e.ActivePhase)
}

// PhaseAdvanceBlockedError reports incomplete blocking tasks in the phase
// being advanced. BlockingTaskIDs is sorted ascending.
type PhaseAdvanceBlockedError struct {
	PhaseID         int
	BlockingTaskIDs []int
}

func (e *PhaseAdvanceBlockedError) Error() string {
	return fmt.Sprintf("phase %d has %d incomplete blocking task(s): %v",
		e.PhaseID, len(e.BlockingTaskIDs), e.BlockingTaskIDs)
}

// PermissionDeniedError reports a caller whose role lacks the required
// capability.
type PermissionDeniedError struct {
	UserID     int
	Role       model.Role
	Capability string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("user %d (role %s) lacks capability %s", e.UserID, e.Role, e.Capability)
}

// UnknownRoleError reports a role missing from the permission table. This
// is a hard failure; the engine never falls back to a permissive scope.
type UnknownRoleError struct {
	Role model.Role
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown role %q", e.Role)
}

// ClientViewOnlyError reports a client-role caller hitting an internal task
// view. Hosts must route the request through the client view projector.
type ClientViewOnlyError struct {
	UserID int
}

func (e *ClientViewOnlyError) Error() string {
	return fmt.Sprintf("user %d has client-view-only access", e.UserID)
}

// ConcurrentModificationError reports a stale snapshot version supplied
// with a mutation request.
type ConcurrentModificationError struct {
	ProjectID       int
	ExpectedVersion int64
	ActualVersion   int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("project %d modified concurrently: snapshot version %d, store version %d",
		e.ProjectID, e.ExpectedVersion, e.ActualVersion)
}
