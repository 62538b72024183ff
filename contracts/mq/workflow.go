package mq

// Routing keys for workflow mutation events.
const (
	RoutingKeyPhaseAdvanced       = "workflow.phase_advanced"
	RoutingKeyTaskProgressUpdated = "workflow.task_progress_updated"
	RoutingKeyTaskAssigned        = "workflow.task_assigned"
)

type PhaseAdvancedPayload struct {
	ProjectID        int    `json:"project_id"`
	PhaseID          int    `json:"phase_id"`
	PhaseName        string `json:"phase_name"`
	NextPhaseName    string `json:"next_phase_name,omitempty"`
	ActorID          int    `json:"actor_id"`
	ProjectCompleted bool   `json:"project_completed"`
	Version          int64  `json:"version"`
	TraceID          string `json:"trace_id,omitempty"`
}

type TaskProgressUpdatedPayload struct {
	TaskID    int    `json:"task_id"`
	ProjectID int    `json:"project_id"`
	ActorID   int    `json:"actor_id"`
	Progress  int    `json:"progress"`
	Status    string `json:"status"`
	Version   int64  `json:"version"`
	TraceID   string `json:"trace_id,omitempty"`
}

type TaskAssignedPayload struct {
	TaskID     int    `json:"task_id"`
	ProjectID  int    `json:"project_id"`
	AssigneeID int    `json:"assignee_id"`
	ActorID    int    `json:"actor_id"`
	Version    int64  `json:"version"`
	TraceID    string `json:"trace_id,omitempty"`
}
