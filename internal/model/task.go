package model

import "time"

type TaskStatus string

const (
	TaskNotStarted TaskStatus = "not_started"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskBlocked    TaskStatus = "blocked"
)

type TaskPriority string

const (
	PriorityLow      TaskPriority = "low"
	PriorityMedium   TaskPriority = "medium"
	PriorityHigh     TaskPriority = "high"
	PriorityCritical TaskPriority = "critical"
)

type Task struct {
	ID                   int          `json:"id"`
	ProjectID            int          `json:"project_id"`
	PhaseID              int          `json:"phase_id"`
	Name                 string       `json:"name"`
	Description          string       `json:"description"`
	Status               TaskStatus   `json:"status"`
	CompletionPercentage int          `json:"completion_percentage"`
	Priority             TaskPriority `json:"priority"`
	AssigneeID           *int         `json:"assignee_id,omitempty"`
	DueDate              *time.Time   `json:"due_date,omitempty"`
	IsMilestone          bool         `json:"is_milestone"`
	IsBlocking           bool         `json:"is_blocking"`
}
