package model

import "time"

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
)

type PhaseName string

const (
	PhasePlanning       PhaseName = "planning"
	PhaseDesign         PhaseName = "design"
	PhaseImplementation PhaseName = "implementation"
	PhaseTesting        PhaseName = "testing"
	PhaseDeployment     PhaseName = "deployment"
)

// PhaseSequence is the fixed phase order every project moves through.
var PhaseSequence = [5]PhaseName{
	PhasePlanning,
	PhaseDesign,
	PhaseImplementation,
	PhaseTesting,
	PhaseDeployment,
}

// PhaseOrder returns the index of name within PhaseSequence, or -1 for an
// unknown phase name.
func PhaseOrder(name PhaseName) int {
	for i, p := range PhaseSequence {
		if p == name {
			return i
		}
	}
	return -1
}

type PhaseStatus string

const (
	PhaseLocked         PhaseStatus = "locked"
	PhaseActive         PhaseStatus = "active"
	PhaseStatusComplete PhaseStatus = "completed"
)

type Project struct {
	ID                   int           `json:"id"`
	Name                 string        `json:"name"`
	Description          string        `json:"description"`
	Status               ProjectStatus `json:"status"`
	CurrentPhase         PhaseName     `json:"current_phase"`
	ManagerID            int           `json:"manager_id"`
	ClientID             int           `json:"client_id"`
	StartDate            *time.Time    `json:"start_date,omitempty"`
	TargetCompletionDate *time.Time    `json:"target_completion_date,omitempty"`
	CompletionPercentage int           `json:"completion_percentage"`
	Version              int64         `json:"version"`
}

type Phase struct {
	ID            int         `json:"id"`
	ProjectID     int         `json:"project_id"`
	PhaseName     PhaseName   `json:"phase_name"`
	Status        PhaseStatus `json:"status"`
	StartDate     *time.Time  `json:"start_date,omitempty"`
	TargetEndDate *time.Time  `json:"target_end_date,omitempty"`
	CompletedDate *time.Time  `json:"completed_date,omitempty"`
	PublicSummary string      `json:"public_summary,omitempty"`
}

// ProjectUpdate is one entry of the client-visible updates feed.
type ProjectUpdate struct {
	ID        int       `json:"id"`
	ProjectID int       `json:"project_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Date      time.Time `json:"date"`
	AuthorID  int       `json:"author_id"`
}
