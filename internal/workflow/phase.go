package workflow

import (
	"sort"

	"fibreflow/internal/model"
)

// AdvanceResult carries the post-advance state. The engine never mutates
// the snapshot; the host persists these values (and bumps the concurrency
// token) in a single transaction or not at all.
type AdvanceResult struct {
	Project          model.Project
	Phases           []model.Phase
	ProjectCompleted bool
}

// AdvancePhase validates and computes a phase advance.
//
// The acting user must carry the modifyWorkflow capability, phaseID must
// reference the project's current active phase, and every blocking task in
// that phase must be completed. On success the active phase becomes
// completed and the next phase in order becomes active; advancing the last
// phase completes the project. A phase with no blocking tasks is always
// advance-eligible.
func AdvancePhase(snap Snapshot, phaseID int, actor model.User) (AdvanceResult, error) {
	if err := CheckModifyWorkflow(actor); err != nil {
		return AdvanceResult{}, err
	}

	phases := OrderedPhases(snap.Phases)

	activeIdx := -1
	for i, ph := range phases {
		if ph.Status == model.PhaseActive {
			activeIdx = i
			break
		}
	}
	if activeIdx == -1 || phases[activeIdx].ID != phaseID {
		e := &InvalidPhaseTransitionError{
			ProjectID: snap.Project.ID,
			PhaseID:   phaseID,
		}
		if activeIdx >= 0 {
			e.ActivePhaseID = phases[activeIdx].ID
			e.ActivePhase = phases[activeIdx].PhaseName
		}
		return AdvanceResult{}, e
	}

	if blocking := incompleteBlockingTasks(snap.Tasks, phaseID); len(blocking) > 0 {
		return AdvanceResult{}, &PhaseAdvanceBlockedError{
			PhaseID:         phaseID,
			BlockingTaskIDs: blocking,
		}
	}

	project := snap.Project
	phases[activeIdx].Status = model.PhaseStatusComplete

	completed := activeIdx == len(phases)-1
	if completed {
		project.Status = model.ProjectCompleted
	} else {
		phases[activeIdx+1].Status = model.PhaseActive
		project.CurrentPhase = phases[activeIdx+1].PhaseName
	}
	project.CompletionPercentage = ProjectProgressOf(phases, snap.Tasks).OverallProgress

	return AdvanceResult{
		Project:          project,
		Phases:           phases,
		ProjectCompleted: completed,
	}, nil
}

func incompleteBlockingTasks(tasks []model.Task, phaseID int) []int {
	var ids []int
	for _, t := range tasks {
		if t.PhaseID == phaseID && t.IsBlocking && t.Status != model.TaskCompleted {
			ids = append(ids, t.ID)
		}
	}
	sort.Ints(ids)
	return ids
}
