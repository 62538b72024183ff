package workflow

import (
	"sort"

	"fibreflow/internal/model"
)

// Snapshot is the immutable input the engine computes against. The backing
// store assembles it; the engine only reads and derives. Version is the
// optimistic-concurrency token the host checks before applying mutations.
type Snapshot struct {
	Project model.Project
	Phases  []model.Phase
	Tasks   []model.Task
	Users   []model.User
	Updates []model.ProjectUpdate
	Version int64
}

// NormalizeTasks returns a copy of tasks with the status/percentage
// invariant enforced: completed tasks report 100, not_started tasks report
// 0, everything else is clamped to [0,100]. The store does not enforce
// this at the data-entry boundary, so every read path normalizes on input
// instead of failing.
func NormalizeTasks(tasks []model.Task) []model.Task {
	out := make([]model.Task, len(tasks))
	copy(out, tasks)
	for i := range out {
		switch out[i].Status {
		case model.TaskCompleted:
			out[i].CompletionPercentage = 100
		case model.TaskNotStarted:
			out[i].CompletionPercentage = 0
		default:
			if out[i].CompletionPercentage < 0 {
				out[i].CompletionPercentage = 0
			}
			if out[i].CompletionPercentage > 100 {
				out[i].CompletionPercentage = 100
			}
		}
	}
	return out
}

// OrderedPhases returns phases sorted by their fixed phase order.
func OrderedPhases(phases []model.Phase) []model.Phase {
	out := make([]model.Phase, len(phases))
	copy(out, phases)
	sort.SliceStable(out, func(i, j int) bool {
		return model.PhaseOrder(out[i].PhaseName) < model.PhaseOrder(out[j].PhaseName)
	})
	return out
}

func tasksInPhase(tasks []model.Task, phaseID int) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if t.PhaseID == phaseID {
			out = append(out, t)
		}
	}
	return out
}
