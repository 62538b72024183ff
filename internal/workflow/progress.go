package workflow

import (
	"math"
	"sort"
	"time"

	"fibreflow/internal/model"
)

// PhaseProgress is the derived progress record for one phase.
type PhaseProgress struct {
	Phase          model.Phase       `json:"phase"`
	Status         model.PhaseStatus `json:"status"`
	Progress       int               `json:"progress"`
	TasksCompleted int               `json:"tasks_completed"`
	TasksTotal     int               `json:"tasks_total"`
}

// ProjectProgress is the derived progress record for a whole project.
type ProjectProgress struct {
	OverallProgress int             `json:"overall_progress"`
	Phases          []PhaseProgress `json:"phases"`
	NextMilestone   *model.Task     `json:"next_milestone,omitempty"`
}

// PhaseProgressOf computes the progress record for phase from the
// project's task set. Tasks belonging to other phases are ignored, so the
// full task list may be passed. A completed phase always reports 100
// regardless of task count; an empty locked/active phase reports 0.
func PhaseProgressOf(phase model.Phase, tasks []model.Task) PhaseProgress {
	own := NormalizeTasks(tasksInPhase(tasks, phase.ID))

	completed := 0
	for _, t := range own {
		if t.Status == model.TaskCompleted {
			completed++
		}
	}

	progress := 0
	switch {
	case phase.Status == model.PhaseStatusComplete:
		progress = 100
	case len(own) > 0:
		progress = int(math.Round(float64(completed) / float64(len(own)) * 100))
	}

	return PhaseProgress{
		Phase:          phase,
		Status:         phase.Status,
		Progress:       progress,
		TasksCompleted: completed,
		TasksTotal:     len(own),
	}
}

// ProjectProgressOf aggregates phase progress into the project-level
// record. Overall progress is the rounded arithmetic mean of per-phase
// progress: phases contribute equally regardless of task count.
func ProjectProgressOf(phases []model.Phase, tasks []model.Task) ProjectProgress {
	ordered := OrderedPhases(phases)

	perPhase := make([]PhaseProgress, 0, len(ordered))
	sum := 0
	for _, ph := range ordered {
		pp := PhaseProgressOf(ph, tasks)
		perPhase = append(perPhase, pp)
		sum += pp.Progress
	}

	overall := 0
	if len(perPhase) > 0 {
		overall = int(math.Round(float64(sum) / float64(len(perPhase))))
	}

	result := ProjectProgress{
		OverallProgress: overall,
		Phases:          perPhase,
	}
	if ms, ok := NextMilestone(tasks); ok {
		result.NextMilestone = &ms
	}
	return result
}

// NextMilestone returns the earliest-due, not-yet-completed milestone
// task. Milestones without a due date sort after dated ones; ties break by
// task id ascending. ok is false when no open milestone exists.
func NextMilestone(tasks []model.Task) (ms model.Task, ok bool) {
	var open []model.Task
	for _, t := range tasks {
		if t.IsMilestone && t.Status != model.TaskCompleted {
			open = append(open, t)
		}
	}
	if len(open) == 0 {
		return model.Task{}, false
	}

	sort.SliceStable(open, func(i, j int) bool {
		if c := compareDueDates(open[i].DueDate, open[j].DueDate); c != 0 {
			return c < 0
		}
		return open[i].ID < open[j].ID
	})
	return open[0], true
}

// compareDueDates orders due dates ascending with nil last.
func compareDueDates(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.Before(*b):
		return -1
	case b.Before(*a):
		return 1
	default:
		return 0
	}
}
