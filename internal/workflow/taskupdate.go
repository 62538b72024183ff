package workflow

import "fibreflow/internal/model"

// ApplyTaskProgress returns the task with the new completion percentage
// applied and its status derived from it: 100 completes the task, zero
// resets it to not_started, anything in between is in_progress. The input
// percentage is clamped to [0,100].
func ApplyTaskProgress(task model.Task, percentage int) model.Task {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}

	task.CompletionPercentage = percentage
	switch {
	case percentage == 100:
		task.Status = model.TaskCompleted
	case percentage == 0:
		task.Status = model.TaskNotStarted
	default:
		task.Status = model.TaskInProgress
	}
	return task
}
