package workflow

import (
	"time"

	"fibreflow/internal/model"
)

// Urgency is a time-based label derived fresh from the current date. It is
// never persisted.
type Urgency string

const (
	UrgencyOverdue  Urgency = "overdue"
	UrgencyDueToday Urgency = "due_today"
	UrgencyDueSoon  Urgency = "due_soon"
	UrgencyNormal   Urgency = "normal"
)

// A task is "due soon" when its due date falls within this many calendar
// days after today (exclusive of today).
const dueSoonWindowDays = 3

// ClassifyUrgency derives the urgency label for a task. It compares
// calendar dates, not timestamps, in now's location. The caller injects
// now; the classifier never reads the wall clock.
func ClassifyUrgency(dueDate *time.Time, status model.TaskStatus, now time.Time) Urgency {
	if status == model.TaskCompleted {
		return UrgencyNormal
	}
	if dueDate == nil {
		return UrgencyNormal
	}

	today := startOfDay(now)
	due := startOfDay(dueDate.In(now.Location()))

	switch {
	case due.Before(today):
		return UrgencyOverdue
	case due.Equal(today):
		return UrgencyDueToday
	case !due.After(today.AddDate(0, 0, dueSoonWindowDays)):
		return UrgencyDueSoon
	default:
		return UrgencyNormal
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
