package workflow

import (
	"testing"
	"time"

	"fibreflow/internal/model"
)

func datePtr(t time.Time) *time.Time { return &t }

func TestClassifyUrgency(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		dueDate  *time.Time
		status   model.TaskStatus
		expected Urgency
	}{
		{"no due date", nil, model.TaskInProgress, UrgencyNormal},
		{"overdue yesterday", datePtr(now.AddDate(0, 0, -1)), model.TaskInProgress, UrgencyOverdue},
		{"overdue last month", datePtr(now.AddDate(0, -1, 0)), model.TaskNotStarted, UrgencyOverdue},
		{"due today", datePtr(now), model.TaskInProgress, UrgencyDueToday},
		{"due today earlier hour", datePtr(time.Date(2025, 6, 15, 1, 0, 0, 0, time.UTC)), model.TaskInProgress, UrgencyDueToday},
		{"due today later hour", datePtr(time.Date(2025, 6, 15, 23, 59, 0, 0, time.UTC)), model.TaskBlocked, UrgencyDueToday},
		{"due tomorrow", datePtr(now.AddDate(0, 0, 1)), model.TaskInProgress, UrgencyDueSoon},
		{"due in 3 days", datePtr(now.AddDate(0, 0, 3)), model.TaskInProgress, UrgencyDueSoon},
		{"due in 4 days", datePtr(now.AddDate(0, 0, 4)), model.TaskInProgress, UrgencyNormal},
		{"completed ignores overdue date", datePtr(now.AddDate(0, 0, -10)), model.TaskCompleted, UrgencyNormal},
		{"completed due today", datePtr(now), model.TaskCompleted, UrgencyNormal},
		{"completed without due date", nil, model.TaskCompleted, UrgencyNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyUrgency(tt.dueDate, tt.status, now)
			if got != tt.expected {
				t.Errorf("ClassifyUrgency() = %s; want %s", got, tt.expected)
			}
		})
	}
}

func TestClassifyUrgencyComparesCalendarDates(t *testing.T) {
	// 23:00 now vs 01:00 due tomorrow is one calendar day apart even
	// though only two hours separate the timestamps.
	now := time.Date(2025, 6, 15, 23, 0, 0, 0, time.UTC)
	due := time.Date(2025, 6, 16, 1, 0, 0, 0, time.UTC)

	if got := ClassifyUrgency(&due, model.TaskInProgress, now); got != UrgencyDueSoon {
		t.Errorf("ClassifyUrgency() = %s; want %s", got, UrgencyDueSoon)
	}
}
