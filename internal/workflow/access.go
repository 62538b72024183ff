package workflow

import (
	"sort"
	"time"

	"fibreflow/internal/model"
)

// TaskWithProject is the projected task record handed to task-list views:
// the task joined with its project and phase names plus the derived
// urgency label.
type TaskWithProject struct {
	model.Task
	ProjectName   string          `json:"project_name"`
	PhaseName     model.PhaseName `json:"phase_name"`
	UrgencyStatus Urgency         `json:"urgency_status"`
}

// ViewContext carries the reference data ResolveTaskView joins against.
type ViewContext struct {
	Projects []model.Project
	Phases   []model.Phase
	Users    []model.User
}

// ResolveTaskView filters tasks down to what caller may see and projects
// each visible task into a TaskWithProject. Client-role callers fail with
// *ClientViewOnlyError and must be served by the client view projector
// instead. Results are ordered by due date ascending with undated tasks
// last, ties broken by task id.
func ResolveTaskView(tasks []model.Task, vc ViewContext, caller model.User, now time.Time) ([]TaskWithProject, error) {
	cap, err := Lookup(caller.Role)
	if err != nil {
		return nil, err
	}
	if cap.ClientViewOnly {
		return nil, &ClientViewOnlyError{UserID: caller.ID}
	}

	visible := filterByScope(NormalizeTasks(tasks), vc, caller, cap.ViewScope)

	projectNames := make(map[int]string, len(vc.Projects))
	for _, p := range vc.Projects {
		projectNames[p.ID] = p.Name
	}
	phaseNames := make(map[int]model.PhaseName, len(vc.Phases))
	for _, ph := range vc.Phases {
		phaseNames[ph.ID] = ph.PhaseName
	}

	out := make([]TaskWithProject, 0, len(visible))
	for _, t := range visible {
		out = append(out, TaskWithProject{
			Task:          t,
			ProjectName:   projectNames[t.ProjectID],
			PhaseName:     phaseNames[t.PhaseID],
			UrgencyStatus: ClassifyUrgency(t.DueDate, t.Status, now),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := compareDueDates(out[i].DueDate, out[j].DueDate); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func filterByScope(tasks []model.Task, vc ViewContext, caller model.User, scope ViewScope) []model.Task {
	switch scope {
	case ScopeAll:
		return tasks

	case ScopeProjectTasks:
		managed := make(map[int]bool)
		for _, p := range vc.Projects {
			if p.ManagerID == caller.ID {
				managed[p.ID] = true
			}
		}
		var out []model.Task
		for _, t := range tasks {
			if managed[t.ProjectID] {
				out = append(out, t)
			}
		}
		return out

	case ScopeTeamAndAssigned:
		team := make(map[int]bool)
		if caller.TeamID != nil {
			for _, u := range vc.Users {
				if u.TeamID != nil && *u.TeamID == *caller.TeamID {
					team[u.ID] = true
				}
			}
		}
		var out []model.Task
		for _, t := range tasks {
			if t.AssigneeID == nil {
				continue
			}
			if *t.AssigneeID == caller.ID || team[*t.AssigneeID] {
				out = append(out, t)
			}
		}
		return out

	case ScopeAssignedOnly:
		var out []model.Task
		for _, t := range tasks {
			if t.AssigneeID != nil && *t.AssigneeID == caller.ID {
				out = append(out, t)
			}
		}
		return out
	}
	return nil
}
