package workflow

import (
	"sort"
	"time"

	"fibreflow/internal/model"
)

// Public display names shown to clients instead of internal phase keys.
var phaseDisplayNames = map[model.PhaseName]string{
	model.PhasePlanning:       "Planning & Permits",
	model.PhaseDesign:         "Network Design",
	model.PhaseImplementation: "Installation",
	model.PhaseTesting:        "Testing & Activation",
	model.PhaseDeployment:     "Go-Live & Handover",
}

// PhaseDisplayName returns the client-facing name for a phase, falling
// back to the raw key for unknown phases.
func PhaseDisplayName(name model.PhaseName) string {
	if display, ok := phaseDisplayNames[name]; ok {
		return display
	}
	return string(name)
}

const (
	MilestonePending   = "pending"
	MilestoneCompleted = "completed"
)

// recentUpdateLimit caps how many updates the portal displays.
const recentUpdateLimit = 5

// ClientPhaseProgress carries only the phase fields a client may see.
// Task counts stay internal; exposing them would let a client infer the
// raw task set behind the percentage.
type ClientPhaseProgress struct {
	DisplayName    string            `json:"display_name"`
	Status         model.PhaseStatus `json:"status"`
	Progress       int               `json:"progress"`
	PublicSummary  string            `json:"public_summary,omitempty"`
	CompletedDate  *time.Time        `json:"completed_date,omitempty"`
	EstimatedStart *time.Time        `json:"estimated_start,omitempty"`
}

// ClientMilestone is a milestone task stripped of internal fields
// (assignee, priority, blocking flag).
type ClientMilestone struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Date        *time.Time `json:"date,omitempty"`
	Status      string     `json:"status"`
}

type ClientUpdate struct {
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Date    time.Time `json:"date"`
	Author  string    `json:"author"`
}

type ClientContact struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// ClientProjectView is the sanitized external projection of a project. It
// never exposes raw tasks, task counts, or internal user records; the only
// task-shaped data it carries is the stripped milestone list.
type ClientProjectView struct {
	ProjectName         string                                  `json:"project_name"`
	CurrentPhase        model.PhaseName                         `json:"current_phase"`
	CurrentPhaseDisplay string                                  `json:"current_phase_display"`
	OverallProgress     int                                     `json:"overall_progress"`
	EstimatedCompletion *time.Time                              `json:"estimated_completion,omitempty"`
	ProjectManager      ClientContact                           `json:"project_manager"`
	PhaseProgress       map[model.PhaseName]ClientPhaseProgress `json:"phase_progress"`
	Milestones          []ClientMilestone                       `json:"milestones"`
	PublicUpdates       []ClientUpdate                          `json:"public_updates"`
}

// RecentUpdates returns the display slice of the updates feed. The full
// list stays on PublicUpdates for the collaborator.
func (v ClientProjectView) RecentUpdates() []ClientUpdate {
	if len(v.PublicUpdates) <= recentUpdateLimit {
		return v.PublicUpdates
	}
	return v.PublicUpdates[:recentUpdateLimit]
}

// BuildClientView projects a snapshot into the client portal view. Phase
// progress numbers come from the same aggregator the dashboard uses so the
// two surfaces can never drift apart.
func BuildClientView(snap Snapshot) ClientProjectView {
	progress := ProjectProgressOf(snap.Phases, snap.Tasks)

	view := ClientProjectView{
		ProjectName:         snap.Project.Name,
		CurrentPhase:        snap.Project.CurrentPhase,
		CurrentPhaseDisplay: PhaseDisplayName(snap.Project.CurrentPhase),
		OverallProgress:     progress.OverallProgress,
		EstimatedCompletion: snap.Project.TargetCompletionDate,
		PhaseProgress:       make(map[model.PhaseName]ClientPhaseProgress, len(progress.Phases)),
	}

	userNames := make(map[int]model.User, len(snap.Users))
	for _, u := range snap.Users {
		userNames[u.ID] = u
	}
	if mgr, ok := userNames[snap.Project.ManagerID]; ok {
		view.ProjectManager = ClientContact{Name: mgr.Name, Contact: mgr.Email}
	}

	for _, pp := range progress.Phases {
		view.PhaseProgress[pp.Phase.PhaseName] = ClientPhaseProgress{
			DisplayName:    PhaseDisplayName(pp.Phase.PhaseName),
			Status:         pp.Status,
			Progress:       pp.Progress,
			PublicSummary:  pp.Phase.PublicSummary,
			CompletedDate:  pp.Phase.CompletedDate,
			EstimatedStart: pp.Phase.StartDate,
		}
	}

	view.Milestones = clientMilestones(snap.Tasks)
	view.PublicUpdates = clientUpdates(snap.Updates, userNames)
	return view
}

func clientMilestones(tasks []model.Task) []ClientMilestone {
	var stones []model.Task
	for _, t := range tasks {
		if t.IsMilestone {
			stones = append(stones, t)
		}
	}
	sort.SliceStable(stones, func(i, j int) bool {
		if c := compareDueDates(stones[i].DueDate, stones[j].DueDate); c != 0 {
			return c < 0
		}
		return stones[i].ID < stones[j].ID
	})

	out := make([]ClientMilestone, 0, len(stones))
	for _, t := range stones {
		status := MilestonePending
		if t.Status == model.TaskCompleted {
			status = MilestoneCompleted
		}
		out = append(out, ClientMilestone{
			Name:        t.Name,
			Description: t.Description,
			Date:        t.DueDate,
			Status:      status,
		})
	}
	return out
}

func clientUpdates(updates []model.ProjectUpdate, users map[int]model.User) []ClientUpdate {
	ordered := make([]model.ProjectUpdate, len(updates))
	copy(ordered, updates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.After(ordered[j].Date)
		}
		return ordered[i].ID > ordered[j].ID
	})

	out := make([]ClientUpdate, 0, len(ordered))
	for _, u := range ordered {
		author := ""
		if a, ok := users[u.AuthorID]; ok {
			author = a.Name
		}
		out = append(out, ClientUpdate{
			Title:   u.Title,
			Message: u.Message,
			Date:    u.Date,
			Author:  author,
		})
	}
	return out
}
