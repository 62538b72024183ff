package workflow

import (
	"errors"
	"reflect"
	"testing"

	"fibreflow/internal/model"
)

// Five-phase project with design active: planning done, the rest locked.
func designActiveSnapshot() Snapshot {
	return Snapshot{
		Project: model.Project{
			ID:           1,
			Name:         "Fiber Installation - Cape Town CBD",
			Status:       model.ProjectActive,
			CurrentPhase: model.PhaseDesign,
		},
		Phases: []model.Phase{
			{ID: 1, ProjectID: 1, PhaseName: model.PhasePlanning, Status: model.PhaseStatusComplete},
			{ID: 2, ProjectID: 1, PhaseName: model.PhaseDesign, Status: model.PhaseActive},
			{ID: 3, ProjectID: 1, PhaseName: model.PhaseImplementation, Status: model.PhaseLocked},
			{ID: 4, ProjectID: 1, PhaseName: model.PhaseTesting, Status: model.PhaseLocked},
			{ID: 5, ProjectID: 1, PhaseName: model.PhaseDeployment, Status: model.PhaseLocked},
		},
		Tasks: []model.Task{
			{ID: 11, ProjectID: 1, PhaseID: 2, Status: model.TaskCompleted, CompletionPercentage: 100},
			{ID: 12, ProjectID: 1, PhaseID: 2, Status: model.TaskCompleted, CompletionPercentage: 100, IsBlocking: true},
			{ID: 13, ProjectID: 1, PhaseID: 2, Status: model.TaskInProgress, CompletionPercentage: 40},
		},
		Version: 3,
	}
}

var pm = model.User{ID: 2, Name: "Project Manager", Role: model.RoleProjectManager}

func TestAdvancePhaseSuccess(t *testing.T) {
	snap := designActiveSnapshot()

	res, err := AdvancePhase(snap, 2, pm)
	if err != nil {
		t.Fatalf("AdvancePhase() error: %v", err)
	}

	if res.ProjectCompleted {
		t.Error("ProjectCompleted = true; want false")
	}
	if res.Project.CurrentPhase != model.PhaseImplementation {
		t.Errorf("CurrentPhase = %s; want implementation", res.Project.CurrentPhase)
	}
	if res.Phases[1].Status != model.PhaseStatusComplete {
		t.Errorf("design status = %s; want completed", res.Phases[1].Status)
	}
	if res.Phases[2].Status != model.PhaseActive {
		t.Errorf("implementation status = %s; want active", res.Phases[2].Status)
	}
	for _, i := range []int{3, 4} {
		if res.Phases[i].Status != model.PhaseLocked {
			t.Errorf("%s status = %s; want locked", res.Phases[i].PhaseName, res.Phases[i].Status)
		}
	}
	// planning 100 + design 100 + three locked at 0 -> mean 40
	if res.Project.CompletionPercentage != 40 {
		t.Errorf("CompletionPercentage = %d; want 40", res.Project.CompletionPercentage)
	}
}

func TestAdvancePhaseBlocked(t *testing.T) {
	snap := designActiveSnapshot()
	snap.Tasks[1].Status = model.TaskInProgress // blocking task incomplete
	snap.Tasks[1].CompletionPercentage = 60
	before := designActiveSnapshot()
	before.Tasks[1].Status = model.TaskInProgress
	before.Tasks[1].CompletionPercentage = 60

	_, err := AdvancePhase(snap, 2, pm)
	var blocked *PhaseAdvanceBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("error = %v; want *PhaseAdvanceBlockedError", err)
	}
	if !reflect.DeepEqual(blocked.BlockingTaskIDs, []int{12}) {
		t.Errorf("BlockingTaskIDs = %v; want [12]", blocked.BlockingTaskIDs)
	}

	// Failed advance must leave the snapshot untouched.
	if !reflect.DeepEqual(snap, before) {
		t.Error("snapshot mutated by failed AdvancePhase")
	}
}

func TestAdvancePhaseBlockedListsAllTasks(t *testing.T) {
	snap := designActiveSnapshot()
	snap.Tasks = append(snap.Tasks,
		model.Task{ID: 20, ProjectID: 1, PhaseID: 2, Status: model.TaskBlocked, IsBlocking: true},
		model.Task{ID: 15, ProjectID: 1, PhaseID: 2, Status: model.TaskNotStarted, IsBlocking: true},
	)

	_, err := AdvancePhase(snap, 2, pm)
	var blocked *PhaseAdvanceBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("error = %v; want *PhaseAdvanceBlockedError", err)
	}
	if !reflect.DeepEqual(blocked.BlockingTaskIDs, []int{15, 20}) {
		t.Errorf("BlockingTaskIDs = %v; want [15 20]", blocked.BlockingTaskIDs)
	}
}

func TestAdvancePhasePermissionDenied(t *testing.T) {
	// Gate satisfied, wrong role: permission still wins.
	snap := designActiveSnapshot()
	tech := model.User{ID: 3, Role: model.RoleFieldTechnician}

	_, err := AdvancePhase(snap, 2, tech)
	var denied *PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("error = %v; want *PermissionDeniedError", err)
	}
	if denied.Role != model.RoleFieldTechnician {
		t.Errorf("Role = %s; want field_technician", denied.Role)
	}
}

func TestAdvancePhaseUnknownRole(t *testing.T) {
	snap := designActiveSnapshot()
	_, err := AdvancePhase(snap, 2, model.User{ID: 3, Role: "superuser"})
	var unknown *UnknownRoleError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v; want *UnknownRoleError", err)
	}
}

func TestAdvancePhaseNotActive(t *testing.T) {
	snap := designActiveSnapshot()

	tests := []struct {
		name    string
		phaseID int
	}{
		{"completed phase", 1},
		{"locked phase", 3},
		{"unknown phase", 99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AdvancePhase(snap, tt.phaseID, pm)
			var invalid *InvalidPhaseTransitionError
			if !errors.As(err, &invalid) {
				t.Fatalf("error = %v; want *InvalidPhaseTransitionError", err)
			}
			if invalid.ActivePhaseID != 2 {
				t.Errorf("ActivePhaseID = %d; want 2", invalid.ActivePhaseID)
			}
		})
	}
}

func TestAdvanceLastPhaseCompletesProject(t *testing.T) {
	snap := designActiveSnapshot()
	for i := range snap.Phases {
		snap.Phases[i].Status = model.PhaseStatusComplete
	}
	snap.Phases[4].Status = model.PhaseActive
	snap.Project.CurrentPhase = model.PhaseDeployment
	snap.Tasks = nil

	res, err := AdvancePhase(snap, 5, pm)
	if err != nil {
		t.Fatalf("AdvancePhase() error: %v", err)
	}
	if !res.ProjectCompleted {
		t.Error("ProjectCompleted = false; want true")
	}
	if res.Project.Status != model.ProjectCompleted {
		t.Errorf("project status = %s; want completed", res.Project.Status)
	}
	for _, ph := range res.Phases {
		if ph.Status != model.PhaseStatusComplete {
			t.Errorf("%s status = %s; want completed", ph.PhaseName, ph.Status)
		}
	}
	if res.Project.CompletionPercentage != 100 {
		t.Errorf("CompletionPercentage = %d; want 100", res.Project.CompletionPercentage)
	}
}

// A phase with no tasks carries an empty blocking set and is always
// advance-eligible.
func TestAdvanceEmptyPhase(t *testing.T) {
	snap := designActiveSnapshot()
	snap.Tasks = nil

	res, err := AdvancePhase(snap, 2, pm)
	if err != nil {
		t.Fatalf("AdvancePhase() error: %v", err)
	}
	if res.Project.CurrentPhase != model.PhaseImplementation {
		t.Errorf("CurrentPhase = %s; want implementation", res.Project.CurrentPhase)
	}
}

func TestAdvancePhaseAdmin(t *testing.T) {
	snap := designActiveSnapshot()
	admin := model.User{ID: 1, Role: model.RoleAdmin}
	if _, err := AdvancePhase(snap, 2, admin); err != nil {
		t.Errorf("admin advance error: %v", err)
	}
}
