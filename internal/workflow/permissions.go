package workflow

import "fibreflow/internal/model"

// ViewScope is the set of tasks a role may see.
type ViewScope string

const (
	ScopeAll             ViewScope = "all"
	ScopeProjectTasks    ViewScope = "project_tasks"
	ScopeTeamAndAssigned ViewScope = "team_and_assigned"
	ScopeAssignedOnly    ViewScope = "assigned_only"
)

// Capability names used in permission-denied errors.
const (
	CapabilityModifyWorkflow     = "workflow:modify"
	CapabilityUpdateTaskProgress = "task:update_progress"
	CapabilityViewProject        = "project:view"
)

// Capability is the full permission record for one role.
type Capability struct {
	ViewScope          ViewScope
	ClientViewOnly     bool
	ModifyWorkflow     bool
	UpdateTaskProgress bool
}

// Single source of truth for role semantics. Every access decision in the
// engine looks this table up; nothing branches on role strings elsewhere.
var rolePermissions = map[model.Role]Capability{
	model.RoleAdmin: {
		ViewScope:          ScopeAll,
		ModifyWorkflow:     true,
		UpdateTaskProgress: true,
	},
	model.RoleProjectManager: {
		ViewScope:          ScopeProjectTasks,
		ModifyWorkflow:     true,
		UpdateTaskProgress: true,
	},
	model.RoleTeamLead: {
		ViewScope:          ScopeTeamAndAssigned,
		UpdateTaskProgress: true,
	},
	model.RoleDesignEngineer: {
		ViewScope:          ScopeTeamAndAssigned,
		UpdateTaskProgress: true,
	},
	model.RoleFieldTechnician: {
		ViewScope:          ScopeAssignedOnly,
		UpdateTaskProgress: true,
	},
	model.RoleClient: {
		ViewScope:      ScopeAssignedOnly,
		ClientViewOnly: true,
	},
}

// Lookup returns the capability record for role. Unknown roles fail with
// *UnknownRoleError.
func Lookup(role model.Role) (Capability, error) {
	cap, ok := rolePermissions[role]
	if !ok {
		return Capability{}, &UnknownRoleError{Role: role}
	}
	return cap, nil
}

// CheckModifyWorkflow verifies that user may mutate workflow state.
func CheckModifyWorkflow(user model.User) error {
	cap, err := Lookup(user.Role)
	if err != nil {
		return err
	}
	if !cap.ModifyWorkflow {
		return &PermissionDeniedError{
			UserID:     user.ID,
			Role:       user.Role,
			Capability: CapabilityModifyWorkflow,
		}
	}
	return nil
}

// CheckUpdateTaskProgress verifies that user may update task progress.
func CheckUpdateTaskProgress(user model.User) error {
	cap, err := Lookup(user.Role)
	if err != nil {
		return err
	}
	if !cap.UpdateTaskProgress {
		return &PermissionDeniedError{
			UserID:     user.ID,
			Role:       user.Role,
			Capability: CapabilityUpdateTaskProgress,
		}
	}
	return nil
}
