package model

type Role string

const (
	RoleAdmin           Role = "admin"
	RoleProjectManager  Role = "project_manager"
	RoleTeamLead        Role = "team_lead"
	RoleDesignEngineer  Role = "design_engineer"
	RoleFieldTechnician Role = "field_technician"
	RoleClient          Role = "client"
)

type User struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	TeamID *int   `json:"team_id,omitempty"`
}
