package models

import "strings"

// Role is the closed set of organisational roles known to the approval workflow.
type Role string

const (
	RoleOperator       Role = "EME Operator"
	RoleTeamLeader     Role = "Team Leader"
	RoleIncharge       Role = "Incharge"
	RoleProjectManager Role = "Project Manager"
	RoleReliever       Role = "Reliever"
)

// Roles lists every known role in display order.
var Roles = []Role{RoleOperator, RoleTeamLeader, RoleIncharge, RoleProjectManager, RoleReliever}

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ParseRole resolves an exact role name, ignoring surrounding whitespace and case.
func ParseRole(raw string) (Role, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, role := range Roles {
		if strings.EqualFold(trimmed, string(role)) {
			return role, true
		}
	}
	return "", false
}

// Identity is the acting party for submissions, approvals and projections.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// DirectoryUser is one record supplied by the user directory.
type DirectoryUser struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"-"`
}

// Identity projects the directory record onto an acting identity.
func (u DirectoryUser) Identity() Identity {
	return Identity{ID: u.ID, Name: u.Name, Role: u.Role}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
