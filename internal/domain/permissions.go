package domain

import "strings"

// Role represents the application role of a user
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEngineer Role = "engineer"
	RoleViewer   Role = "viewer"
)

// Permission is a "<category>.<action>" identifier from the permission catalog
type Permission string

const (
	PermissionProjectsView   Permission = "projects.view"
	PermissionProjectsCreate Permission = "projects.create"
	PermissionProjectsEdit   Permission = "projects.edit"
	PermissionProjectsDelete Permission = "projects.delete"

	PermissionBOQView   Permission = "boq.view"
	PermissionBOQCreate Permission = "boq.create"
	PermissionBOQEdit   Permission = "boq.edit"
	PermissionBOQDelete Permission = "boq.delete"

	PermissionKPIView   Permission = "kpi.view"
	PermissionKPICreate Permission = "kpi.create"
	PermissionKPIEdit   Permission = "kpi.edit"
	PermissionKPIDelete Permission = "kpi.delete"

	PermissionUsersView   Permission = "users.view"
	PermissionUsersCreate Permission = "users.create"
	PermissionUsersManage Permission = "users.manage"
	PermissionUsersDelete Permission = "users.delete"

	PermissionSettingsView   Permission = "settings.view"
	PermissionSettingsEdit   Permission = "settings.edit"
	PermissionSettingsManage Permission = "settings.manage"

	PermissionReportsView   Permission = "reports.view"
	PermissionReportsExport Permission = "reports.export"

	PermissionDatabaseManage Permission = "database.manage"
)

// NewPermission builds a permission identifier from its category and action
func NewPermission(category, action string) Permission {
	return Permission(category + "." + action)
}

// Category returns the part before the first dot
func (p Permission) Category() string {
	category, _, _ := strings.Cut(string(p), ".")
	return category
}

// Action returns the part after the first dot, or "" when there is none
func (p Permission) Action() string {
	_, action, _ := strings.Cut(string(p), ".")
	return action
}
