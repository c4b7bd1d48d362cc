// Package policy holds the authorization table for the operation surface.
// Every decision goes through Check; there are no per-user special cases.
package policy

import (
	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
)

// Action names an operation guarded by the table.
type Action string

const (
	ViewCategories  Action = "view_categories"
	SaveCategory    Action = "save_category"
	DeleteCategory  Action = "delete_category"
	CheckUsage      Action = "check_usage"
	MigrateEntries  Action = "migrate_entries"
	VerifyRoles     Action = "verify_roles"
	SyncRoles       Action = "sync_roles"
	ForceInvalidate Action = "force_invalidate"
	ImportUsers     Action = "import_users"
)

type rule struct {
	role   models.Role
	action Action
}

// table lists every allowed {role, action} pair. Anything absent is denied.
var table = map[rule]bool{
	{models.RoleSuperAdmin, ViewCategories}:  true,
	{models.RoleSuperAdmin, SaveCategory}:    true,
	{models.RoleSuperAdmin, DeleteCategory}:  true,
	{models.RoleSuperAdmin, CheckUsage}:      true,
	{models.RoleSuperAdmin, MigrateEntries}:  true,
	{models.RoleSuperAdmin, VerifyRoles}:     true,
	{models.RoleSuperAdmin, SyncRoles}:       true,
	{models.RoleSuperAdmin, ForceInvalidate}: true,
	{models.RoleSuperAdmin, ImportUsers}:     true,

	{models.RoleAdmin, ViewCategories}: true,
	{models.RoleAdmin, SaveCategory}:   true,
	{models.RoleAdmin, DeleteCategory}: true,
	{models.RoleAdmin, CheckUsage}:     true,
	{models.RoleAdmin, MigrateEntries}: true,
	{models.RoleAdmin, VerifyRoles}:    true,
	{models.RoleAdmin, SyncRoles}:      true,
	{models.RoleAdmin, ImportUsers}:    true,

	{models.RoleManager, ViewCategories}: true,
	{models.RoleManager, CheckUsage}:     true,
	{models.RoleManager, VerifyRoles}:    true,

	{models.RoleStaff, ViewCategories}: true,
}

// Allowed reports whether role may perform action.
func Allowed(role models.Role, action Action) bool {
	return table[rule{role, action}]
}

// Check returns a PermissionError unless role may perform action.
func Check(role models.Role, action Action) error {
	if !Allowed(role, action) {
		return &common.PermissionError{Role: string(role), Action: string(action)}
	}
	return nil
}
