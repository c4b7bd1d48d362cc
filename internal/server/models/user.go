// Package models defines the records persisted in the document store and the
// claims payload mirrored into the identity provider.
package models

import "time"

// Role is the authorization role of a staff member. UserRecord.Role is the
// source of truth; identity claims only cache it.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleStaff      Role = "staff"
)

// LowestRole is assigned when an import row does not name a role.
const LowestRole = RoleStaff

// Roles lists every valid role, highest privilege first.
var Roles = []Role{RoleSuperAdmin, RoleAdmin, RoleManager, RoleStaff}

// Valid reports whether r is one of Roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// User is a staff member record. UserName is the immutable identity key.
type User struct {
	ID         string `json:"id"`
	UserName   string `json:"username"`
	Name       string `json:"name"`
	Position   string `json:"position"`
	Department string `json:"department"`
	Role       Role   `json:"role"`
	// ExternalID references the identity-provider account; empty when the
	// user was never provisioned.
	ExternalID string    `json:"externalId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	CreatedBy  string    `json:"createdBy,omitempty"`
	UpdatedBy  string    `json:"updatedBy,omitempty"`
}

// HasExternalIdentity reports whether the user has been provisioned in the
// identity provider.
func (u *User) HasExternalIdentity() bool {
	return u.ExternalID != ""
}
