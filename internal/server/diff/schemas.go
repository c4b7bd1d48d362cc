package diff

import (
	"strings"

	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
)

// UserSchema compares user records. The username is the identity key; the
// profile fields and role are the mutable allow-list.
var UserSchema = Schema[models.User]{
	Immutable: []Field[models.User]{
		{Name: "username", Get: func(u models.User) string { return u.UserName }, Equal: strings.EqualFold},
	},
	Mutable: []Field[models.User]{
		{Name: "name", Get: func(u models.User) string { return u.Name }},
		{Name: "position", Get: func(u models.User) string { return u.Position }},
		{Name: "department", Get: func(u models.User) string { return u.Department }},
		{Name: "role", Get: func(u models.User) string { return string(u.Role) }},
	},
}

// ClaimsSchema compares cached identity claims. LastSyncedAt is bookkeeping
// and never makes claims stale.
var ClaimsSchema = Schema[models.Claims]{
	Mutable: []Field[models.Claims]{
		{Name: "role", Get: func(c models.Claims) string { return string(c.Role) }},
		{Name: "username", Get: func(c models.Claims) string { return c.UserName }},
	},
}
