package models

import "time"

// Claims is the small authorization payload attached to an identity-provider
// account. It mirrors User.Role and is never authoritative.
type Claims struct {
	Role         Role      `json:"role"`
	UserName     string    `json:"username"`
	LastSyncedAt time.Time `json:"lastSyncedAt"`
}
