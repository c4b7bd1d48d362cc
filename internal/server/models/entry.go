package models

import (
	"encoding/json"
	"time"
)

// Entry is a workload/portfolio record owned by a user and filed under a category.
type Entry struct {
	ID         string
	UserID     string
	CategoryID string
	// CategoryName caches the category name for display. It is not kept in
	// sync on category rename and nothing reads it for integrity decisions.
	CategoryName string
	Payload      json.RawMessage
	// MigratedFrom, MigratedAt and MigratedBy are stamped when the entry is
	// reassigned from one category to another.
	MigratedFrom string
	MigratedAt   *time.Time
	MigratedBy   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
