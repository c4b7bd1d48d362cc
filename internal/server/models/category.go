package models

import (
	"encoding/json"
	"time"
)

// Category is a taxonomy entity referenced by entries through CategoryID.
type Category struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DisplayOrder int    `json:"displayOrder"`
	// FormConfig is an opaque JSON document describing the entry form.
	FormConfig json.RawMessage `json:"formConfig,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	CreatedBy  string          `json:"createdBy,omitempty"`
	UpdatedBy  string          `json:"updatedBy,omitempty"`
}
