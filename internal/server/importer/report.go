package importer

import (
	"sort"

	"github.com/dmitrijs2005/staffkeeper/internal/server/diff"
)

// Action is the per-row outcome recorded in a report.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionSkip     Action = "skip"
	ActionConflict Action = "conflict"
	ActionError    Action = "error"
)

// RowError is a row-level failure. Row 0 means the whole file.
type RowError struct {
	Row      int    `json:"row"`
	UserName string `json:"username,omitempty"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

// Detail is the ordered per-row outcome.
type Detail struct {
	Row      int           `json:"row"`
	UserName string        `json:"username"`
	Action   Action        `json:"action"`
	Message  string        `json:"message,omitempty"`
	Changes  []diff.Change `json:"changes,omitempty"`
}

// Report aggregates an import run. It is advisory and never persisted; the
// recovery path after a partial run is re-running the same file.
type Report struct {
	Preview  bool       `json:"preview"`
	Rejected bool       `json:"rejected"`
	Created  int        `json:"created"`
	Updated  int        `json:"updated"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors"`
	Warnings []RowError `json:"warnings"`
	Details  []Detail   `json:"details"`
}

func newReport(preview bool) *Report {
	return &Report{Preview: preview, Errors: []RowError{}, Warnings: []RowError{}, Details: []Detail{}}
}

func (r *Report) fail(row int, username, field, msg string) {
	r.Errors = append(r.Errors, RowError{Row: row, UserName: username, Field: field, Message: msg})
}

func (r *Report) warn(row int, username, msg string) {
	r.Warnings = append(r.Warnings, RowError{Row: row, UserName: username, Message: msg})
}

func (r *Report) sort() {
	sort.SliceStable(r.Details, func(i, j int) bool { return r.Details[i].Row < r.Details[j].Row })
	sort.SliceStable(r.Errors, func(i, j int) bool { return r.Errors[i].Row < r.Errors[j].Row })
	sort.SliceStable(r.Warnings, func(i, j int) bool { return r.Warnings[i].Row < r.Warnings[j].Row })
}
