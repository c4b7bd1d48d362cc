// Package integrity guards category deletion and reassigns entries between
// categories.
//
// A deletion runs through Requested, Guarded, then either Done (no entry
// references the category) or AwaitingTarget. With a target it continues to
// Migrating, where every referencing entry is rewritten through the batch
// executor, and then Deleting and Done. A failed batch group ends in Rejected:
// entries migrated so far stay migrated and the category is kept.
//
// The usage count and the rewrite are separate steps, so an entry created
// against the source category in between is not migrated. The count is taken
// again before deleting and a late reference stops the deletion.
package integrity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/logging"
	"github.com/dmitrijs2005/staffkeeper/internal/server/batch"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/categories"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/entries"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/patch"
)

// State is a step of the deletion state machine.
type State string

const (
	Requested      State = "requested"
	Guarded        State = "guarded"
	AwaitingTarget State = "awaiting_target"
	Migrating      State = "migrating"
	Deleting       State = "deleting"
	Done           State = "done"
	Rejected       State = "rejected"
)

// Outcome reports where an operation ended and what it wrote.
type Outcome struct {
	State    State   `json:"state"`
	Trace    []State `json:"trace"`
	SourceID string  `json:"sourceId"`
	TargetID string  `json:"targetId,omitempty"`
	// Usage is the reverse-reference count taken by the guard.
	Usage         int  `json:"usage"`
	Pending       int  `json:"pending"`
	MigratedCount int  `json:"migratedCount"`
	GroupsDone    int  `json:"groupsDone"`
	GroupsTotal   int  `json:"groupsTotal"`
	FailedGroup   int  `json:"failedGroup,omitempty"`
	// LateReferences counts entries that appeared between guard and delete.
	LateReferences int    `json:"lateReferences,omitempty"`
	Deleted        bool   `json:"deleted"`
	Error          string `json:"error,omitempty"`
}

func (o *Outcome) enter(s State) {
	o.State = s
	o.Trace = append(o.Trace, s)
}

func (o *Outcome) reject(err error) (*Outcome, error) {
	o.enter(Rejected)
	o.Error = err.Error()
	return o, err
}

// Coordinator runs usage checks, migrations and guarded deletes.
type Coordinator struct {
	categories categories.Repository
	entries    entries.Repository
	executor   *batch.Executor
	now        func() time.Time
	logger     logging.Logger
}

// New returns a Coordinator.
func New(c categories.Repository, e entries.Repository, ex *batch.Executor, now func() time.Time, l logging.Logger) *Coordinator {
	if now == nil {
		now = time.Now
	}
	return &Coordinator{categories: c, entries: e, executor: ex, now: now, logger: l.With("module", "integrity")}
}

// CheckUsage returns how many entries reference the category.
func (c *Coordinator) CheckUsage(ctx context.Context, categoryID string) (int, error) {
	if _, err := c.categories.GetByID(ctx, categoryID); err != nil {
		return 0, err
	}
	return c.count(ctx, categoryID)
}

func (c *Coordinator) count(ctx context.Context, categoryID string) (int, error) {
	n, err := c.entries.CountByCategory(ctx, categoryID)
	if err != nil {
		return 0, common.NewAuthoritativeError("count entries", err)
	}
	return n, nil
}

// InUseError rejects a delete of a referenced category without a target.
type InUseError struct {
	CategoryID string
	Count      int
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("category %s is referenced by %d entries; a target category is required", e.CategoryID, e.Count)
}

func (e *InUseError) Is(target error) bool { return target == common.ErrCategoryInUse }

// DeleteCategory deletes sourceID. When entries reference it, targetID must
// name a different existing category; the entries are moved there first.
// No target is ever picked automatically.
func (c *Coordinator) DeleteCategory(ctx context.Context, sourceID, targetID, actor string) (*Outcome, error) {
	o := &Outcome{SourceID: sourceID, TargetID: targetID}
	o.enter(Requested)

	if _, err := c.categories.GetByID(ctx, sourceID); err != nil {
		return o.reject(err)
	}

	n, err := c.count(ctx, sourceID)
	if err != nil {
		return o.reject(err)
	}
	o.Usage = n
	o.enter(Guarded)

	if n > 0 {
		o.enter(AwaitingTarget)
		if targetID == "" {
			err := &InUseError{CategoryID: sourceID, Count: n}
			o.Error = err.Error()
			c.logger.Info(ctx, "delete blocked by references", "category", sourceID, "usage", n)
			return o, err
		}

		if err := c.migrate(ctx, o, sourceID, targetID, actor); err != nil {
			return o.reject(err)
		}

		late, err := c.count(ctx, sourceID)
		if err != nil {
			return o.reject(err)
		}
		if late > 0 {
			o.LateReferences = late
			return o.reject(&InUseError{CategoryID: sourceID, Count: late})
		}
	}

	o.enter(Deleting)
	if err := c.categories.Delete(ctx, sourceID); err != nil {
		return o.reject(common.NewAuthoritativeError("delete category", err))
	}
	o.Deleted = true
	o.enter(Done)

	c.logger.Info(ctx, "category deleted", "category", sourceID, "target", targetID, "migrated", o.MigratedCount)
	return o, nil
}

// MigrateEntries moves every entry of fromID to toID without deleting fromID.
// fromID need not exist, which lets orphaned entries be repaired.
func (c *Coordinator) MigrateEntries(ctx context.Context, fromID, toID, actor string) (*Outcome, error) {
	o := &Outcome{SourceID: fromID, TargetID: toID}
	o.enter(Requested)

	n, err := c.count(ctx, fromID)
	if err != nil {
		return o.reject(err)
	}
	o.Usage = n
	o.enter(Guarded)
	o.enter(AwaitingTarget)

	if err := c.migrate(ctx, o, fromID, toID, actor); err != nil {
		return o.reject(err)
	}

	o.enter(Done)
	return o, nil
}

func (c *Coordinator) migrate(ctx context.Context, o *Outcome, sourceID, targetID, actor string) error {
	if targetID == "" {
		return common.NewValidationError(0, "target", "target category is required")
	}
	if targetID == sourceID {
		return common.ErrSameCategory
	}

	target, err := c.categories.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.NewNotFoundError("category", targetID)
		}
		return common.NewAuthoritativeError("get target category", err)
	}

	refs, err := c.entries.ListByCategory(ctx, sourceID)
	if err != nil {
		return common.NewAuthoritativeError("list entries", err)
	}

	muts := Mutations(refs, sourceID, target, actor, c.now().UTC())
	o.Pending = len(muts)
	o.enter(Migrating)

	res, err := c.executor.Execute(ctx, muts)
	o.MigratedCount = res.Committed
	o.GroupsDone = res.Groups
	o.GroupsTotal = res.TotalGroups
	o.FailedGroup = res.FailedGroup
	if err != nil {
		c.logger.Error(ctx, "migration stopped", "from", sourceID, "to", targetID,
			"migrated", res.Committed, "pending", len(muts), "error", err)
		return err
	}

	c.logger.Info(ctx, "entries migrated", "from", sourceID, "to", targetID, "count", res.Committed)
	return nil
}

// Mutations builds one entry update per reference: the new category id, the
// target's current name and the migration stamp.
func Mutations(refs []*models.Entry, sourceID string, target *models.Category, actor string, at time.Time) []batch.Mutation {
	muts := make([]batch.Mutation, 0, len(refs))
	for _, e := range refs {
		muts = append(muts, batch.Mutation{
			Target: batch.TargetEntries,
			Op:     batch.OpUpdate,
			ID:     e.ID,
			Fields: patch.Fields{
				"category_id":   target.ID,
				"category_name": target.Name,
				"migrated_from": sourceID,
				"migrated_at":   at,
				"migrated_by":   actor,
				"updated_at":    at,
			},
		})
	}
	return muts
}
