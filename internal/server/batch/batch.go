// Package batch commits an ordered mutation sequence in fixed-size groups.
// Each group is atomic; the sequence as a whole is not. A failing group stops
// the run and the caller learns exactly how many operations were committed.
package batch

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/logging"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/patch"
)

// Target names the collection a mutation applies to.
type Target string

const (
	TargetUsers   Target = "users"
	TargetEntries Target = "entries"
)

// Op is the kind of write.
type Op string

const OpUpdate Op = "update"

// Mutation is one document write inside a group.
type Mutation struct {
	Target Target
	Op     Op
	ID     string
	Fields patch.Fields
}

// Committer is the document store's grouped-atomic-write primitive: either
// every mutation of the group is applied or none is.
type Committer interface {
	CommitGroup(ctx context.Context, group []Mutation) error
}

// Result reports progress of an Execute call.
type Result struct {
	// Committed counts operations in fully committed groups.
	Committed int
	// Groups is the number of committed groups.
	Groups int
	// TotalGroups is the number of groups the sequence was split into.
	TotalGroups int
	// FailedGroup is the 1-based index of the failing group, 0 on success.
	FailedGroup int
}

// Executor partitions and commits mutation sequences.
type Executor struct {
	committer Committer
	groupSize int
	logger    logging.Logger
}

// NewExecutor returns an Executor committing groups of at most groupSize
// operations. groupSize is clamped into [1, common.MaxBatchGroupSize].
func NewExecutor(c Committer, groupSize int, l logging.Logger) *Executor {
	if groupSize <= 0 || groupSize > common.MaxBatchGroupSize {
		groupSize = common.MaxBatchGroupSize
	}
	return &Executor{committer: c, groupSize: groupSize, logger: l.With("module", "batch")}
}

// GroupSize returns the effective cap.
func (e *Executor) GroupSize() int {
	return e.groupSize
}

// Execute commits ops group by group, never two groups in flight. On the
// first failing group it stops and returns the progress so far together with
// an authoritative ProviderError. There is no retry and no rollback of
// earlier groups.
func (e *Executor) Execute(ctx context.Context, ops []Mutation) (Result, error) {
	groups := Partition(ops, e.groupSize)
	res := Result{TotalGroups: len(groups)}

	for i, group := range groups {
		err := ctx.Err()
		if err == nil {
			err = e.committer.CommitGroup(ctx, group)
		}
		if err != nil {
			res.FailedGroup = i + 1
			e.logger.Error(ctx, "batch group failed",
				"group", i+1, "groups", len(groups), "size", len(group), "committed", res.Committed, "error", err)
			return res, common.NewAuthoritativeError(fmt.Sprintf("commit group %d/%d", i+1, len(groups)), err)
		}
		res.Committed += len(group)
		res.Groups++
		e.logger.Debug(ctx, "batch group committed", "group", i+1, "groups", len(groups), "size", len(group))
	}

	return res, nil
}

// Partition splits items into consecutive groups of at most size elements,
// preserving order. It yields ceil(len/size) groups; the last one holds the
// remainder.
func Partition[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	groups := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		groups = append(groups, items[start:end])
	}
	return groups
}
