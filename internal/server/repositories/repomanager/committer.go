package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/dbx"
	"github.com/dmitrijs2005/staffkeeper/internal/server/batch"
)

// Committer applies a batch group inside a single transaction.
type Committer struct {
	db      dbx.TxBeginner
	manager RepositoryManager
}

// NewCommitter returns a batch.Committer over db.
func NewCommitter(db dbx.TxBeginner, m RepositoryManager) *Committer {
	return &Committer{db: db, manager: m}
}

// CommitGroup writes every mutation of group in one transaction. Any failing
// mutation rolls the whole group back.
func (c *Committer) CommitGroup(ctx context.Context, group []batch.Mutation) error {
	if len(group) > common.MaxBatchGroupSize {
		return fmt.Errorf("group of %d exceeds limit %d", len(group), common.MaxBatchGroupSize)
	}

	return dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for i, m := range group {
			if err := c.apply(ctx, tx, m); err != nil {
				return fmt.Errorf("mutation %d (%s %s %s): %w", i, m.Op, m.Target, m.ID, err)
			}
		}
		return nil
	})
}

func (c *Committer) apply(ctx context.Context, tx dbx.DBTX, m batch.Mutation) error {
	switch {
	case m.Target == batch.TargetEntries && m.Op == batch.OpUpdate:
		return c.manager.Entries(tx).UpdateFields(ctx, m.ID, m.Fields)
	case m.Target == batch.TargetUsers && m.Op == batch.OpUpdate:
		return c.manager.Users(tx).UpdateFields(ctx, m.ID, m.Fields)
	default:
		return fmt.Errorf("unsupported mutation %s on %s", m.Op, m.Target)
	}
}
