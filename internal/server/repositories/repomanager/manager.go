package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/staffkeeper/internal/dbx"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/categories"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/entries"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either the pool or an open
// transaction, so the same code path serves single writes and grouped ones.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Categories(db dbx.DBTX) categories.Repository
	Entries(db dbx.DBTX) entries.Repository
}
