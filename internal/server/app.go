// Package server assembles the reconciliation engine: it opens the document
// store and the identity provider, builds the repositories, the batch
// executor and the three reconciliation components, and exposes them through
// a single StaffService.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/identity"
	"github.com/dmitrijs2005/staffkeeper/internal/logging"
	"github.com/dmitrijs2005/staffkeeper/internal/objstore"
	"github.com/dmitrijs2005/staffkeeper/internal/server/auth"
	"github.com/dmitrijs2005/staffkeeper/internal/server/batch"
	"github.com/dmitrijs2005/staffkeeper/internal/server/claimsync"
	"github.com/dmitrijs2005/staffkeeper/internal/server/config"
	"github.com/dmitrijs2005/staffkeeper/internal/server/importer"
	"github.com/dmitrijs2005/staffkeeper/internal/server/integrity"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/staffkeeper/internal/server/services"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	identityDB *sql.DB
	manager    repomanager.RepositoryManager
	provider   *identity.SQLiteProvider
	service    *services.StaffService
}

// openStore is a seam for sql.Open on the document store.
var openStore = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// newObjectStore is a seam for objstore.New.
var newObjectStore = func(ctx context.Context, c *config.Config, l logging.Logger) (fetcher, error) {
	return objstore.New(ctx, c, l)
}

type fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// NewApp opens both stores and wires the components. Connections are opened
// lazily by database/sql, so an unreachable document store surfaces on the
// first operation rather than here.
func NewApp(ctx context.Context, c *config.Config, l logging.Logger) (*App, error) {
	db, err := openStore(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	idb, err := identity.Open(ctx, c.IdentityDSN)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("identity init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager(c.Collections)
	ex := batch.NewExecutor(repomanager.NewCommitter(db, m), c.GroupSize(), l)
	p := identity.NewSQLiteProvider(idb, c, l)

	u, cats, e := m.Users(db), m.Categories(db), m.Entries(db)
	svc := services.NewStaffService(
		u,
		cats,
		integrity.New(cats, e, ex, time.Now, l),
		claimsync.New(u, p, time.Now, l),
		importer.New(u, p, ex, importer.RulesFromConfig(c), time.Now, l),
		time.Now,
		l,
	)

	return &App{
		config:     c,
		logger:     l,
		db:         db,
		identityDB: idb,
		manager:    m,
		provider:   p,
		service:    svc,
	}, nil
}

func (a *App) Service() *services.StaffService {
	return a.service
}

// Migrate applies the embedded document store migrations.
func (a *App) Migrate(ctx context.Context) error {
	a.logger.Info(ctx, "running migrations")
	return a.manager.RunMigrations(ctx, a.db)
}

// FetchImport downloads an import file from the configured bucket.
func (a *App) FetchImport(ctx context.Context, key string) ([]byte, error) {
	st, err := newObjectStore(ctx, a.config, a.logger)
	if err != nil {
		return nil, err
	}
	return st.Fetch(ctx, key)
}

// SignIn authenticates username against the identity provider.
func (a *App) SignIn(ctx context.Context, username, password string) (*identity.TokenPair, error) {
	return a.provider.SignIn(ctx, identity.Email(username, a.config.IdentityEmailDomain), password)
}

func (a *App) VerifyToken(ctx context.Context, token string) (*auth.TokenClaims, error) {
	return a.provider.VerifyAccessToken(ctx, token)
}

func (a *App) Close() error {
	return errors.Join(a.db.Close(), a.identityDB.Close())
}
