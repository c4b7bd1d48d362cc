package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/staffkeeper/internal/server/config"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/categories"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/entries"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestNewPostgresRepositoryManager_ImplementsInterface(t *testing.T) {
	var _ RepositoryManager = NewPostgresRepositoryManager(config.Collections{})
}

func TestNewPostgresRepositoryManager_DefaultCollections(t *testing.T) {
	m := NewPostgresRepositoryManager(config.Collections{Entries: "staff_entries"})
	want := config.Collections{Users: "users", Categories: "categories", Entries: "staff_entries"}
	if m.collections != want {
		t.Fatalf("collections = %+v, want %+v", m.collections, want)
	}
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m := NewPostgresRepositoryManager(config.Collections{})

	if u := m.Users(db); u == nil {
		t.Fatal("Users() nil")
	}
	if c := m.Categories(db); c == nil {
		t.Fatal("Categories() nil")
	}
	if en := m.Entries(db); en == nil {
		t.Fatal("Entries() nil")
	}

	var _ users.Repository = m.Users(db)
	var _ categories.Repository = m.Categories(db)
	var _ entries.Repository = m.Entries(db)
}

func TestFactories_UseConfiguredTable(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()

	m := NewPostgresRepositoryManager(config.Collections{Entries: "staff_entries"})

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM staff_entries WHERE category_id = \$1`).
		WithArgs("0b6f2c1e-4a8d-4f3b-9c2e-7d1a5e9f3b20").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := m.Entries(db).CountByCategory(context.Background(), "0b6f2c1e-4a8d-4f3b-9c2e-7d1a5e9f3b20")
	if err != nil {
		t.Fatalf("CountByCategory error: %v", err)
	}
	if n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m := NewPostgresRepositoryManager(config.Collections{})
	if err := m.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m := NewPostgresRepositoryManager(config.Collections{})
	if err := m.RunMigrations(context.Background(), db); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}
