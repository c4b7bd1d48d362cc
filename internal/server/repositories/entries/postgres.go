// Package entries provides the PostgreSQL-backed repository for workload entries
// and the reverse-reference queries used by category migration.
package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/dbx"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/patch"
)

const entryColumns = `id, user_id, category_id, category_name, payload, migrated_from, migrated_at, migrated_by, created_at, updated_at`

// PostgresRepository implements entry storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db    dbx.DBTX
	table string
}

// NewPostgresRepository constructs a repository bound to the given DBTX and table.
func NewPostgresRepository(db dbx.DBTX, table string) *PostgresRepository {
	return &PostgresRepository{db: db, table: table}
}

func (r *PostgresRepository) Create(ctx context.Context, e *models.Entry) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, user_id, category_id, category_name, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, r.table)

	payload := []byte(e.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := r.db.ExecContext(ctx, query, e.ID, e.UserID, nullString(e.CategoryID), e.CategoryName, payload, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Entry, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, entryColumns, r.table)

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

// CountByCategory returns 0 for a categoryID that is not a UUID, since no
// entry can reference it.
func (r *PostgresRepository) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	if common.CheckID("category", categoryID) != nil {
		return 0, nil
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE category_id = $1`, r.table)

	var n int
	if err := r.db.QueryRowContext(ctx, query, categoryID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ListByCategory(ctx context.Context, categoryID string) ([]*models.Entry, error) {
	if common.CheckID("category", categoryID) != nil {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE category_id = $1 ORDER BY created_at, id`, entryColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []*models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) UpdateFields(ctx context.Context, id string, fields patch.Fields) error {
	query, args, err := patch.BuildUpdate(r.table, Writable, id, fields)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*models.Entry, error) {
	var (
		e            models.Entry
		categoryID   sql.NullString
		payload      []byte
		migratedFrom sql.NullString
		migratedAt   sql.NullTime
		migratedBy   sql.NullString
	)
	if err := s.Scan(&e.ID, &e.UserID, &categoryID, &e.CategoryName, &payload,
		&migratedFrom, &migratedAt, &migratedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.CategoryID = categoryID.String
	e.Payload = payload
	e.MigratedFrom = migratedFrom.String
	e.MigratedBy = migratedBy.String
	if migratedAt.Valid {
		t := migratedAt.Time
		e.MigratedAt = &t
	}
	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.NewNotFoundError("entry", id)
	}
	return nil
}
