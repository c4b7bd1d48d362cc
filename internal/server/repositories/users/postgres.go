// Package users provides the PostgreSQL-backed repository for staff user records.
package users

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

const userColumns = `id, username, name, position, department, role, external_id, created_at, updated_at, created_by, updated_by`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db    dbx.DBTX
	table string
}

// NewPostgresRepository constructs a repository bound to the given DBTX and table.
func NewPostgresRepository(db dbx.DBTX, table string) *PostgresRepository {
	return &PostgresRepository{db: db, table: table}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := fmt.Sprintf(`INSERT INTO %s (id, username, name, position, department, role, external_id, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.UserName, user.Name, user.Position, user.Department, string(user.Role),
		nullString(user.ExternalID), user.CreatedAt, user.UpdatedAt, user.CreatedBy, user.UpdatedBy)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, userColumns, r.table)
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE username = $1`, userColumns, r.table)
	return r.getOne(ctx, query, userName)
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY username`, userColumns, r.table)
	return r.list(ctx, query)
}

func (r *PostgresRepository) ListProvisioned(ctx context.Context) ([]*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE external_id IS NOT NULL AND external_id <> '' ORDER BY username`, userColumns, r.table)
	return r.list(ctx, query)
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
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.NewNotFoundError("user", id)
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.User, error) {
	var (
		u          models.User
		role       string
		externalID sql.NullString
	)
	if err := s.Scan(&u.ID, &u.UserName, &u.Name, &u.Position, &u.Department, &role, &externalID,
		&u.CreatedAt, &u.UpdatedAt, &u.CreatedBy, &u.UpdatedBy); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	u.ExternalID = externalID.String
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
