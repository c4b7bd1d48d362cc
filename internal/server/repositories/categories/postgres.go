// Package categories provides the PostgreSQL-backed repository for taxonomy categories.
package categories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/dbx"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
)

const categoryColumns = `id, name, display_order, form_config, created_at, updated_at, created_by, updated_by`

type PostgresRepository struct {
	db    dbx.DBTX
	table string
}

func NewPostgresRepository(db dbx.DBTX, table string) *PostgresRepository {
	return &PostgresRepository{db: db, table: table}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Category) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, name, display_order, form_config, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, r.table)

	_, err := r.db.ExecContext(ctx, query, c.ID, c.Name, c.DisplayOrder, formConfig(c),
		c.CreatedAt, c.UpdatedAt, c.CreatedBy, c.UpdatedBy)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an existing category. Audit creation
// fields are left untouched.
func (r *PostgresRepository) Update(ctx context.Context, c *models.Category) error {
	if err := common.CheckID("category", c.ID); err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET name = $1, display_order = $2, form_config = $3, updated_at = $4, updated_by = $5
		WHERE id = $6`, r.table)

	res, err := r.db.ExecContext(ctx, query, c.Name, c.DisplayOrder, formConfig(c), c.UpdatedAt, c.UpdatedBy, c.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res, c.ID)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	if err := common.CheckID("category", id); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, categoryColumns, r.table)
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE name = $1`, categoryColumns, r.table)
	return r.getOne(ctx, query, name)
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY display_order, name`, categoryColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if err := common.CheckID("category", id); err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCategory(s scanner) (*models.Category, error) {
	var (
		c    models.Category
		form []byte
	)
	if err := s.Scan(&c.ID, &c.Name, &c.DisplayOrder, &form, &c.CreatedAt, &c.UpdatedAt, &c.CreatedBy, &c.UpdatedBy); err != nil {
		return nil, err
	}
	c.FormConfig = form
	return &c, nil
}

func formConfig(c *models.Category) []byte {
	if len(c.FormConfig) == 0 {
		return []byte("{}")
	}
	return c.FormConfig
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.NewNotFoundError("category", id)
	}
	return nil
}
