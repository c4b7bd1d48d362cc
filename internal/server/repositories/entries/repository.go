package entries

import (
	"context"

	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/patch"
)

// Repository is the document store contract for entries.
type Repository interface {
	Create(ctx context.Context, e *models.Entry) error
	GetByID(ctx context.Context, id string) (*models.Entry, error)
	// CountByCategory counts reverse references: entries whose category_id equals categoryID.
	CountByCategory(ctx context.Context, categoryID string) (int, error)
	ListByCategory(ctx context.Context, categoryID string) ([]*models.Entry, error)
	UpdateFields(ctx context.Context, id string, fields patch.Fields) error
}

// Writable lists the columns UpdateFields may touch.
var Writable = patch.NewAllowList(
	"category_id", "category_name", "payload",
	"migrated_from", "migrated_at", "migrated_by", "updated_at",
)
