package categories

import (
	"context"

	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
)

// Repository is the document store contract for taxonomy categories.
type Repository interface {
	Create(ctx context.Context, c *models.Category) error
	Update(ctx context.Context, c *models.Category) error
	GetByID(ctx context.Context, id string) (*models.Category, error)
	GetByName(ctx context.Context, name string) (*models.Category, error)
	// List returns categories ordered by display order, then name.
	List(ctx context.Context) ([]*models.Category, error)
	Delete(ctx context.Context, id string) error
}
