package users

import (
	"context"

	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/patch"
)

// Repository is the document store contract for user records.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	// ListProvisioned returns users that carry an external identity reference.
	ListProvisioned(ctx context.Context) ([]*models.User, error)
	UpdateFields(ctx context.Context, id string, fields patch.Fields) error
}

// Writable lists the columns UpdateFields may touch. username is the
// immutable identity key and never appears here.
var Writable = patch.NewAllowList(
	"name", "position", "department", "role", "external_id", "updated_at", "updated_by",
)
