// Package services is the operation surface consumed by the CLI. Every call
// names an actor; the actor's role is read from the stored user record and
// checked against the policy table before anything is written.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/logging"
	"github.com/dmitrijs2005/staffkeeper/internal/server/claimsync"
	"github.com/dmitrijs2005/staffkeeper/internal/server/importer"
	"github.com/dmitrijs2005/staffkeeper/internal/server/integrity"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/dmitrijs2005/staffkeeper/internal/server/policy"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/categories"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/users"
)

// Actor is the caller of an operation.
type Actor struct {
	UserName string
	Role     models.Role
}

// StaffService wires the reconciliation components behind the policy table.
type StaffService struct {
	users       users.Repository
	categories  categories.Repository
	coordinator *integrity.Coordinator
	sync        *claimsync.Synchronizer
	importer    *importer.Importer
	now         func() time.Time
	logger      logging.Logger
}

// NewStaffService returns a StaffService. now stamps category audit fields.
func NewStaffService(
	u users.Repository,
	c categories.Repository,
	co *integrity.Coordinator,
	s *claimsync.Synchronizer,
	im *importer.Importer,
	now func() time.Time,
	l logging.Logger,
) *StaffService {
	if now == nil {
		now = time.Now
	}
	return &StaffService{
		users:       u,
		categories:  c,
		coordinator: co,
		sync:        s,
		importer:    im,
		now:         now,
		logger:      l.With("module", "services"),
	}
}

// ResolveActor loads the actor's role from the stored user record. Unknown
// users are unauthorized.
func (s *StaffService) ResolveActor(ctx context.Context, username string) (Actor, error) {
	u, err := s.users.GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return Actor{}, fmt.Errorf("%w: unknown actor %q", common.ErrorUnauthorized, username)
		}
		return Actor{}, common.NewAuthoritativeError("resolve actor", err)
	}
	return Actor{UserName: u.UserName, Role: u.Role}, nil
}

func (s *StaffService) authorize(ctx context.Context, a Actor, action policy.Action) error {
	if err := policy.Check(a.Role, action); err != nil {
		s.logger.Warn(ctx, "permission denied", "actor", a.UserName, "role", a.Role, "action", action)
		return err
	}
	return nil
}

func (s *StaffService) lookupUser(ctx context.Context, username string) (*models.User, error) {
	u, err := s.users.GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewNotFoundError("user", username)
		}
		return nil, common.NewAuthoritativeError("get user", err)
	}
	return u, nil
}
