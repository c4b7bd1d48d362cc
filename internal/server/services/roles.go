package services

import (
	"context"

	"github.com/dmitrijs2005/staffkeeper/internal/server/claimsync"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/dmitrijs2005/staffkeeper/internal/server/policy"
)

func (s *StaffService) VerifyRoles(ctx context.Context, a Actor) (*claimsync.VerifyReport, error) {
	if err := s.authorize(ctx, a, policy.VerifyRoles); err != nil {
		return nil, err
	}
	return s.sync.VerifyAll(ctx)
}

func (s *StaffService) SyncOneRole(ctx context.Context, a Actor, username string) (*models.Claims, error) {
	if err := s.authorize(ctx, a, policy.SyncRoles); err != nil {
		return nil, err
	}
	u, err := s.lookupUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.sync.SyncOne(ctx, u)
}

func (s *StaffService) SyncAllRoles(ctx context.Context, a Actor) (*claimsync.SyncReport, error) {
	if err := s.authorize(ctx, a, policy.SyncRoles); err != nil {
		return nil, err
	}
	return s.sync.SyncAll(ctx)
}

// ForceInvalidate revokes the sessions of username. confirmed must be set by
// the caller after an explicit confirmation.
func (s *StaffService) ForceInvalidate(ctx context.Context, a Actor, username string, confirmed bool) error {
	if err := s.authorize(ctx, a, policy.ForceInvalidate); err != nil {
		return err
	}
	u, err := s.lookupUser(ctx, username)
	if err != nil {
		return err
	}
	return s.sync.ForceInvalidate(ctx, u, confirmed)
}
