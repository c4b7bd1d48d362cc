package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/server/integrity"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/dmitrijs2005/staffkeeper/internal/server/policy"
	"github.com/google/uuid"
)

func (s *StaffService) GetAllCategories(ctx context.Context, a Actor) ([]*models.Category, error) {
	if err := s.authorize(ctx, a, policy.ViewCategories); err != nil {
		return nil, err
	}
	return s.categories.List(ctx)
}

// SaveCategory creates c when it has no id and updates it otherwise. Names
// must be unique. Renaming does not touch the cached name on entries.
func (s *StaffService) SaveCategory(ctx context.Context, a Actor, c *models.Category) (*models.Category, error) {
	if err := s.authorize(ctx, a, policy.SaveCategory); err != nil {
		return nil, err
	}

	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, common.NewValidationError(0, "name", "is required")
	}
	if len(c.FormConfig) > 0 && !json.Valid(c.FormConfig) {
		return nil, common.NewValidationError(0, "formConfig", "must be valid JSON")
	}

	same, err := s.categories.GetByName(ctx, c.Name)
	switch {
	case err == nil && same.ID != c.ID:
		return nil, common.NewConflictError("category", c.Name, "name already in use")
	case err != nil && !errors.Is(err, common.ErrorNotFound):
		return nil, common.NewAuthoritativeError("get category by name", err)
	}

	now := s.now().UTC()
	c.UpdatedAt, c.UpdatedBy = now, a.UserName

	if c.ID == "" {
		c.ID = uuid.NewString()
		c.CreatedAt, c.CreatedBy = now, a.UserName
		if err := s.categories.Create(ctx, c); err != nil {
			return nil, common.NewAuthoritativeError("create category", err)
		}
		s.logger.Info(ctx, "category created", "id", c.ID, "name", c.Name, "actor", a.UserName)
		return c, nil
	}

	if err := s.categories.Update(ctx, c); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, common.NewAuthoritativeError("update category", err)
	}
	s.logger.Info(ctx, "category updated", "id", c.ID, "name", c.Name, "actor", a.UserName)
	return c, nil
}

// DeleteCategory deletes sourceID, migrating its entries to targetID first
// when any reference it.
func (s *StaffService) DeleteCategory(ctx context.Context, a Actor, sourceID, targetID string) (*integrity.Outcome, error) {
	if err := s.authorize(ctx, a, policy.DeleteCategory); err != nil {
		return nil, err
	}
	return s.coordinator.DeleteCategory(ctx, sourceID, targetID, a.UserName)
}

func (s *StaffService) CheckUsage(ctx context.Context, a Actor, categoryID string) (int, error) {
	if err := s.authorize(ctx, a, policy.CheckUsage); err != nil {
		return 0, err
	}
	return s.coordinator.CheckUsage(ctx, categoryID)
}

// MigrateEntries moves entries between categories without deleting either.
func (s *StaffService) MigrateEntries(ctx context.Context, a Actor, fromID, toID string) (*integrity.Outcome, error) {
	if err := s.authorize(ctx, a, policy.MigrateEntries); err != nil {
		return nil, err
	}
	return s.coordinator.MigrateEntries(ctx, fromID, toID, a.UserName)
}
