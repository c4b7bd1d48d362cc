package services

import (
	"context"

	"github.com/dmitrijs2005/staffkeeper/internal/server/importer"
	"github.com/dmitrijs2005/staffkeeper/internal/server/policy"
)

func (s *StaffService) PreviewImport(ctx context.Context, a Actor, f importer.File) (*importer.Report, error) {
	if err := s.authorize(ctx, a, policy.ImportUsers); err != nil {
		return nil, err
	}
	return s.importer.Preview(ctx, f)
}

func (s *StaffService) ApplyImport(ctx context.Context, a Actor, f importer.File) (*importer.Report, error) {
	if err := s.authorize(ctx, a, policy.ImportUsers); err != nil {
		return nil, err
	}
	return s.importer.Apply(ctx, f, a.UserName)
}
