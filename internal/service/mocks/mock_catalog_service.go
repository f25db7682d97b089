package mocks

import (
	"context"

	"gallery/internal/model"
	"gallery/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) Record(ctx context.Context, in model.CatalogEntryInput) (*model.CatalogEntry, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CatalogEntry), args.Error(1)
}

func (m *MockCatalogService) List(ctx context.Context) (*service.CatalogListResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CatalogListResult), args.Error(1)
}
