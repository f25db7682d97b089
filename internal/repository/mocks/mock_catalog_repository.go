package mocks

import (
	"context"

	"gallery/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) Append(ctx context.Context, rec model.CatalogRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockCatalogRepository) Scan(ctx context.Context) ([]model.CatalogRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CatalogRecord), args.Error(1)
}

func (m *MockCatalogRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
