package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, key, contentType, expiry)
	if f, ok := args.Get(0).(func(context.Context, string, string, time.Duration) string); ok {
		return f(ctx, key, contentType, expiry), args.Error(1)
	}
	return args.String(0), args.Error(1)
}

func (m *MockStorage) PublicURL(key string) string {
	args := m.Called(key)
	if f, ok := args.Get(0).(func(string) string); ok {
		return f(key)
	}
	return args.String(0)
}
