package mocks

import (
	"context"

	"gallery/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockUploadService struct {
	mock.Mock
}

func (m *MockUploadService) Authorize(ctx context.Context, req model.CredentialRequest, caller model.CallerIdentity) (*model.UploadCredential, error) {
	args := m.Called(ctx, req, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UploadCredential), args.Error(1)
}
