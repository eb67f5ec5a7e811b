package mocks

import (
	"context"

	"github.com/dukex/flowcrm/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockCollaborators is a mock implementation of lookup.Collaborators.
type MockCollaborators struct {
	mock.Mock
}

func (m *MockCollaborators) GetUser(ctx context.Context, id int64, token string) (*models.User, error) {
	args := m.Called(ctx, id, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockCollaborators) GetTenant(ctx context.Context, token string) (*models.Tenant, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockCollaborators) GetPipeline(ctx context.Context, id int64, token string) (models.IdName, error) {
	args := m.Called(ctx, id, token)

	return args.Get(0).(models.IdName), args.Error(1)
}

func (m *MockCollaborators) GetPipelineStage(ctx context.Context, id int64, token string) (models.IdName, error) {
	args := m.Called(ctx, id, token)

	return args.Get(0).(models.IdName), args.Error(1)
}

func (m *MockCollaborators) GetProduct(ctx context.Context, id int64, token string) (models.IdName, error) {
	args := m.Called(ctx, id, token)

	return args.Get(0).(models.IdName), args.Error(1)
}

func (m *MockCollaborators) GetContact(ctx context.Context, id int64, token string) (*models.Contact, error) {
	args := m.Called(ctx, id, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Contact), args.Error(1)
}
