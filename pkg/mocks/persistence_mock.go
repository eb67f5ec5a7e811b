package mocks

import (
	"context"
	"time"

	"github.com/dukex/flowcrm/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) Save(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockPersistence) GetByID(ctx context.Context, tenantID, id int64) (*models.Workflow, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockPersistence) List(ctx context.Context, tenantID int64) ([]*models.Workflow, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockPersistence) FindActive(
	ctx context.Context,
	tenantID int64,
	entityType models.EntityType,
	frequency models.TriggerFrequency,
) ([]*models.Workflow, error) {
	args := m.Called(ctx, tenantID, entityType, frequency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockPersistence) SetActive(ctx context.Context, tenantID, id int64, active bool) error {
	args := m.Called(ctx, tenantID, id, active)

	return args.Error(0)
}

func (m *MockPersistence) StampExecution(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)

	return args.Error(0)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
