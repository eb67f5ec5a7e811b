// Package persistence stores workflows and their execution telemetry.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/flowcrm/pkg/models"
)

// WorkflowRepository is the storage of workflows.
//
// Save replaces the condition and actions of an existing workflow wholesale and never touches its
// telemetry. StampExecution is the only write path for telemetry: implementations must increment
// the trigger count atomically, independent of any previously read value.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, tenantID, id int64) (*models.Workflow, error)
	List(ctx context.Context, tenantID int64) ([]*models.Workflow, error)
	FindActive(ctx context.Context, tenantID int64, entityType models.EntityType, frequency models.TriggerFrequency) ([]*models.Workflow, error)
	SetActive(ctx context.Context, tenantID, id int64, active bool) error
	StampExecution(ctx context.Context, id int64, at time.Time) error
}

type Persistence interface {
	WorkflowRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
