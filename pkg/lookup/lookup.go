// Package lookup reaches the CRM services that own users, tenants, pipelines, products and contacts.
package lookup

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/flowcrm/pkg/models"
)

var ErrNotFound = errors.New("not found")

// StatusError is returned when a collaborator answers with an unexpected status code.
type StatusError struct {
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lookup %s: unexpected status %d", e.Path, e.StatusCode)
}

type Users interface {
	GetUser(ctx context.Context, id int64, token string) (*models.User, error)
}

type Tenants interface {
	GetTenant(ctx context.Context, token string) (*models.Tenant, error)
}

type Pipelines interface {
	GetPipeline(ctx context.Context, id int64, token string) (models.IdName, error)
	GetPipelineStage(ctx context.Context, id int64, token string) (models.IdName, error)
}

type Products interface {
	GetProduct(ctx context.Context, id int64, token string) (models.IdName, error)
}

type Contacts interface {
	GetContact(ctx context.Context, id int64, token string) (*models.Contact, error)
}

// Collaborators groups every lookup the engine needs.
type Collaborators interface {
	Users
	Tenants
	Pipelines
	Products
	Contacts
}
