// Package actions implements the effects a workflow applies to a record once its condition holds.
package actions

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/flowcrm/pkg/eventbus"
	"github.com/dukex/flowcrm/pkg/events"
	"github.com/dukex/flowcrm/pkg/lookup"
	"github.com/dukex/flowcrm/pkg/models"
	"github.com/dukex/flowcrm/pkg/schema"
	"github.com/dukex/flowcrm/pkg/secrets"
	"github.com/dukex/flowcrm/pkg/template"
)

// Action is one step of a workflow.
//
// Apply may mutate the record it is given; the processor hands every workflow a working copy so
// that edits made by earlier actions are visible to later ones. The returned Effect tells the
// processor what to do with the outcome. A nil Effect means the action had nothing to emit or
// already performed its side effect, as webhooks do.
type Action interface {
	Type() models.ActionType
	Validate() error
	Apply(ctx context.Context, record models.Record, exec *Execution) (Effect, error)
}

// Effect is the outcome of an applied action.
type Effect interface {
	effect()
}

// PatchFragment holds field values to merge into the record's single patch command.
type PatchFragment struct {
	Fields map[string]any
}

// Publish carries a command to be sent on the bus as soon as the action completes.
type Publish struct {
	Event eventbus.Event
}

func (PatchFragment) effect() {}
func (Publish) effect()       {}

// Metadata identifies the workflow run an action belongs to.
type Metadata struct {
	TenantID          int64
	UserID            int64
	EntityType        models.EntityType
	WorkflowID        int64
	WorkflowName      string
	WorkflowCreatedBy int64
	WorkflowUpdatedBy int64
	Token             string
}

// Env holds the collaborators actions use. It is shared across runs.
type Env struct {
	Registry   *schema.Registry
	Users      lookup.Users
	Tenants    lookup.Tenants
	Contacts   lookup.Contacts
	Crypter    secrets.Crypter
	HTTPClient *http.Client
	Now        func() time.Time
	Logger     *slog.Logger
}

// Execution is what an action sees while it runs.
type Execution struct {
	Metadata
	*Env
}

func (e *Execution) now() time.Time {
	if e.Env == nil || e.Now == nil {
		return time.Now()
	}

	return e.Now()
}

func (e *Execution) logger() *slog.Logger {
	if e.Env == nil || e.Logger == nil {
		return slog.Default()
	}

	return e.Logger
}

func (e *Execution) registry() *schema.Registry {
	if e.Env == nil || e.Registry == nil {
		return schema.Default()
	}

	return e.Registry
}

func (e *Execution) templateContext() template.Context {
	return template.Context{
		TenantID:     e.TenantID,
		UserID:       e.UserID,
		WorkflowID:   e.WorkflowID,
		WorkflowName: e.WorkflowName,
		Now:          e.now(),
	}
}

func relatedTo(record models.Record) events.RelatedEntity {
	return events.RelatedEntity{ID: record.GetID(), EntityType: record.EntityType(), Name: record.GetName()}
}
