package actions

import (
	"context"
	"fmt"

	"github.com/dukex/flowcrm/pkg/models"
	"github.com/dukex/flowcrm/pkg/schema"
	"github.com/dukex/flowcrm/pkg/template"
)

// EditProperty assigns a value to one field of the record.
type EditProperty struct {
	Name       string `json:"name"                 validate:"required"`
	Value      any    `json:"value"`
	IsStandard *bool  `json:"isStandard,omitempty"`
}

func (a *EditProperty) Type() models.ActionType {
	return models.ActionEditProperty
}

func (a *EditProperty) Validate() error {
	return validateStruct(a.Type(), a)
}

// ValidateFor checks that the field exists on entityType and can be written.
func (a *EditProperty) ValidateFor(entityType models.EntityType, registry *schema.Registry) error {
	field, ok := a.field(registry, entityType)
	if !ok {
		return &InvalidActionError{ActionType: a.Type(), Field: "name", Message: fmt.Sprintf("unknown field %q", a.Name)}
	}

	if !field.Settable() {
		return &InvalidActionError{ActionType: a.Type(), Field: "name", Message: fmt.Sprintf("field %q is read-only", a.Name)}
	}

	return nil
}

// Standard reports whether Name is a built-in field; custom fields are addressed by bare name.
func (a *EditProperty) Standard() bool {
	return a.IsStandard == nil || *a.IsStandard
}

func (a *EditProperty) Apply(_ context.Context, record models.Record, exec *Execution) (Effect, error) {
	field, ok := a.field(exec.registry(), record.EntityType())
	if !ok {
		return nil, executionError(a.Type(), exec, "%w: %s", schema.ErrUnknownField, a.Name)
	}

	value, err := a.resolveValue(record, exec)
	if err != nil {
		return nil, executionError(a.Type(), exec, "failed to resolve value of %s: %w", a.Name, err)
	}

	err = field.Set(record, value)
	if err != nil {
		return nil, &WorkflowExecutionError{ActionType: a.Type(), WorkflowID: exec.WorkflowID, Err: err}
	}

	return PatchFragment{Fields: map[string]any{field.Path: field.Raw(record)}}, nil
}

func (a *EditProperty) field(registry *schema.Registry, entityType models.EntityType) (*schema.Field, bool) {
	if !a.Standard() {
		return registry.CustomField(a.Name), true
	}

	return registry.Lookup(entityType, a.Name)
}

func (a *EditProperty) resolveValue(record models.Record, exec *Execution) (any, error) {
	s, ok := a.Value.(string)
	if !ok {
		return a.Value, nil
	}

	if template.NeedsTemplating(s) {
		rendered, err := template.RenderForRecord(s, record, exec.templateContext())
		if err != nil {
			return nil, err
		}

		s = rendered
	}

	return schema.ConvertValue(s), nil
}
