package actions

import (
	"context"

	"github.com/dukex/flowcrm/pkg/models"
	"github.com/dukex/flowcrm/pkg/schema"
)

// Reassign hands the record over to another owner.
type Reassign struct {
	OwnerID int64  `json:"ownerId"        validate:"required,gt=0"`
	Name    string `json:"name,omitempty"`
}

func (a *Reassign) Type() models.ActionType {
	return models.ActionReassign
}

func (a *Reassign) Validate() error {
	return validateStruct(a.Type(), a)
}

// OwnerPath is the field holding the owner of entityType.
func OwnerPath(entityType models.EntityType) string {
	if entityType == models.EntityDeal {
		return "ownedBy"
	}

	return "ownerId"
}

func (a *Reassign) Apply(ctx context.Context, record models.Record, exec *Execution) (Effect, error) {
	path := OwnerPath(record.EntityType())

	field, ok := exec.registry().Lookup(record.EntityType(), path)
	if !ok {
		return nil, executionError(a.Type(), exec, "%w: %s", schema.ErrUnknownField, path)
	}

	owner := models.IdName{ID: a.OwnerID, Name: a.ownerName(ctx, exec)}

	err := field.Set(record, owner)
	if err != nil {
		return nil, &WorkflowExecutionError{ActionType: a.Type(), WorkflowID: exec.WorkflowID, Err: err}
	}

	return PatchFragment{Fields: map[string]any{path: field.Raw(record)}}, nil
}

func (a *Reassign) ownerName(ctx context.Context, exec *Execution) string {
	if a.Name != "" || exec.Env == nil || exec.Users == nil {
		return a.Name
	}

	user, err := exec.Users.GetUser(ctx, a.OwnerID, exec.Token)
	if err != nil {
		exec.logger().WarnContext(ctx, "failed to resolve new owner name", "owner_id", a.OwnerID, "error", err)

		return ""
	}

	return user.Name()
}
