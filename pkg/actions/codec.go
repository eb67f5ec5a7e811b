package actions

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/flowcrm/pkg/models"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func newAction(actionType models.ActionType) (Action, bool) {
	switch actionType {
	case models.ActionEditProperty:
		return &EditProperty{}, true
	case models.ActionReassign:
		return &Reassign{}, true
	case models.ActionCreateTask:
		return &CreateTask{}, true
	case models.ActionSendEmail:
		return &SendEmail{}, true
	case models.ActionWebhook:
		return &Webhook{}, true
	default:
		return nil, false
	}
}

// Decode turns a persisted definition into a validated action.
func Decode(def models.ActionDefinition) (Action, error) {
	action, ok := newAction(def.Type)
	if !ok {
		return nil, &InvalidActionError{ActionType: def.Type, Field: "type", Message: "unsupported action type"}
	}

	if len(def.Payload) == 0 || string(def.Payload) == "null" {
		return nil, &InvalidActionError{ActionType: def.Type, Field: "payload", Message: "payload is required"}
	}

	err := json.Unmarshal(def.Payload, action)
	if err != nil {
		return nil, &InvalidActionError{ActionType: def.Type, Field: "payload", Message: err.Error()}
	}

	err = action.Validate()
	if err != nil {
		return nil, err
	}

	return action, nil
}

// DecodeAll decodes every definition, stopping at the first invalid one.
func DecodeAll(defs []models.ActionDefinition) ([]Action, error) {
	decoded := make([]Action, 0, len(defs))

	for i, def := range defs {
		action, err := Decode(def)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}

		decoded = append(decoded, action)
	}

	return decoded, nil
}

// Encode turns an action back into its persisted form.
func Encode(action Action) (models.ActionDefinition, error) {
	payload, err := json.Marshal(action)
	if err != nil {
		return models.ActionDefinition{}, fmt.Errorf("failed to encode %s action: %w", action.Type(), err)
	}

	return models.ActionDefinition{Type: action.Type(), Payload: payload}, nil
}

// validateStruct runs the struct tags of an action and reports the first violation.
func validateStruct(actionType models.ActionType, action any) error {
	err := validate.Struct(action)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return &InvalidActionError{ActionType: actionType, Message: err.Error()}
	}

	fe := validationErrors[0]

	return &InvalidActionError{
		ActionType: actionType,
		Field:      fieldPath(fe.Namespace()),
		Message:    fmt.Sprintf("failed on the '%s' rule", fe.Tag()),
	}
}

// fieldPath drops the struct name from a validator namespace such as "Webhook.Parameters[0].Name".
func fieldPath(namespace string) string {
	_, path, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}

	return path
}
