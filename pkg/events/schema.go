package events

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

var ErrInvalidEvent = errors.New("invalid event")

const entityEventSchema = `{
	"type": "object",
	"required": ["new", "metadata"],
	"properties": {
		"new": {
			"type": "object",
			"required": ["id"],
			"properties": {"id": {"type": "integer", "minimum": 1}}
		},
		"old": {
			"type": ["object", "null"]
		},
		"metadata": {
			"type": "object",
			"required": ["tenantId", "entityType"],
			"properties": {
				"tenantId": {"type": "integer", "minimum": 1},
				"userId": {"type": "integer"},
				"entityType": {"enum": ["LEAD", "CONTACT", "DEAL"]},
				"action": {"enum": ["CREATED", "UPDATED"]},
				"sourceWorkflowId": {"type": ["integer", "null"]},
				"executedWorkflows": {
					"type": ["array", "null"],
					"items": {"type": "integer"}
				}
			}
		}
	}
}`

var loadEntityEventSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(entityEventSchema))
})

// ValidateEntityEvent checks a raw record-change envelope before it is decoded.
func ValidateEntityEvent(payload []byte) error {
	schema, err := loadEntityEventSchema()
	if err != nil {
		return fmt.Errorf("failed to load entity event schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		details = append(details, e.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidEvent, strings.Join(details, "; "))
}
