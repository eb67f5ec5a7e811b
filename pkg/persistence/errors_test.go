package persistence_test

import (
	"errors"
	"testing"

	"github.com/dukex/flowcrm/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestWorkflowError(t *testing.T) {
	t.Parallel()

	err := persistence.NewWorkflowError("StampExecution", 42, persistence.ErrWorkflowNotFound)

	assert.True(t, persistence.IsWorkflowNotFound(err))
	assert.True(t, errors.Is(err, persistence.ErrWorkflowNotFound))
	assert.Contains(t, err.Error(), "StampExecution")
	assert.Contains(t, err.Error(), "42")
	assert.False(t, persistence.IsWorkflowNotFound(errors.New("boom")))
}
