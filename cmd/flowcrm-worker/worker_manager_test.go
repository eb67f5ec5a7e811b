package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/flowcrm/pkg/actions"
	"github.com/dukex/flowcrm/pkg/channels/gochannel"
	"github.com/dukex/flowcrm/pkg/eventbus"
	"github.com/dukex/flowcrm/pkg/events"
	"github.com/dukex/flowcrm/pkg/mocks"
	"github.com/dukex/flowcrm/pkg/models"
	"github.com/dukex/flowcrm/pkg/persistence/file"
	"github.com/dukex/flowcrm/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubProcessor struct {
	result *workflow.Result
	err    error
	calls  int
}

func (s *stubProcessor) Process(_ context.Context, _ *events.EntityEvent) (*workflow.Result, error) {
	s.calls++

	return s.result, s.err
}

func leadCreated() *events.EntityEvent {
	return &events.EntityEvent{
		New: &models.Lead{ID: 7, TenantID: 3, FirstName: "Om", LastName: "Shah"},
		Metadata: events.EventMetadata{
			TenantID:   3,
			UserID:     12,
			EntityType: models.EntityLead,
			Action:     models.TriggerCreated,
		},
	}
}

func TestNewWorkerManager(t *testing.T) {
	processor := &stubProcessor{}
	eventBus := &mocks.MockEventBus{}

	wm := NewWorkerManager("test-worker-1", processor, eventBus, slog.New(slog.DiscardHandler))

	assert.Equal(t, "test-worker-1", wm.id)
	assert.Equal(t, processor, wm.processor)
	assert.Equal(t, eventBus, wm.eventBus)
	assert.NotNil(t, wm.logger)
}

func TestWorkerManager_StartSubscribesToChangeTopics(t *testing.T) {
	eventBus := &mocks.MockEventBus{}
	eventBus.On("Handle", mock.Anything, mock.Anything).Return(nil)
	eventBus.On("Subscribe", mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wm := NewWorkerManager("test-worker", &stubProcessor{}, eventBus, slog.New(slog.DiscardHandler))
	require.NoError(t, wm.Start(ctx, ""))

	eventBus.AssertCalled(t, "Handle", events.LeadChangedEvent, mock.Anything)
	eventBus.AssertCalled(t, "Handle", events.ContactChangedEvent, mock.Anything)
	eventBus.AssertCalled(t, "Handle", events.DealChangedEvent, mock.Anything)
	eventBus.AssertNumberOfCalls(t, "Subscribe", 1)
}

func TestWorkerManager_StartFailsWhenSubscribeFails(t *testing.T) {
	eventBus := &mocks.MockEventBus{}
	eventBus.On("Handle", mock.Anything, mock.Anything).Return(nil)
	eventBus.On("Subscribe", mock.Anything).Return(errors.New("broker down"))

	wm := NewWorkerManager("test-worker", &stubProcessor{}, eventBus, slog.New(slog.DiscardHandler))

	err := wm.Start(context.Background(), "")
	assert.EqualError(t, err, "broker down")
}

func TestWorkerManager_HandleEntityChanged(t *testing.T) {
	tests := []struct {
		name      string
		event     any
		result    *workflow.Result
		err       error
		wantErr   bool
		wantCalls int
	}{
		{
			name:      "unexpected payload is acked",
			event:     "invalid-event",
			wantCalls: 0,
		},
		{
			name:      "processed event",
			event:     leadCreated(),
			result:    &workflow.Result{Matched: []int64{1}, Published: 1},
			wantCalls: 1,
		},
		{
			name:      "invalid event is acked",
			event:     leadCreated(),
			err:       fmt.Errorf("%w: new snapshot is required", workflow.ErrInvalidEvent),
			wantCalls: 1,
		},
		{
			name:      "infrastructure failure is redelivered",
			event:     leadCreated(),
			err:       errors.New("failed to select workflows: connection refused"),
			wantErr:   true,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := &stubProcessor{result: tt.result, err: tt.err}
			wm := NewWorkerManager("test-worker", processor, &mocks.MockEventBus{}, slog.New(slog.DiscardHandler))

			err := wm.handleEntityChanged(context.Background(), tt.event)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			assert.Equal(t, tt.wantCalls, processor.calls)
		})
	}
}

func TestWorkerManager_ProcessesPublishedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.DiscardHandler)

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, logger)
	t.Cleanup(func() { _ = bus.Close() })

	persistence := file.NewPersistence(t.TempDir())

	payload, err := json.Marshal(map[string]any{"name": "firstName", "value": "steve"})
	require.NoError(t, err)

	workflowItem := &models.Workflow{
		TenantID:   3,
		Name:       "Rename new leads",
		EntityType: models.EntityLead,
		Trigger:    models.WorkflowTrigger{Name: models.TriggerEvent, TriggerFrequency: models.TriggerCreated},
		Condition:  models.WorkflowCondition{Type: models.ConditionForAll},
		Actions:    []models.ActionDefinition{{Type: models.ActionEditProperty, Payload: payload}},
		Active:     true,
	}
	require.NoError(t, persistence.Save(ctx, workflowItem))

	processor := workflow.NewProcessor(persistence, bus, &actions.Env{Logger: logger}, nil, logger)
	wm := NewWorkerManager("test-worker", processor, bus, logger)
	require.NoError(t, wm.subscribe(ctx))

	event := leadCreated()
	require.NoError(t, bus.Publish(ctx, event.Key(), event))

	assert.Eventually(t, func() bool {
		stored, err := persistence.GetByID(ctx, 3, workflowItem.ID)

		return err == nil && stored.Telemetry.TriggerCount == 1
	}, 5*time.Second, 20*time.Millisecond)
}
