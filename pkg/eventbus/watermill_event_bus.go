package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/flowcrm/pkg/events"
	"github.com/dukex/flowcrm/pkg/otelhelper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	logger        *slog.Logger
	tracer        trace.Tracer
	mu            sync.RWMutex
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		logger:        logger.With("module", "event_bus"),
		tracer:        otel.Tracer("flowcrm/eventbus"),
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

// Publish sends event to the topic of its type. key is used for partitioning.
func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.GetType(), err)
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(msg.Metadata))

	err = eb.publisher.Publish(events.Topic(event.GetType()), msg)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.GetType(), err)
	}

	return nil
}

// Subscribe starts one consumer per handled event type. Handlers must be registered first.
func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for eventType, handler := range eb.subscriptions {
		messages, err := eb.subscriber.Subscribe(ctx, events.Topic(eventType))
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", eventType, err)
		}

		go eb.consume(ctx, eventType, handler, messages)
	}

	return nil
}

func (eb *WatermillEventBus) consume(ctx context.Context, eventType events.EventType, handler EventHandler, messages <-chan *message.Message) {
	for msg := range messages {
		eb.dispatch(ctx, eventType, handler, msg)
	}
}

func (eb *WatermillEventBus) dispatch(ctx context.Context, eventType events.EventType, handler EventHandler, msg *message.Message) {
	msgCtx := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Metadata))

	msgCtx, span := otelhelper.StartSpan(msgCtx, eb.tracer, "eventbus consume",
		attribute.String(otelhelper.EventTypeKey, string(eventType)),
		attribute.String(otelhelper.EventIDKey, msg.UUID),
	)
	defer span.End()

	event, err := Decode(eventType, msg.Payload)
	if err != nil {
		// Redelivery cannot fix a malformed payload.
		eb.logger.ErrorContext(msgCtx, "dropping undecodable event", "event_type", eventType, "message_id", msg.UUID, "error", err)
		otelhelper.SetError(span, err)
		msg.Ack()

		return
	}

	err = handler(msgCtx, event)
	if err != nil {
		eb.logger.ErrorContext(msgCtx, "event handler failed", "event_type", eventType, "message_id", msg.UUID, "error", err)
		otelhelper.SetError(span, err)
		msg.Nack()

		return
	}

	msg.Ack()
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}

// Decode turns a payload received on the topic of eventType into its typed event.
// Record changes are checked against the envelope schema first.
func Decode(eventType events.EventType, payload []byte) (any, error) {
	var event any

	switch eventType {
	case events.LeadChangedEvent, events.ContactChangedEvent, events.DealChangedEvent:
		err := events.ValidateEntityEvent(payload)
		if err != nil {
			return nil, err
		}

		event = &events.EntityEvent{}
	case events.LeadPatchEvent, events.ContactPatchEvent, events.DealPatchEvent:
		event = &events.PatchCommand{}
	case events.TaskCreateRequestedEvent:
		event = &events.TaskCreateRequested{}
	case events.EmailActionRequestedEvent:
		event = &events.EmailActionRequested{}
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", events.ErrInvalidEvent, eventType)
	}

	err := json.Unmarshal(payload, event)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", events.ErrInvalidEvent, err)
	}

	return event, nil
}
