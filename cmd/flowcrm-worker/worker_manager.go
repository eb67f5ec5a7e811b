package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/flowcrm/pkg/eventbus"
	"github.com/dukex/flowcrm/pkg/events"
	"github.com/dukex/flowcrm/pkg/workflow"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EventProcessor runs the workflows concerned by one record event.
type EventProcessor interface {
	Process(ctx context.Context, event *events.EntityEvent) (*workflow.Result, error)
}

type WorkerManager struct {
	id        string
	logger    *slog.Logger
	processor EventProcessor
	eventBus  eventbus.EventSubscriber
}

func NewWorkerManager(
	id string,
	processor EventProcessor,
	eventBus eventbus.EventSubscriber,
	logger *slog.Logger,
) *WorkerManager {
	return &WorkerManager{
		id:        id,
		logger:    logger.With("module", "flowcrm-worker", "worker_id", id),
		processor: processor,
		eventBus:  eventBus,
	}
}

// Start subscribes to the record change topics and blocks until ctx is done. Metrics are served on
// metricsAddr unless it is empty.
func (w *WorkerManager) Start(ctx context.Context, metricsAddr string) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	err := w.subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	if metricsAddr != "" {
		server := newMetricsServer(metricsAddr)

		go func() {
			w.logger.InfoContext(ctx, "Serving metrics", "addr", metricsAddr)

			err := server.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				w.logger.ErrorContext(ctx, "Metrics server stopped", "error", err)
			}
		}()

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()

			_ = server.Shutdown(shutdownCtx)
		}()
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	<-ctx.Done()
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *WorkerManager) subscribe(ctx context.Context) error {
	for _, eventType := range []events.EventType{
		events.LeadChangedEvent,
		events.ContactChangedEvent,
		events.DealChangedEvent,
	} {
		err := w.eventBus.Handle(eventType, w.handleEntityChanged)
		if err != nil {
			return err
		}
	}

	return w.eventBus.Subscribe(ctx)
}

// handleEntityChanged acks events that can never be processed and asks for redelivery when the
// infrastructure failed.
func (w *WorkerManager) handleEntityChanged(ctx context.Context, event any) error {
	entityEvent, ok := event.(*events.EntityEvent)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for entity change")

		return nil
	}

	result, err := w.processor.Process(ctx, entityEvent)
	if err != nil {
		if errors.Is(err, workflow.ErrInvalidEvent) {
			w.logger.WarnContext(ctx, "Dropping invalid entity event", "error", err)

			return nil
		}

		w.logger.ErrorContext(ctx, "Failed to process entity event", "error", err)

		return err
	}

	if len(result.Matched) > 0 {
		w.logger.InfoContext(ctx, "Processed entity event",
			"tenant_id", entityEvent.Metadata.TenantID,
			"entity_id", entityEvent.New.GetID(),
			"matched", result.Matched,
			"failed_actions", result.Failed,
			"published", result.Published,
		)
	}

	return nil
}

func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
