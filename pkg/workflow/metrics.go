package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	skipExecuted        = "executed"
	skipNotMatched      = "not_matched"
	skipEvaluationError = "evaluation_error"
)

var (
	// eventsProcessed tracks inbound record events by entity type
	eventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowcrm_events_processed_total",
			Help: "Total record events processed by entity type",
		},
		[]string{"entity_type"},
	)

	workflowsMatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowcrm_workflows_matched_total",
			Help: "Total workflows whose condition held for an event",
		},
		[]string{"entity_type"},
	)

	// workflowsSkipped tracks candidates that did not run, by reason
	workflowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowcrm_workflows_skipped_total",
			Help: "Total candidate workflows skipped by entity type and reason",
		},
		[]string{"entity_type", "reason"},
	)

	actionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowcrm_action_failures_total",
			Help: "Total actions that failed to apply by action type",
		},
		[]string{"action_type"},
	)

	telemetryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flowcrm_telemetry_failures_total",
			Help: "Total execution stamps that could not be stored",
		},
	)

	processingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowcrm_event_processing_seconds",
			Help:    "Time spent processing one record event",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity_type"},
	)
)
