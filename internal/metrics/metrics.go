// Package metrics provides Prometheus collectors for the decision pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nudge"

// Decision outcomes.
const (
	OutcomeFired   = "fired"
	OutcomeDenied  = "denied"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

var (
	// EventsTotal counts ingested events.
	// Labels: type
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_total",
			Help:      "Total number of events processed by event type",
		},
		[]string{"type"},
	)

	// DetectionsTotal counts friction detections.
	// Labels: type
	DetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "detections_total",
			Help:      "Total number of friction detections by friction type",
		},
		[]string{"type"},
	)

	// DecisionsTotal counts gate and policy outcomes.
	// Labels: outcome (fired, denied, skipped, error), type
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "decisions_total",
			Help:      "Total number of intervention decisions by outcome and type",
		},
		[]string{"outcome", "type"},
	)

	// FireProbability tracks the probability computed by the decision policy.
	FireProbability = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "fire_probability",
			Help:      "Distribution of computed intervention probabilities",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	// PipelineDuration tracks per-event processing time.
	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of event processing in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14),
		},
	)

	// PublishTotal counts delivery attempts.
	// Labels: publisher, result (success, error)
	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "publish_total",
			Help:      "Total number of decision publish attempts",
		},
		[]string{"publisher", "result"},
	)

	// SessionsEvicted counts sessions dropped from the memory store.
	SessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "evicted_total",
			Help:      "Total number of sessions evicted from the memory store",
		},
	)

	// RateLimited counts rejected ingest requests.
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "rate_limited_total",
			Help:      "Total number of ingest requests rejected by the rate limiter",
		},
	)
)
