// Package metrics exposes prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsTotal counts handled webhook events by kind and outcome
	// (created, updated, skipped, failed).
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meetdraft",
		Name:      "events_total",
		Help:      "Webhook events handled, by kind and outcome.",
	}, []string{"kind", "outcome"})

	// DraftsTotal counts finished draft generations by terminal status.
	DraftsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meetdraft",
		Name:      "drafts_total",
		Help:      "Draft generations finished, by terminal status.",
	}, []string{"status"})

	// StageDuration observes per-run pipeline stage durations.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "meetdraft",
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"stage"})

	// GenerationTokens observes token usage per completed generation call.
	GenerationTokens = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "meetdraft",
		Name:      "generation_tokens",
		Help:      "Token usage per generation call.",
		Buckets:   prometheus.ExponentialBuckets(64, 2, 10),
	}, []string{"direction"})
)
