// Package metrics exposes Prometheus instrumentation for the collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsAccepted counts observations written to a partition, by source.
	RowsAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collector",
		Name:      "rows_accepted_total",
		Help:      "Observations accepted and appended to a partition.",
	}, []string{"source"})

	// RowsRejected counts observations dropped before persistence, by reason
	// (duplicate, out_of_range, malformed).
	RowsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collector",
		Name:      "rows_rejected_total",
		Help:      "Observations rejected by the deduplicator/validator.",
	}, []string{"reason"})

	// FetchFailures counts failed provider fetches, by source and error kind.
	FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collector",
		Name:      "fetch_failures_total",
		Help:      "Provider fetch failures.",
	}, []string{"source", "kind"})

	// RunsTotal counts orchestrator runs, by collection mode.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collector",
		Name:      "runs_total",
		Help:      "Collection runs started.",
	}, []string{"mode"})

	// RunDuration observes end-to-end run duration in seconds.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "collector",
		Name:      "run_duration_seconds",
		Help:      "Duration of a collection run.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)
