package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pass and item counters, partitioned by cadence loop or metric category.

var (
	PassesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetx",
		Subsystem: "pipeline",
		Name:      "passes_total",
		Help:      "Completed cadence passes",
	}, []string{"loop"})

	PassErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetx",
		Subsystem: "pipeline",
		Name:      "pass_errors_total",
		Help:      "Passes aborted by an unexpected error",
	}, []string{"loop"})

	ItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetx",
		Subsystem: "pipeline",
		Name:      "items_processed_total",
		Help:      "Items fetched and reconciled successfully",
	}, []string{"loop"})

	ItemsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetx",
		Subsystem: "pipeline",
		Name:      "items_skipped_total",
		Help:      "Items skipped after the fallback chain was exhausted",
	}, []string{"loop"})

	ItemFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetx",
		Subsystem: "pipeline",
		Name:      "item_failures_total",
		Help:      "Items that failed reconciliation or panicked",
	}, []string{"loop"})

	PassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "assetx",
		Subsystem: "pipeline",
		Name:      "pass_duration_seconds",
		Help:      "Wall-clock duration of one full pass",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{"loop"})

	FetchFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetx",
		Subsystem: "fetcher",
		Name:      "fallbacks_total",
		Help:      "Primary-source failures that triggered the secondary",
	}, []string{"category"})

	FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetx",
		Subsystem: "fetcher",
		Name:      "failures_total",
		Help:      "Fallback chains exhausted without a valid result",
	}, []string{"category"})

	UpsertErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetx",
		Subsystem: "reconciler",
		Name:      "upsert_errors_total",
		Help:      "Metric row upserts that failed",
	}, []string{"table"})

	ProjectsDiscovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetx",
		Subsystem: "discovery",
		Name:      "projects_discovered_total",
		Help:      "New projects created by weekly discovery",
	}, []string{"source"})
)
