// Package metrics provides Prometheus metrics for the reconciliation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VerdictsTotal tracks verdicts by status and method
	VerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrecon",
			Subsystem: "matcher",
			Name:      "verdicts_total",
			Help:      "Total number of line item verdicts by status and method",
		},
		[]string{"status", "method"},
	)

	// ProviderFailuresTotal tracks similarity tiers that degraded
	ProviderFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrecon",
			Subsystem: "matcher",
			Name:      "provider_failures_total",
			Help:      "Total number of similarity provider batch failures",
		},
		[]string{"provider", "reason"},
	)

	// ReconcileDuration tracks reconciliation run duration in seconds
	ReconcileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docrecon",
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Duration of reconciliation runs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	// CatalogInsertsTotal tracks committed rows by outcome
	CatalogInsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrecon",
			Subsystem: "reconcile",
			Name:      "inserts_total",
			Help:      "Total number of items submitted for insert by outcome",
		},
		[]string{"outcome"},
	)

	// RefreshSignalsTotal tracks embedding refresh notifications
	RefreshSignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrecon",
			Subsystem: "refresh",
			Name:      "signals_total",
			Help:      "Total number of refresh signals by status",
		},
		[]string{"status"},
	)

	// SnapshotCacheTotal tracks catalog snapshot cache lookups
	SnapshotCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrecon",
			Subsystem: "cache",
			Name:      "snapshot_lookups_total",
			Help:      "Total number of catalog snapshot cache lookups by result",
		},
		[]string{"result"},
	)

	// SimilarityRequestDuration tracks outbound similarity service calls
	SimilarityRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docrecon",
			Subsystem: "similarity_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound similarity service requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status_code"},
	)
)
