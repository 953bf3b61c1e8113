// Package metrics exposes Prometheus instrumentation for the reduction
// scheduler and the marketplace sync layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReductionsTotal counts per-listing outcomes of reduction attempts.
	// result is one of: reduced, skipped, conflict, rejected, transient,
	// auth_expired, failed.
	ReductionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repricer",
		Name:      "reductions_total",
		Help:      "Price reduction attempts by outcome.",
	}, []string{"result"})

	// CycleDuration observes wall time of full reduction cycles.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "repricer",
		Name:      "reduction_cycle_duration_seconds",
		Help:      "Duration of complete reduction cycles.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// ReconcileTotal counts per-listing outcomes of marketplace
	// reconciliation. result is one of: imported, updated, closed, error.
	ReconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repricer",
		Name:      "reconcile_total",
		Help:      "Marketplace reconciliation outcomes per listing.",
	}, []string{"result"})

	// TokenRefreshTotal counts access token refreshes by outcome
	// (ok, expired, error).
	TokenRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repricer",
		Name:      "token_refresh_total",
		Help:      "OAuth access token refresh outcomes.",
	}, []string{"result"})
)
