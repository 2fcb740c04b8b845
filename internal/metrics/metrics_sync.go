package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cargo_audit_db_sync_failed_total",
			Help: "Total number of failed advisory database sync operations",
		},
		[]string{"reason"},
	)

	SyncCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cargo_audit_db_sync_count_total",
			Help: "Total number of advisory database sync operations",
		},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cargo_audit_db_sync_duration_seconds",
			Help:    "Advisory database sync duration in seconds",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1, 1.5, 2, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)

	LockWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cargo_audit_db_lock_wait_seconds",
			Help:    "Time spent waiting for the advisory database lock",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	LastSyncStart = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cargo_audit_last_db_sync_start_timestamp",
			Help: "Unix timestamp of when the last advisory database sync started",
		},
	)

	LastSyncEnd = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cargo_audit_last_db_sync_end_timestamp",
			Help: "Unix timestamp of when the last advisory database sync ended",
		},
	)
)
