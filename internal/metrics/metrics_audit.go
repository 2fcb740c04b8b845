package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AdvisoriesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cargo_audit_advisories_loaded",
			Help: "Number of advisories loaded from the database",
		},
	)

	AdvisoryParseFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cargo_audit_advisory_parse_failed_total",
			Help: "Total number of advisory files that failed to parse",
		},
	)

	AuditCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cargo_audit_audit_count_total",
			Help: "Total number of audits performed",
		},
	)

	AuditDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cargo_audit_audit_duration_seconds",
			Help:    "Audit duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10},
		},
	)

	VulnerabilitiesFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cargo_audit_vulnerabilities_found_total",
			Help: "Total number of vulnerabilities found across audits",
		},
		[]string{"package"},
	)
)
