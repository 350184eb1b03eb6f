package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Export metrics
var (
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holoexport_exports_total",
			Help: "Total number of export attempts",
		},
		[]string{"format", "outcome"},
	)

	ExportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "holoexport_export_duration_seconds",
			Help:    "Wall-clock export duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"format"},
	)

	ExportsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "holoexport_exports_in_flight",
			Help: "Number of exports currently running",
		},
	)
)

// Job metrics
var (
	JobsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holoexport_jobs_submitted_total",
			Help: "Total number of export jobs submitted",
		},
		[]string{"format"},
	)

	JobsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holoexport_jobs_completed_total",
			Help: "Total number of export jobs reaching a terminal state",
		},
		[]string{"status"},
	)

	JobQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "holoexport_job_queue_depth",
			Help: "Number of jobs waiting for or holding a worker slot",
		},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holoexport_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "holoexport_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
