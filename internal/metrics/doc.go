// Package metrics defines the Prometheus instrumentation shared across the
// service. All metrics are registered with the default registry via promauto
// and prefixed with "holoexport_"; expose them by mounting promhttp.Handler()
// on /metrics.
package metrics
