package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exposes engine and service metrics through a
// dedicated prometheus registry.
type PrometheusMetricsRecorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	derived    *prometheus.CounterVec
	passes     *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder registers the valuegen collectors on a fresh registry.
func NewPrometheusMetricsRecorder() *PrometheusMetricsRecorder {
	reg := prometheus.NewRegistry()
	r := &PrometheusMetricsRecorder{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "valuegen",
			Name:      "operations_total",
			Help:      "Operations executed, by operation and status.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "valuegen",
			Name:      "operation_duration_seconds",
			Help:      "Operation latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"operation"}),
		derived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "valuegen",
			Name:      "derived_values_total",
			Help:      "Items valued, by inference phase.",
		}, []string{"phase"}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "valuegen",
			Name:      "passes_total",
			Help:      "Passes executed, by inference phase.",
		}, []string{"phase"}),
	}
	reg.MustRegister(r.operations, r.durations, r.derived, r.passes)
	return r
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// Derived implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Derived(_ context.Context, phase string, passes, count int) {
	if phase == "" {
		return
	}
	r.derived.WithLabelValues(phase).Add(float64(count))
	r.passes.WithLabelValues(phase).Add(float64(passes))
}

// WriteTextfile writes the registry in the node exporter textfile format.
func (r *PrometheusMetricsRecorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
