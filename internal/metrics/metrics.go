// Package metrics defines the Prometheus metrics of the intelapi server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// GenerationBuckets covers local inference latencies from 100ms to 120s.
var GenerationBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts HTTP requests by method, route and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelapi_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestErrorsTotal counts requests rejected before generation, by kind.
	RequestErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelapi_request_errors_total",
			Help: "Rejected requests",
		},
		[]string{"kind"},
	)

	// GenerationsTotal counts finished generations.
	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelapi_generations_total",
			Help: "Finished generations",
		},
		[]string{"model", "mode", "finish_reason"},
	)

	// GenerationDuration records generation wall time in seconds.
	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intelapi_generation_duration_seconds",
			Help:    "Generation duration",
			Buckets: GenerationBuckets,
		},
		[]string{"model", "stream"},
	)

	// StreamingConnections tracks in-flight SSE responses.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "intelapi_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// GuardrailViolationsTotal counts blocked generations by policy and stage
	// ("input" or "output").
	GuardrailViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelapi_guardrail_violations_total",
			Help: "Guardrail violations",
		},
		[]string{"policy", "stage"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestErrorsTotal,
		GenerationsTotal,
		GenerationDuration,
		StreamingConnections,
		GuardrailViolationsTotal,
	)
}
