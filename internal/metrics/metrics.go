// Package metrics exposes Prometheus collectors for outbound backend calls, circuit breakers
// and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/reports-aggregator/internal/circuitbreaker"
)

const namespace = "reports_aggregator"

// Metrics holds the application collectors and the registry they are registered with
type Metrics struct {
	registry *prometheus.Registry

	backendCalls    *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	fallbacks       *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
	breakerChanges  *prometheus.CounterVec

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates the collectors on a dedicated registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		backendCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "backend",
				Name:      "calls_total",
				Help:      "Total number of protected backend calls by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		backendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "backend",
				Name:      "call_duration_seconds",
				Help:      "Duration of protected backend calls.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 11), // 5ms to ~5s
			},
			[]string{"operation"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "backend",
				Name:      "fallbacks_total",
				Help:      "Total number of fallback responses by operation.",
			},
			[]string{"operation"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Circuit breaker state by operation (0 closed, 1 half-open, 2 open).",
			},
			[]string{"operation"},
		),
		breakerChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "transitions_total",
				Help:      "Total number of circuit breaker state transitions.",
			},
			[]string{"operation", "state"},
		),

		httpInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "inflight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 11),
			},
			[]string{"method", "path"},
		),
	}

	m.registry.MustRegister(
		m.backendCalls,
		m.backendDuration,
		m.fallbacks,
		m.breakerState,
		m.breakerChanges,
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Registry returns the registry backing these collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the registered metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordCall records one protected backend call. Short-circuited calls report a zero duration
// and are left out of the histogram.
func (m *Metrics) RecordCall(operation, outcome string, duration time.Duration) {
	m.backendCalls.WithLabelValues(operation, outcome).Inc()
	if duration > 0 {
		m.backendDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// RecordFallback records a fallback response for an operation
func (m *Metrics) RecordFallback(operation string) {
	m.fallbacks.WithLabelValues(operation).Inc()
}

// CircuitStateChanged matches circuitbreaker.StateChangeFunc
func (m *Metrics) CircuitStateChanged(name string, from, to circuitbreaker.State) {
	m.breakerState.WithLabelValues(name).Set(stateValue(to))
	m.breakerChanges.WithLabelValues(name, string(to)).Inc()
}

// InitBreakers publishes the current state of every breaker in the registry
func (m *Metrics) InitBreakers(registry *circuitbreaker.Registry) {
	for name, stats := range registry.GetAllStats() {
		m.breakerState.WithLabelValues(name).Set(stateValue(stats.State))
	}
}

func stateValue(s circuitbreaker.State) float64 {
	switch s {
	case circuitbreaker.StateHalfOpen:
		return 1
	case circuitbreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// RecordHTTPRequest records one handled HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	method = strings.ToUpper(method)
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncrementInFlight increments the in-flight request gauge
func (m *Metrics) IncrementInFlight() {
	m.httpInFlight.Inc()
}

// DecrementInFlight decrements the in-flight request gauge
func (m *Metrics) DecrementInFlight() {
	m.httpInFlight.Dec()
}
