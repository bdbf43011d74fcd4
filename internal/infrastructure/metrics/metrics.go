// Package metrics exposes sequencer, transport and API metrics for
// Prometheus on a private registry.
//
// All methods are nil-safe so callers can pass a nil *Metrics when metrics
// are disabled.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/ugoku-core/internal/sequencer"
	"github.com/nerrad567/ugoku-core/internal/transport"
)

const namespace = "ugoku"

// Metrics holds the registered collectors.
type Metrics struct {
	registry            *prometheus.Registry
	taskOutcomes        *prometheus.CounterVec
	taskDuration        *prometheus.HistogramVec
	transportAttempts   *prometheus.CounterVec
	attemptDuration     *prometheus.HistogramVec
	runsTotal           *prometheus.CounterVec
	runActive           prometheus.Gauge
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates a fresh registry with every collector registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		taskOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_outcomes_total",
			Help:      "Tasks finished, by action and status",
		}, []string{"action", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Time spent executing a task's action, excluding its wait",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"action"}),
		transportAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_attempts_total",
			Help:      "Individual device calls, by kind and classified outcome",
		}, []string{"kind", "outcome"}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transport_attempt_duration_seconds",
			Help:      "Duration of individual device calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs finished, by final state",
		}, []string{"state"}),
		runActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_active",
			Help:      "1 while a run is in progress",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests served by the control API",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests served by the control API",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	registry.MustRegister(
		m.taskOutcomes,
		m.taskDuration,
		m.transportAttempts,
		m.attemptDuration,
		m.runsTotal,
		m.runActive,
		m.httpRequests,
		m.httpRequestDuration,
	)
	return m
}

// ObserveAttempt implements retry.AttemptObserver.
func (m *Metrics) ObserveAttempt(kind string, outcome transport.Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.transportAttempts.WithLabelValues(kind, outcome.String()).Inc()
	m.attemptDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RunStarted implements sequencer.Observer.
func (m *Metrics) RunStarted(sequencer.Execution) {
	if m == nil {
		return
	}
	m.runActive.Set(1)
}

// TaskFinished implements sequencer.Observer.
func (m *Metrics) TaskFinished(o sequencer.Outcome) {
	if m == nil {
		return
	}
	m.taskOutcomes.WithLabelValues(o.Action, string(o.Status)).Inc()
	if o.Status != sequencer.StatusValidated {
		m.taskDuration.WithLabelValues(o.Action).Observe(o.Duration().Seconds())
	}
}

// RunFinished implements sequencer.Observer.
func (m *Metrics) RunFinished(exec sequencer.Execution) {
	if m == nil {
		return
	}
	m.runActive.Set(0)
	m.runsTotal.WithLabelValues(string(exec.State)).Inc()
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
