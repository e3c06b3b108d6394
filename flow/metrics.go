package flow

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics provides Prometheus-compatible metrics collection
// for workflow execution monitoring in production environments.
//
// Metrics exposed (all namespaced with "podshorts_"):
//
// 1. inflight_runs (gauge): Dispatch cycles currently executing.
// Use: Monitor concurrency levels and detect stuck runs.
//
// 2. stage_latency_ms (histogram): Stage execution duration in milliseconds.
// Labels: node_id, status (success/error).
// Buckets: [10, 50, 100, 500, 1000, 5000, 30000, 120000, 600000].
// Use: P50/P95/P99 latency analysis per stage. Generation stages run
// seconds to minutes, hence the wide upper buckets.
//
// 3. stage_retries_total (counter): Quality-gate retry attempts.
// Labels: node_id.
// Use: Identify stages that repeatedly fail assessment.
//
// 4. suspensions_total (counter): Runs suspended at a human gate.
// Labels: gate.
//
// 5. resumes_total (counter): Decisions applied to suspended runs.
// Labels: gate.
// Use: suspensions minus resumes approximates the review backlog per gate.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := flow.NewPrometheusMetrics(registry)
//	eng := flow.New(reducer, st, emitter, opts).WithMetrics(metrics)
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// Thread-safe: all methods delegate to prometheus client primitives.
type PrometheusMetrics struct {
	inflightRuns prometheus.Gauge
	stageLatency *prometheus.HistogramVec
	retries      *prometheus.CounterVec
	suspensions  *prometheus.CounterVec
	resumes      *prometheus.CounterVec

	registry prometheus.Registerer

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics creates and registers all workflow execution
// metrics with the provided Prometheus registry.
//
// Pass prometheus.DefaultRegisterer for the global registry, or a
// dedicated prometheus.NewRegistry() for isolation (recommended).
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	pm := &PrometheusMetrics{
		registry: registry,
		enabled:  true,
	}

	pm.inflightRuns = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "podshorts",
		Name:      "inflight_runs",
		Help:      "Dispatch cycles currently executing",
	})

	pm.stageLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "podshorts",
		Name:      "stage_latency_ms",
		Help:      "Stage execution duration in milliseconds",
		Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 30000, 120000, 600000},
	}, []string{"node_id", "status"})

	pm.retries = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "podshorts",
		Name:      "stage_retries_total",
		Help:      "Quality-gate retry attempts per stage",
	}, []string{"node_id"})

	pm.suspensions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "podshorts",
		Name:      "suspensions_total",
		Help:      "Runs suspended at a human gate",
	}, []string{"gate"})

	pm.resumes = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "podshorts",
		Name:      "resumes_total",
		Help:      "Decisions applied to suspended runs",
	}, []string{"gate"})

	return pm
}

// RunStarted increments the inflight runs gauge.
func (pm *PrometheusMetrics) RunStarted() {
	if !pm.isEnabled() {
		return
	}
	pm.inflightRuns.Inc()
}

// RunFinished decrements the inflight runs gauge.
func (pm *PrometheusMetrics) RunFinished() {
	if !pm.isEnabled() {
		return
	}
	pm.inflightRuns.Dec()
}

// RecordStageLatency records the execution duration of a stage.
//
// Parameters:
//   - nodeID: Stage that was executed.
//   - latency: Execution duration.
//   - status: Execution outcome ("success", "error").
func (pm *PrometheusMetrics) RecordStageLatency(nodeID string, latency time.Duration, status string) {
	if !pm.isEnabled() {
		return
	}
	pm.stageLatency.WithLabelValues(nodeID, status).Observe(float64(latency.Milliseconds()))
}

// IncrementRetries increments the retry counter for a stage.
//
// Stage nodes call this when the quality router sends work back to them
// for another attempt.
func (pm *PrometheusMetrics) IncrementRetries(nodeID string) {
	if !pm.isEnabled() {
		return
	}
	pm.retries.WithLabelValues(nodeID).Inc()
}

// IncrementSuspensions increments the suspension counter for a gate.
func (pm *PrometheusMetrics) IncrementSuspensions(gate string) {
	if !pm.isEnabled() {
		return
	}
	pm.suspensions.WithLabelValues(gate).Inc()
}

// IncrementResumes increments the resume counter for a gate.
func (pm *PrometheusMetrics) IncrementResumes(gate string) {
	if !pm.isEnabled() {
		return
	}
	pm.resumes.WithLabelValues(gate).Inc()
}

// Disable temporarily disables metric recording (useful for testing).
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable().
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}

func (pm *PrometheusMetrics) isEnabled() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}
