package scorer

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Line metrics
	linesScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "line_scorer_lines_total",
			Help: "Total number of lines scored, by how the score was obtained",
		},
		[]string{"source"}, // empty, cache, remote, fallback
	)

	// Retry metrics
	retryTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "line_scorer_retries_total",
			Help: "Total number of retried endpoint calls",
		},
	)

	retryAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "line_scorer_attempts",
			Help:    "Number of endpoint attempts per uncached line",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	// API metrics
	apiCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "line_scorer_api_call_duration_seconds",
			Help:    "Duration of calls to the scoring endpoint",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// Concurrency metrics
	inflightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "line_scorer_inflight_requests",
			Help: "Number of line scoring operations holding an admission slot",
		},
	)

	// Chunk metrics
	chunkDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "line_scorer_chunk_duration_seconds",
			Help:    "Duration of chunk processing",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	chunkFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "line_scorer_chunk_failures_total",
			Help: "Total number of chunk dispatches that failed",
		},
	)

	totalScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "line_scorer_total_score",
			Help: "Total score of the last completed run",
		},
	)

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "line_scorer_circuit_breaker_state",
			Help: "Current state of circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	circuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "line_scorer_circuit_breaker_trips_total",
			Help: "Total number of circuit breaker trips",
		},
		[]string{"name"},
	)
)

// MetricsRecorder provides methods to record metrics. A nil or disabled
// recorder drops everything.
type MetricsRecorder struct {
	enabled bool
}

// NewMetricsRecorder creates a new metrics recorder
func NewMetricsRecorder(enabled bool) *MetricsRecorder {
	return &MetricsRecorder{enabled: enabled}
}

func (m *MetricsRecorder) on() bool {
	return m != nil && m.enabled
}

// RecordLine records how a line's score was obtained
func (m *MetricsRecorder) RecordLine(source string) {
	if !m.on() {
		return
	}
	linesScored.WithLabelValues(source).Inc()
}

// RecordRetry records a retried call
func (m *MetricsRecorder) RecordRetry() {
	if !m.on() {
		return
	}
	retryTotal.Inc()
}

// RecordAttempts records the attempts spent on one line
func (m *MetricsRecorder) RecordAttempts(attempts int) {
	if !m.on() {
		return
	}
	retryAttempts.Observe(float64(attempts))
}

// RecordAPICall records an endpoint call duration
func (m *MetricsRecorder) RecordAPICall(status string, seconds float64) {
	if !m.on() {
		return
	}
	apiCallDuration.WithLabelValues(status).Observe(seconds)
}

// RecordInflight updates the in-flight operation count
func (m *MetricsRecorder) RecordInflight(delta float64) {
	if !m.on() {
		return
	}
	inflightRequests.Add(delta)
}

// RecordChunk records a chunk's processing duration
func (m *MetricsRecorder) RecordChunk(seconds float64) {
	if !m.on() {
		return
	}
	chunkDuration.Observe(seconds)
}

// RecordChunkFailure records a failed chunk dispatch
func (m *MetricsRecorder) RecordChunkFailure() {
	if !m.on() {
		return
	}
	chunkFailures.Inc()
}

// RecordTotal records the total score of a run
func (m *MetricsRecorder) RecordTotal(total int64) {
	if !m.on() {
		return
	}
	totalScore.Set(float64(total))
}

// RecordCircuitBreakerState records circuit breaker state
func (m *MetricsRecorder) RecordCircuitBreakerState(name string, state int) {
	if !m.on() {
		return
	}
	circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *MetricsRecorder) RecordCircuitBreakerTrip(name string) {
	if !m.on() {
		return
	}
	circuitBreakerTrips.WithLabelValues(name).Inc()
}

// GetMetricsHandler returns an HTTP handler for Prometheus metrics
func GetMetricsHandler() http.Handler {
	return promhttp.Handler()
}
