// Package metrics exposes Prometheus metrics for stream processing.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/pipeline"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/resilience"
)

// Frame outcomes used as the "outcome" label.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "recognition_failure"
)

// Metrics holds all application metrics.
type Metrics struct {
	// Process-wide gauges
	ActiveStreams atomic.Int64
	WSClients     atomic.Int64
	BreakerState  atomic.Int64 // resilience.State of the recognizer breaker

	frames    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	bigWins   *prometheus.CounterVec
	balance   *prometheus.GaugeVec
	skipRate  *prometheus.GaugeVec
	published *prometheus.CounterVec
	captures  *prometheus.CounterVec
	retries   prometheus.Counter

	registry *prometheus.Registry
}

var _ pipeline.Observer = (*Metrics)(nil)

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reelwatch_frames_total",
			Help: "Frames submitted to a pipeline by outcome",
		}, []string{"stream", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reelwatch_frame_duration_seconds",
			Help:    "Time spent in ProcessFrame",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"stream"}),
		bigWins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reelwatch_big_wins_total",
			Help: "Validated extractions at or above the big win multiplier",
		}, []string{"stream"}),
		balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reelwatch_balance",
			Help: "Last validated balance",
		}, []string{"stream"}),
		skipRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reelwatch_skip_rate",
			Help: "Fraction of frames skipped as unchanged",
		}, []string{"stream"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reelwatch_events_published_total",
			Help: "Events published downstream by type and result",
		}, []string{"type", "result"}),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reelwatch_captures_total",
			Help: "Frame capture attempts by result",
		}, []string{"stream", "result"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reelwatch_recognizer_retries_total",
			Help: "Recognition calls retried after a transient failure",
		}),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(m.frames, m.latency, m.bigWins, m.balance, m.skipRate, m.published, m.captures, m.retries)

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "reelwatch_active_streams",
			Help: "Number of monitored streams",
		},
		func() float64 { return float64(m.ActiveStreams.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "reelwatch_ws_clients",
			Help: "Connected websocket clients",
		},
		func() float64 { return float64(m.WSClients.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "reelwatch_recognizer_breaker_state",
			Help: "Recognizer circuit breaker (0=closed, 1=open, 2=half-open)",
		},
		func() float64 { return float64(m.BreakerState.Load()) },
	))
}

// ObserveFrame records one ProcessFrame outcome.
func (m *Metrics) ObserveFrame(streamID string, res pipeline.Result, elapsed time.Duration) {
	m.frames.WithLabelValues(streamID, outcome(res)).Inc()
	m.latency.WithLabelValues(streamID).Observe(elapsed.Seconds())

	if res.Processed && res.Validation != nil && res.Validation.IsValid && res.Extraction.Balance != nil {
		m.balance.WithLabelValues(streamID).Set(*res.Extraction.Balance)
	}
}

// ObserveStats records the skip rate reported by a pipeline.
func (m *Metrics) ObserveStats(s pipeline.Stats) {
	m.skipRate.WithLabelValues(s.StreamID).Set(s.SkipRate)
}

// ObserveBigWin counts a big win.
func (m *Metrics) ObserveBigWin(streamID string) {
	m.bigWins.WithLabelValues(streamID).Inc()
}

// ObserveCapture counts a capture attempt.
func (m *Metrics) ObserveCapture(streamID string, err error) {
	m.captures.WithLabelValues(streamID, result(err)).Inc()
}

// ObservePublish counts a downstream publish attempt.
func (m *Metrics) ObservePublish(eventType string, err error) {
	m.published.WithLabelValues(eventType, result(err)).Inc()
}

// ObserveBreaker tracks recognizer breaker transitions.
func (m *Metrics) ObserveBreaker(_, to resilience.State) {
	m.BreakerState.Store(int64(to))
}

// ObserveRetry counts one recognizer retry. Its signature matches resilience.RetryConfig.OnRetry.
func (m *Metrics) ObserveRetry(_ int, _ time.Duration, _ error) {
	m.retries.Inc()
}

// WatchBreaker exports the request and rejection totals reported by counts.
func (m *Metrics) WatchBreaker(counts func() resilience.Counts) {
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "reelwatch_recognizer_requests_total",
			Help: "Recognition calls admitted by the circuit breaker",
		}, func() float64 { return float64(counts().Requests) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "reelwatch_recognizer_rejected_total",
			Help: "Recognition calls rejected while the circuit breaker was open",
		}, func() float64 { return float64(counts().Rejected) }),
	)
}

// RemoveStream drops the per-stream series of a stream that is no longer monitored.
func (m *Metrics) RemoveStream(streamID string) {
	labels := prometheus.Labels{"stream": streamID}
	m.frames.DeletePartialMatch(labels)
	m.captures.DeletePartialMatch(labels)
	m.latency.DeleteLabelValues(streamID)
	m.bigWins.DeleteLabelValues(streamID)
	m.balance.DeleteLabelValues(streamID)
	m.skipRate.DeleteLabelValues(streamID)
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(res pipeline.Result) string {
	switch {
	case res.ErrorKind == pipeline.KindRecognition:
		return OutcomeFailed
	case !res.Processed:
		return OutcomeSkipped
	case res.ErrorKind == pipeline.KindValidation:
		return OutcomeInvalid
	default:
		return OutcomeProcessed
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
