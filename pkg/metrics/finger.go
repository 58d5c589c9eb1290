package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FingerMetrics receives events from the finger adapter. A nil value
// selects the adapter's built-in no-op implementation.
type FingerMetrics interface {
	// RecordRequest is called once per handled request. kind is the
	// request kind ("list", "file", or "none" when the request never
	// parsed or was refused before parsing); outcome classifies the
	// response ("ok", "not_found", "invalid", "rate_limited",
	// "unavailable", "malformed").
	RecordRequest(kind, outcome string, duration time.Duration)

	// RecordBytesWritten counts response bytes put on the wire.
	RecordBytesWritten(bytes int64)

	// SetActiveConnections reports the current connection count.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted / RecordConnectionClosed track
	// connection churn.
	RecordConnectionAccepted()
	RecordConnectionClosed()

	// RecordRateLimited counts per-client window rejections.
	RecordRateLimited()
}

// fingerMetrics is the Prometheus implementation of FingerMetrics.
type fingerMetrics struct {
	requests          *prometheus.CounterVec
	requestDuration   prometheus.Histogram
	bytesWritten      prometheus.Counter
	activeConnections prometheus.Gauge
	connectionsTotal  *prometheus.CounterVec
	rateLimited       prometheus.Counter
}

// NewFingerMetrics creates a Prometheus-backed FingerMetrics instance.
//
// Returns nil when metrics are disabled (InitRegistry not called),
// which makes the adapter use its no-op implementation.
func NewFingerMetrics() FingerMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &fingerMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fingerd_requests_total",
				Help: "Total finger requests by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		requestDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "fingerd_request_duration_seconds",
				Help: "Duration of finger request handling in seconds",
				Buckets: []float64{
					0.0001, // 100µs
					0.0005, // 500µs
					0.001,  // 1ms
					0.005,  // 5ms
					0.01,   // 10ms
					0.05,   // 50ms
					0.1,    // 100ms
					0.5,    // 500ms
					1,      // 1s
				},
			},
		),
		bytesWritten: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fingerd_response_bytes_total",
				Help: "Total response bytes written to clients",
			},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "fingerd_active_connections",
				Help: "Current number of active client connections",
			},
		),
		connectionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fingerd_connections_total",
				Help: "Total connections by lifecycle event",
			},
			[]string{"event"},
		),
		rateLimited: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fingerd_rate_limited_total",
				Help: "Total requests rejected by the per-client rate limiter",
			},
		),
	}
}

func (m *fingerMetrics) RecordRequest(kind, outcome string, duration time.Duration) {
	m.requests.WithLabelValues(kind, outcome).Inc()
	m.requestDuration.Observe(duration.Seconds())
}

func (m *fingerMetrics) RecordBytesWritten(bytes int64) {
	m.bytesWritten.Add(float64(bytes))
}

func (m *fingerMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *fingerMetrics) RecordConnectionAccepted() {
	m.connectionsTotal.WithLabelValues("accepted").Inc()
}

func (m *fingerMetrics) RecordConnectionClosed() {
	m.connectionsTotal.WithLabelValues("closed").Inc()
}

func (m *fingerMetrics) RecordRateLimited() {
	m.rateLimited.Inc()
}
