package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/thumbplan/fingerd/pkg/planstore/cache"
)

// cacheMetrics is the Prometheus implementation of the cache.Metrics
// interface from pkg/planstore/cache.
type cacheMetrics struct {
	lookups      *prometheus.CounterVec
	loads        *prometheus.CounterVec
	loadDuration prometheus.Histogram
	entries      prometheus.Gauge
}

// NewCacheMetrics creates a Prometheus-backed cache.Metrics instance.
//
// Returns nil when metrics are disabled, which makes the cache use its
// built-in no-op implementation.
func NewCacheMetrics() cache.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &cacheMetrics{
		lookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fingerd_cache_lookups_total",
				Help: "Total cache lookups by result",
			},
			[]string{"result"},
		),
		loads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fingerd_cache_loads_total",
				Help: "Total filesystem loads by status",
			},
			[]string{"status"},
		),
		loadDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "fingerd_cache_load_duration_seconds",
				Help: "Duration of filesystem loads in seconds",
				Buckets: []float64{
					0.0001, // 100µs
					0.0005, // 500µs
					0.001,  // 1ms
					0.005,  // 5ms
					0.01,   // 10ms
					0.05,   // 50ms
					0.1,    // 100ms
				},
			},
		),
		entries: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "fingerd_cache_entries",
				Help: "Current number of cached plan files",
			},
		),
	}
}

func (m *cacheMetrics) RecordHit() {
	m.lookups.WithLabelValues("hit").Inc()
}

func (m *cacheMetrics) RecordMiss() {
	m.lookups.WithLabelValues("miss").Inc()
}

func (m *cacheMetrics) RecordLoad(duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.loads.WithLabelValues(status).Inc()
	m.loadDuration.Observe(duration.Seconds())
}

func (m *cacheMetrics) SetEntries(count int) {
	m.entries.Set(float64(count))
}
