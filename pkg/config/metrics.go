package config

import (
	"github.com/thumbplan/fingerd/pkg/metrics"
	"github.com/thumbplan/fingerd/pkg/planstore/cache"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// Finger is the metrics collector for the finger adapter
	// (nil if disabled; the adapter substitutes a no-op)
	Finger metrics.FingerMetrics

	// Cache is the metrics collector for the content cache
	// (nil if disabled; the cache substitutes a no-op)
	Cache cache.Metrics
}

// InitializeMetrics creates all metrics components based on configuration.
//
// When metrics are enabled:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed collectors for all components
//
// When disabled, every field is nil and the consuming components fall
// back to their no-op implementations.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server: server,
		Finger: metrics.NewFingerMetrics(),
		Cache:  metrics.NewCacheMetrics(),
	}
}
