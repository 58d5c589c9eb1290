package config

import (
	"strings"
	"time"

	"github.com/thumbplan/fingerd/internal/protocol/finger"
	adapter "github.com/thumbplan/fingerd/pkg/adapter/finger"
	"github.com/thumbplan/fingerd/pkg/planstore/cache"
)

// DefaultPlanRoot is where the server looks for plan files when no
// path is configured.
const DefaultPlanRoot = "/var/lib/fingerd/plans"

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and
// environment variables to fill in any missing values.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store factories
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyStoreDefaults(&cfg.Store)
	applyCacheDefaults(&cfg.Cache)
	applyRateLimitDefaults(&cfg.RateLimit)
	applyAdaptersDefaults(&cfg.Adapters)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

// applyStoreDefaults sets plan store defaults.
func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = DefaultPlanRoot
	}
}

// applyCacheDefaults sets content cache defaults.
//
// An entirely zero Cache section means "unconfigured", which enables
// the cache with production defaults. An explicit enabled: false with
// any other field set is preserved.
func applyCacheDefaults(cfg *cache.Config) {
	if !cfg.Enabled && cfg.TTL == 0 && cfg.MaxEntries == 0 {
		cfg.Enabled = true
	}
	if cfg.TTL == 0 {
		cfg.TTL = cache.DefaultConfig().TTL
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = cache.DefaultConfig().MaxEntries
	}
}

// applyRateLimitDefaults sets rate limiting defaults.
func applyRateLimitDefaults(cfg *RateLimitConfig) {
	// An entirely zero per-client section means "unconfigured", which
	// selects the production quota. Explicit requests: 0 with a window
	// set disables per-client limiting.
	if cfg.PerClient.Requests == 0 && cfg.PerClient.Window == 0 {
		cfg.PerClient.Requests = 20
	}
	if cfg.PerClient.Window == 0 {
		cfg.PerClient.Window = time.Minute
	}

	// Global limit defaults to unlimited (zero values)

	if cfg.Global.RequestsPerSecond > 0 && cfg.Global.Burst == 0 {
		cfg.Global.Burst = cfg.Global.RequestsPerSecond
	}
}

// applyAdaptersDefaults sets adapter defaults.
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	// Enable the finger adapter by default if no adapters are configured.
	// This ensures a freshly loaded config (with no config file) has at
	// least one adapter enabled and passes validation. Users can set
	// enabled: false explicitly to disable it.
	if !cfg.Finger.Enabled && cfg.Finger.Port == 0 {
		cfg.Finger.Enabled = true
	}

	applyFingerDefaults(&cfg.Finger)
}

// applyFingerDefaults sets finger adapter defaults.
func applyFingerDefaults(cfg *adapter.Config) {
	if cfg.Port == 0 {
		cfg.Port = finger.DefaultPort
	}

	// MaxConnections defaults to 0 (unlimited)

	if cfg.MaxLineLength == 0 {
		cfg.MaxLineLength = 256
	}

	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}

	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Store: StoreConfig{
			Filesystem: make(map[string]any),
		},
		Adapters: AdaptersConfig{
			Finger: adapter.Config{
				Enabled: true,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
