package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/thumbplan/fingerd/pkg/adapter/finger"
	"github.com/thumbplan/fingerd/pkg/planstore/cache"
)

// Config represents the complete fingerd configuration.
//
// This structure captures all configurable aspects of the server:
//   - Logging configuration
//   - Server-wide settings (shutdown, metrics endpoint)
//   - Plan store selection and configuration (store-specific)
//   - Content cache tuning
//   - Rate limiting
//   - Protocol adapter configurations
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (FINGERD_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own options and factory. The
// Store section contains type-specific subsections and only the one
// matching the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Store specifies the plan store type and type-specific configuration
	Store StoreConfig `mapstructure:"store"`

	// Cache tunes the content cache in front of the plan store
	Cache cache.Config `mapstructure:"cache"`

	// RateLimit configures per-client and global admission limits
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus metrics endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig controls the metrics HTTP endpoint.
type MetricsConfig struct {
	// Enabled starts the metrics HTTP server when true
	Enabled bool `mapstructure:"enabled"`

	// Port is the metrics HTTP port (default 9090)
	Port int `mapstructure:"port" validate:"min=0,max=65535"`
}

// StoreConfig specifies plan store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type StoreConfig struct {
	// Type specifies which plan store implementation to use
	// Valid values: filesystem
	Type string `mapstructure:"type" validate:"required,oneof=filesystem"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem"`
}

// RateLimitConfig configures request admission.
type RateLimitConfig struct {
	// PerClient is the sliding-window quota applied to each client host
	PerClient ClientLimitConfig `mapstructure:"per_client"`

	// Global is a token-bucket limit on total request throughput,
	// applied before the per-client quota. 0 means unlimited.
	Global GlobalLimitConfig `mapstructure:"global"`
}

// ClientLimitConfig is the per-client sliding window quota.
type ClientLimitConfig struct {
	// Requests is the maximum admitted requests per window.
	// 0 disables per-client limiting.
	Requests int `mapstructure:"requests" validate:"min=0"`

	// Window is the sliding window duration
	Window time.Duration `mapstructure:"window" validate:"min=0"`
}

// GlobalLimitConfig is the server-wide token bucket.
type GlobalLimitConfig struct {
	// RequestsPerSecond is the sustained admission rate.
	// 0 means unlimited.
	RequestsPerSecond uint `mapstructure:"requests_per_second"`

	// Burst is the bucket depth
	Burst uint `mapstructure:"burst"`
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// Finger contains finger protocol configuration.
	// Uses the finger.Config type directly to avoid duplication.
	Finger finger.Config `mapstructure:"finger"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FINGERD_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use FINGERD_ prefix and underscores
	// Example: FINGERD_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("FINGERD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/fingerd/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is acceptable - defaults apply.
		// An explicitly specified path reports fs.ErrNotExist rather
		// than viper's not-found error, so check both.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to
// current directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "fingerd")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "fingerd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
