package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/thumbplan/fingerd/internal/ratelimiter"
	"github.com/thumbplan/fingerd/pkg/planstore"
	"github.com/thumbplan/fingerd/pkg/planstore/cache"
)

// CreatePlanStore creates a plan store based on configuration.
//
// This factory uses the Type field to determine which store
// implementation to create, then decodes the type-specific options
// from the corresponding map and passes them to the store's
// constructor.
//
// Supported types:
//   - "filesystem": serves plans from a directory tree on local disk
//
// Returns:
//   - *planstore.Store: Initialized plan store
//   - error: Configuration or initialization error
func CreatePlanStore(cfg *StoreConfig) (*planstore.Store, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemPlanStore(cfg.Filesystem)
	default:
		return nil, fmt.Errorf("unknown plan store type: %q", cfg.Type)
	}
}

// createFilesystemPlanStore creates a filesystem-backed plan store.
func createFilesystemPlanStore(options map[string]any) (*planstore.Store, error) {
	type FilesystemStoreConfig struct {
		Path string `mapstructure:"path"`
	}

	var storeCfg FilesystemStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem store config: %w", err)
	}

	if storeCfg.Path == "" {
		return nil, fmt.Errorf("filesystem plan store: path is required")
	}

	store, err := planstore.New(storeCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem plan store: %w", err)
	}

	return store, nil
}

// CreateContentCache creates the content cache from configuration.
// A nil metrics collector selects a no-op implementation.
func CreateContentCache(cfg cache.Config, metrics cache.Metrics) *cache.ContentCache {
	return cache.New(cfg, metrics)
}

// CreateClientLimiter creates the per-client sliding window limiter.
func CreateClientLimiter(cfg *RateLimitConfig) *ratelimiter.ClientLimiter {
	return ratelimiter.NewClientLimiter(cfg.PerClient.Requests, cfg.PerClient.Window)
}

// CreateGlobalLimiter creates the server-wide token bucket limiter.
func CreateGlobalLimiter(cfg *RateLimitConfig) *ratelimiter.RateLimiter {
	return ratelimiter.New(cfg.Global.RequestsPerSecond, cfg.Global.Burst)
}
