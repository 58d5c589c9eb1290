package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultConfig(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Write minimal config
	configContent := `
logging:
  level: "INFO"

store:
  type: "filesystem"

adapters:
  finger:
    enabled: true
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify defaults were applied
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Adapters.Finger.Port != 79 {
		t.Errorf("Expected default finger port 79, got %d", cfg.Adapters.Finger.Port)
	}
	if !cfg.Cache.Enabled {
		t.Error("Expected cache enabled by default")
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Expected default cache TTL 5m, got %v", cfg.Cache.TTL)
	}
	if cfg.RateLimit.PerClient.Requests != 20 {
		t.Errorf("Expected default per-client quota 20, got %d", cfg.RateLimit.PerClient.Requests)
	}
	if cfg.RateLimit.PerClient.Window != time.Minute {
		t.Errorf("Expected default per-client window 1m, got %v", cfg.RateLimit.PerClient.Window)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Use a temporary directory with a non-existent config file path
	// This ensures we don't load the user's config from ~/.config/fingerd/
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	// Verify defaults
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Store.Type != "filesystem" {
		t.Errorf("Expected default store type 'filesystem', got %q", cfg.Store.Type)
	}
	if !cfg.Adapters.Finger.Enabled {
		t.Error("Expected finger adapter enabled by default")
	}
	if cfg.Store.Filesystem["path"] != DefaultPlanRoot {
		t.Errorf("Expected default plan root %q, got %v", DefaultPlanRoot, cfg.Store.Filesystem["path"])
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "VERBOSE"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Expected validation error for bad log level, got nil")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("FINGERD_LOGGING_LEVEL", "debug")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected env override level 'DEBUG', got %q", cfg.Logging.Level)
	}
}

func TestValidate_NoAdapterEnabled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.Finger.Enabled = false

	if err := Validate(cfg); err == nil {
		t.Error("Expected error when no adapter is enabled, got nil")
	}
}

func TestValidate_WindowRequiredWithQuota(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.RateLimit.PerClient.Requests = 10
	cfg.RateLimit.PerClient.Window = 0

	if err := Validate(cfg); err == nil {
		t.Error("Expected error for quota without window, got nil")
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Fatalf("Default config failed validation: %v", err)
	}
	if cfg.Adapters.Finger.Port != 79 {
		t.Errorf("Expected finger port 79, got %d", cfg.Adapters.Finger.Port)
	}
	if cfg.Cache.MaxEntries != 1024 {
		t.Errorf("Expected cache max_entries 1024, got %d", cfg.Cache.MaxEntries)
	}
}
