package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thumbplan/fingerd/internal/logger"
	adapter "github.com/thumbplan/fingerd/pkg/adapter/finger"
	"github.com/thumbplan/fingerd/pkg/config"
	"github.com/thumbplan/fingerd/pkg/server"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")

	// Overrides for the most common knobs; everything else lives in the
	// config file or FINGERD_* environment variables.
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	planRoot := flag.String("plan-root", "", "Directory tree to serve plans from (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (DEBUG, INFO, WARN, ERROR; overrides config)")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// CLI flags take precedence over file and environment
	if *port != 0 {
		cfg.Adapters.Finger.Port = *port
	}
	if *planRoot != "" {
		cfg.Store.Filesystem["path"] = *planRoot
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	// Configure logger
	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		log.Fatalf("Failed to set log output: %v", err)
	}

	fmt.Println("fingerd - plan file server")
	logger.Info("Log level set to: %s", cfg.Logging.Level)
	logger.Info("Plan root: %v", cfg.Store.Filesystem["path"])

	// Create the plan store
	store, err := config.CreatePlanStore(&cfg.Store)
	if err != nil {
		log.Fatalf("Failed to create plan store: %v", err)
	}

	// Metrics (no-op when disabled)
	metricsResult := config.InitializeMetrics(cfg)
	if metricsResult.Server != nil {
		metricsResult.Server.Start()
		logger.Info("Metrics endpoint listening on port %d", cfg.Server.Metrics.Port)
	}

	contentCache := config.CreateContentCache(cfg.Cache, metricsResult.Cache)
	clients := config.CreateClientLimiter(&cfg.RateLimit)
	global := config.CreateGlobalLimiter(&cfg.RateLimit)

	// Log server configuration
	logger.Info("Server configuration:")
	logger.Info("  Port: %d", cfg.Adapters.Finger.Port)
	if cfg.Adapters.Finger.MaxConnections > 0 {
		logger.Info("  Max connections: %d", cfg.Adapters.Finger.MaxConnections)
	} else {
		logger.Info("  Max connections: unlimited")
	}
	logger.Info("  Max line length: %d", cfg.Adapters.Finger.MaxLineLength)
	logger.Info("  Read timeout: %v", cfg.Adapters.Finger.ReadTimeout)
	logger.Info("  Write timeout: %v", cfg.Adapters.Finger.WriteTimeout)
	logger.Info("  Shutdown timeout: %v", cfg.Adapters.Finger.ShutdownTimeout)
	if cfg.RateLimit.PerClient.Requests > 0 {
		logger.Info("  Per-client limit: %d requests / %v",
			cfg.RateLimit.PerClient.Requests, cfg.RateLimit.PerClient.Window)
	} else {
		logger.Info("  Per-client limit: disabled")
	}
	if cfg.Cache.Enabled {
		logger.Info("  Cache: TTL %v, %d entries max", cfg.Cache.TTL, cfg.Cache.MaxEntries)
	} else {
		logger.Info("  Cache: disabled")
	}

	srv := server.New()
	if err := srv.AddAdapter(adapter.New(cfg.Adapters.Finger, store, contentCache, clients, global, metricsResult.Finger)); err != nil {
		log.Fatalf("Failed to register finger adapter: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start server in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running on port %d. Press Ctrl+C to stop.", cfg.Adapters.Finger.Port)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
		cancel()

		if err := <-serverDone; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Server shutdown error: %v", err)
			stopMetrics(metricsResult)
			os.Exit(1)
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Server error: %v", err)
			stopMetrics(metricsResult)
			os.Exit(1)
		}
		logger.Info("Server stopped")
	}

	stopMetrics(metricsResult)
}

func stopMetrics(result *config.MetricsResult) {
	if result.Server == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := result.Server.Stop(ctx); err != nil {
		logger.Warn("Metrics server shutdown error: %v", err)
	}
}
