// Package main is the entrypoint for the daymark server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daymark-app/daymark/internal/platform/cache"
	"github.com/daymark-app/daymark/internal/platform/config"
	"github.com/daymark-app/daymark/internal/platform/metrics"
	"github.com/daymark-app/daymark/internal/retention"
	"github.com/daymark-app/daymark/internal/server"
	"github.com/daymark-app/daymark/internal/store"

	// Register store and cache drivers
	_ "github.com/daymark-app/daymark/internal/platform/cache/loader"
	_ "github.com/daymark-app/daymark/internal/store/loader"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: prod or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	publicOrigin := flag.String("public-origin", "", "Public origin (overrides config)")
	externalBasePath := flag.String("external-base-path", "", "External base path (overrides config)")
	tlsMode := flag.String("tls-mode", "", "TLS mode: off, static, selfsigned, or acme (overrides config)")
	storeDriver := flag.String("store-driver", "", "Store driver: sqlite or memory (overrides config)")
	storeDataDir := flag.String("store-data-dir", "", "Store data directory (overrides config)")
	cacheDriver := flag.String("cache-driver", "", "Cache driver: memory (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors (uses default level)
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load config with precedence: mode preset -> TOML file -> env -> CLI flags
	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:       listenAddr,
			PublicOrigin:     publicOrigin,
			ExternalBasePath: externalBasePath,
			TLSMode:          tlsMode,
			StoreDriver:      storeDriver,
			StoreDataDir:     storeDataDir,
			CacheDriver:      cacheDriver,
			LoggingLevel:     loggingLevel,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Create logger with configured level
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("effective configuration", "config", cfg.Redacted())

	// Register Prometheus instruments
	metrics.Register()

	// Create the store driver
	// Passes driver-specific config from [store.drivers.<driver>] section
	driver, err := store.New(&store.DriverConfig{
		Driver:  cfg.Store.Driver,
		DataDir: cfg.Store.DataDir,
		Options: cfg.Store.DriverOptions(cfg.Store.Driver),
	})
	if err != nil {
		logger.Error("failed to create store", "error", err, "available", store.AvailableDrivers())
		os.Exit(1)
	}
	if err := driver.Init(context.Background()); err != nil {
		logger.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer driver.Close()
	logger.Info("store initialized", "driver", driver.Name())

	eventStore, ok := driver.(store.EventStore)
	if !ok {
		logger.Error("store driver does not support events", "driver", driver.Name())
		os.Exit(1)
	}
	notificationStore, ok := driver.(store.NotificationStore)
	if !ok {
		logger.Error("store driver does not support notifications", "driver", driver.Name())
		os.Exit(1)
	}

	// Create cache (defaults to in-memory if not configured)
	name := cfg.Cache.Driver
	if name == "" {
		name = "memory"
	}
	cacheInstance, err := cache.New(name, cfg.Cache.DriverOptions(name))
	if err != nil {
		logger.Error("failed to create cache", "error", err)
		os.Exit(1)
	}
	defer cacheInstance.Close()

	// Start the retention reporter
	reporter := retention.NewReporter(eventStore, logger, time.Now)
	if err := reporter.Start(context.Background(), cfg.Retention.ReportSchedule); err != nil {
		logger.Error("failed to start retention reporter", "error", err)
		os.Exit(1)
	}
	defer reporter.Stop()

	// Create server dependencies
	deps := &server.Deps{
		EventStore:        eventStore,
		NotificationStore: notificationStore,
		Cache:             cacheInstance,
	}

	// Create and start server
	srv, err := server.New(cfg, logger, deps)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("server started, press Ctrl+C to stop")

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
