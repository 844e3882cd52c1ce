package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/dzerik/oauth-service/internal/config"
	"github.com/dzerik/oauth-service/internal/service/metrics"
	"github.com/dzerik/oauth-service/pkg/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application entry point with proper error handling.
func run() error {
	opts := parseFlags()

	if handled := handleInfoCommands(opts); handled {
		return nil
	}

	if err := initLogger(opts.devMode); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting oauth-service",
		zap.String("version", Version),
		zap.Bool("dev_mode", opts.devMode),
	)

	cfg, err := loadAndValidateConfig(opts.configPath, opts.devMode)
	if err != nil {
		return err
	}

	return runServer(cfg)
}

// initLogger initializes the logger with appropriate settings.
func initLogger(devMode bool) error {
	logCfg := logger.DefaultConfig()
	if devMode || os.Getenv("DEV_MODE") == "true" {
		logCfg.Level = "debug"
		logCfg.Development = true
	}
	return logger.Init(logCfg)
}

// loadAndValidateConfig loads and validates configuration.
func loadAndValidateConfig(configPath string, devMode bool) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load configuration",
			zap.Error(err),
			zap.String("path", configPath),
		)
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// The -dev flag forces the development environment class.
	if devMode {
		cfg.Environment = config.EnvDevelopment
	}

	if cfg.Log.Level != "" {
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			logger.Warn("invalid log level in config", zap.String("level", cfg.Log.Level))
		}
	}

	logger.Info("configuration loaded",
		zap.String("path", configPath),
		zap.String("environment", cfg.Environment),
		zap.Bool("strict", config.IsStrictEnvironment(cfg.Environment)),
	)

	if err := config.Validate(cfg); err != nil {
		logger.Error("configuration validation failed", zap.Error(err))
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// runServer starts the HTTP server and handles graceful shutdown.
func runServer(cfg *config.Config) error {
	m := metrics.New()

	srv, healthHandler, cleanup, err := NewServer(cfg, m)
	if err != nil {
		logger.Error("failed to create server", zap.Error(err))
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer cleanup()

	go startHTTPServer(srv, cfg.Server.HTTPPort)

	time.AfterFunc(1*time.Second, func() {
		healthHandler.SetReady(true)
		logger.Info("service is ready")
	})

	waitForShutdown(srv, cfg, healthHandler)
	return nil
}
