package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dzerik/oauth-service/internal/config"
	"github.com/dzerik/oauth-service/internal/handler"
	"github.com/dzerik/oauth-service/internal/service/auth"
	"github.com/dzerik/oauth-service/internal/service/credentials"
	"github.com/dzerik/oauth-service/internal/service/idp"
	"github.com/dzerik/oauth-service/internal/service/metrics"
	"github.com/dzerik/oauth-service/internal/service/state"
	"github.com/dzerik/oauth-service/internal/service/token"
	"github.com/dzerik/oauth-service/internal/store"
	"github.com/dzerik/oauth-service/pkg/logger"
	"github.com/dzerik/oauth-service/pkg/resilience/circuitbreaker"
)

// stateSweepInterval is how often expired state records are swept.
const stateSweepInterval = time.Minute

// NewServer creates the HTTP server with all dependencies wired. The
// returned cleanup function stops background workers and closes stores.
func NewServer(cfg *config.Config, m *metrics.Metrics) (*http.Server, *handler.HealthHandler, func(), error) {
	stateStore, err := createStateStore(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create state store: %w", err)
	}
	logger.Info("state store created", zap.String("type", stateStore.Name()))

	states, err := state.NewManager(stateStore, []byte(cfg.Auth.StateSigningKey), cfg.Auth.StateTTL)
	if err != nil {
		_ = stateStore.Close()
		return nil, nil, nil, err
	}

	repo, err := createRepository(cfg)
	if err != nil {
		_ = stateStore.Close()
		return nil, nil, nil, fmt.Errorf("failed to create repository: %w", err)
	}
	logger.Info("repository created", zap.String("type", cfg.Storage.Type))

	tokens := token.NewManager(repo)

	registry, err := buildRegistry(cfg)
	if err != nil {
		_ = stateStore.Close()
		_ = repo.Close()
		return nil, nil, nil, err
	}

	orch := auth.NewOrchestrator(states, tokens, repo, registry)

	authHandler := handler.NewAuthHandler(orch, registry, m)
	healthHandler := handler.NewHealthHandler(Version)

	stopCh := make(chan struct{})
	go runStateSweeper(states, m, stopCh)
	go runTokenCleanup(tokens, m, cfg.Storage.CleanupInterval, stopCh)

	cleanup := func() {
		close(stopCh)
		if err := stateStore.Close(); err != nil {
			logger.Error("failed to close state store", zap.Error(err))
		}
		if err := repo.Close(); err != nil {
			logger.Error("failed to close repository", zap.Error(err))
		}
	}

	router := SetupRouter(&RouterDeps{
		Config:        cfg,
		Metrics:       m,
		AuthHandler:   authHandler,
		HealthHandler: healthHandler,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return srv, healthHandler, cleanup, nil
}

// createStateStore creates a state store based on configuration.
func createStateStore(cfg *config.Config) (state.Store, error) {
	switch cfg.State.Store {
	case "redis":
		return state.NewRedisStore(state.Config{
			Type: "redis",
			TTL:  cfg.Auth.StateTTL,
			Redis: state.RedisConfig{
				Addresses:  cfg.State.Redis.Addresses,
				Password:   cfg.State.Redis.Password,
				DB:         cfg.State.Redis.DB,
				MasterName: cfg.State.Redis.MasterName,
				KeyPrefix:  cfg.State.Redis.KeyPrefix,
			},
		})
	case "memory", "":
		return state.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown state store type: %s", cfg.State.Store)
	}
}

// createRepository creates the user/token repository.
func createRepository(cfg *config.Config) (store.Repository, error) {
	switch cfg.Storage.Type {
	case "sqlite":
		return store.OpenSQLite(cfg.Storage.Path)
	case "memory", "":
		return store.NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}
}

// buildRegistry resolves credentials for the active environment and
// constructs one provider per configured entry, each wrapped with
// timeout, retry, and circuit breaker behavior. In lenient environments
// providers without credentials fall back to the mock provider so the
// full flow stays exercisable.
func buildRegistry(cfg *config.Config) (*idp.Registry, error) {
	resolver := credentials.NewResolver(cfg)
	registry := idp.NewRegistry()

	var breakers *circuitbreaker.Manager
	if cfg.Resilience.CircuitBreaker.Enabled {
		breakers = circuitbreaker.NewManager(circuitbreaker.Settings{
			MaxRequests:      cfg.Resilience.CircuitBreaker.MaxRequests,
			Interval:         cfg.Resilience.CircuitBreaker.Interval,
			Timeout:          cfg.Resilience.CircuitBreaker.Timeout,
			FailureThreshold: cfg.Resilience.CircuitBreaker.FailureThreshold,
		})
	}

	env, ok := cfg.Environments[cfg.Environment]
	if !ok {
		return nil, fmt.Errorf("no environment block for %q", cfg.Environment)
	}

	for name := range env.Providers {
		creds, err := resolver.Resolve(cfg.Environment, name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve credentials for %s: %w", name, err)
		}

		var inner idp.Provider
		if creds.Configured {
			oidcProvider, err := idp.NewOIDCProvider(creds)
			if err != nil {
				if config.IsStrictEnvironment(cfg.Environment) {
					return nil, err
				}
				logger.Warn("provider unavailable, registering as unconfigured",
					zap.String("provider", name),
					zap.Error(err),
				)
				registry.RegisterUnconfigured(name)
				continue
			}
			inner = oidcProvider
		} else {
			logger.Info("provider has no credentials here, using mock",
				zap.String("provider", name),
				zap.String("environment", cfg.Environment),
			)
			inner = idp.NewMockProvider(name)
		}

		if breakers != nil {
			registry.Register(idp.NewResilientProvider(inner, cfg.Auth.ProviderTimeout, cfg.Auth.MaxRetries, breakers.Get(name)))
		} else {
			registry.Register(idp.NewResilientProvider(inner, cfg.Auth.ProviderTimeout, cfg.Auth.MaxRetries, nil))
		}
	}

	logger.Info("provider registry built", zap.Strings("providers", registry.Names()))
	return registry, nil
}

// runStateSweeper periodically removes expired state records.
func runStateSweeper(states *state.Manager, m *metrics.Metrics, stop <-chan struct{}) {
	ticker := time.NewTicker(stateSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if n := states.SweepExpired(); n > 0 {
				m.RecordStateSwept(n)
				logger.Debug("expired states swept", zap.Int("count", n))
			}
		}
	}
}

// runTokenCleanup periodically deactivates expired token records.
func runTokenCleanup(tokens *token.Manager, m *metrics.Metrics, interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := tokens.CleanupExpired(ctx)
			cancel()
			if err != nil {
				logger.Error("token cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				m.RecordTokensExpired(n)
			}
		}
	}
}

// startHTTPServer starts the HTTP server and handles errors.
func startHTTPServer(srv *http.Server, port int) {
	logger.Info("starting HTTP server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

// waitForShutdown waits for a shutdown signal and drains the server.
func waitForShutdown(srv *http.Server, cfg *config.Config, healthHandler *handler.HealthHandler) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	healthHandler.SetReady(false)

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
}
