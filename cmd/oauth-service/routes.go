package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/dzerik/oauth-service/internal/config"
	"github.com/dzerik/oauth-service/internal/handler"
	"github.com/dzerik/oauth-service/internal/schema"
	"github.com/dzerik/oauth-service/internal/service/metrics"
	"github.com/dzerik/oauth-service/pkg/logger"
	"github.com/dzerik/oauth-service/pkg/resilience/ratelimit"
)

// RouterDeps contains dependencies for router setup.
type RouterDeps struct {
	Config        *config.Config
	Metrics       *metrics.Metrics
	AuthHandler   *handler.AuthHandler
	HealthHandler *handler.HealthHandler
}

// SetupRouter creates and configures the chi router with all middleware
// and routes.
func SetupRouter(deps *RouterDeps) chi.Router {
	r := chi.NewRouter()

	applyGlobalMiddleware(r, deps)

	registerAuthRoutes(r, deps)
	registerHealthRoutes(r, deps)
	registerMetricsRoutes(r, deps)
	registerAdminRoutes(r, deps)

	return r
}

// applyGlobalMiddleware applies the middleware stack to the router.
func applyGlobalMiddleware(r chi.Router, deps *RouterDeps) {
	cfg := deps.Config

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logger.RequestLogger)
	r.Use(logger.RecoveryLogger)
	r.Use(chimw.CleanPath)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(deps.Metrics.Middleware)

	if cfg.Resilience.RateLimit.Enabled {
		if limiter := createRateLimiter(cfg); limiter != nil {
			r.Use(limiter.Middleware())
			logger.Info("rate limiting enabled", zap.String("rate", cfg.Resilience.RateLimit.Rate))
		}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// createRateLimiter creates the rate limiter from config.
func createRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	limiter, err := ratelimit.NewLimiter(ratelimit.Config{
		Rate:              cfg.Resilience.RateLimit.Rate,
		TrustForwardedFor: cfg.Resilience.RateLimit.TrustForwardedFor,
		ExcludePaths:      cfg.Resilience.RateLimit.ExcludePaths,
	})
	if err != nil {
		logger.Error("failed to create rate limiter", zap.Error(err))
		return nil
	}
	return limiter
}

// registerAuthRoutes registers the authorization flow routes.
func registerAuthRoutes(r chi.Router, deps *RouterDeps) {
	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", deps.AuthHandler.HandleLogin)
		r.Get("/providers", deps.AuthHandler.HandleProviders)
		r.Post("/refresh", deps.AuthHandler.HandleRefresh)
		r.Post("/logout", deps.AuthHandler.HandleLogout)
	})
	// The callback path is a single constant shared with redirect_uri
	// construction.
	r.Get(config.CallbackPath, deps.AuthHandler.HandleCallback)
}

// registerHealthRoutes registers health check endpoints (no auth).
func registerHealthRoutes(r chi.Router, deps *RouterDeps) {
	r.Get("/health", deps.HealthHandler.HandleHealth)
	r.Get("/ready", deps.HealthHandler.HandleReady)
}

// registerMetricsRoutes registers the metrics endpoint if enabled.
func registerMetricsRoutes(r chi.Router, deps *RouterDeps) {
	if deps.Config.Observability.Metrics.Enabled {
		metricsPath := deps.Config.Observability.Metrics.Path
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		r.Handle(metricsPath, deps.Metrics.Handler())
	}
}

// registerAdminRoutes registers admin endpoints.
func registerAdminRoutes(r chi.Router, deps *RouterDeps) {
	cfg := deps.Config

	r.Route("/admin", func(r chi.Router) {
		r.Get("/schema", handleSchema)

		// Non-strict environments expose runtime knobs.
		if !config.IsStrictEnvironment(cfg.Environment) {
			r.Handle("/log/level", logger.LevelHandler())
			r.Get("/config", makeConfigHandler(cfg))
		}
	})
}

// handleSchema returns the JSON schema for the config file.
func handleSchema(w http.ResponseWriter, _ *http.Request) {
	gen := schema.NewGenerator()
	data, err := gen.Generate()
	if err != nil {
		http.Error(w, "failed to generate schema", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// makeConfigHandler creates a handler that returns a sanitized view of
// the configuration. Secrets are never included.
func makeConfigHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		env := cfg.Environments[cfg.Environment]
		providers := make([]string, 0, len(env.Providers))
		for name := range env.Providers {
			providers = append(providers, name)
		}

		sanitized := struct {
			Environment string   `json:"environment"`
			Strict      bool     `json:"strict"`
			HTTPPort    int      `json:"http_port"`
			StateStore  string   `json:"state_store"`
			Storage     string   `json:"storage"`
			Providers   []string `json:"providers"`
		}{
			Environment: cfg.Environment,
			Strict:      config.IsStrictEnvironment(cfg.Environment),
			HTTPPort:    cfg.Server.HTTPPort,
			StateStore:  cfg.State.Store,
			Storage:     cfg.Storage.Type,
			Providers:   providers,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sanitized)
	}
}
