package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from a YAML file using viper.
// It supports:
// - YAML configuration files
// - Environment variable substitution with OAUTH_SERVICE_ prefix
// - Default values for common settings
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("OAUTH_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// bindEnvVars binds specific environment variables to config keys.
// Secrets are expected to arrive via the environment, not the YAML file.
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("auth.state_signing_key", "STATE_SIGNING_KEY")
	_ = v.BindEnv("state.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("storage.path", "SQLITE_PATH")
	_ = v.BindEnv("server.http_port", "HTTP_PORT")
	_ = v.BindEnv("environment", "APP_ENV")
	_ = v.BindEnv("log.level", "LOG_LEVEL")
	_ = v.BindEnv("log.development", "DEV_MODE")
}

// setDefaults sets default values for configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Environment defaults
	v.SetDefault("environment", EnvDevelopment)

	// Auth defaults
	v.SetDefault("auth.state_ttl", "10m")
	v.SetDefault("auth.provider_timeout", "10s")
	v.SetDefault("auth.max_retries", 2)
	v.SetDefault("auth.scopes", []string{"openid", "email", "profile"})

	// State store defaults
	v.SetDefault("state.store", "memory")
	v.SetDefault("state.redis.key_prefix", "oauthsvc:state:")

	// Storage defaults
	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.cleanup_interval", "30m")

	// Resilience defaults
	v.SetDefault("resilience.rate_limit.enabled", true)
	v.SetDefault("resilience.rate_limit.rate", "60-M")
	v.SetDefault("resilience.rate_limit.exclude_paths", []string{"/health", "/ready", "/metrics"})
	v.SetDefault("resilience.circuit_breaker.enabled", true)
	v.SetDefault("resilience.circuit_breaker.max_requests", 3)
	v.SetDefault("resilience.circuit_breaker.interval", "60s")
	v.SetDefault("resilience.circuit_breaker.timeout", "30s")
	v.SetDefault("resilience.circuit_breaker.failure_threshold", 5)

	// Observability defaults
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// applyDefaults applies post-processing defaults that viper cannot express.
func applyDefaults(cfg *Config) {
	if cfg.Auth.StateTTL <= 0 {
		cfg.Auth.StateTTL = 10 * time.Minute
	}
	if cfg.Auth.ProviderTimeout <= 0 {
		cfg.Auth.ProviderTimeout = 10 * time.Second
	}
	if len(cfg.Auth.Scopes) == 0 {
		cfg.Auth.Scopes = []string{"openid", "email", "profile"}
	}
	if cfg.Storage.CleanupInterval <= 0 {
		cfg.Storage.CleanupInterval = 30 * time.Minute
	}
}
