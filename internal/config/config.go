package config

import "time"

// Environment class names. Production and staging enforce strict
// credential policy; development and test tolerate missing credentials.
const (
	EnvProduction  = "production"
	EnvStaging     = "staging"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

// CallbackPath is the single canonical OAuth callback path. The same path
// is used when building the authorization URL and the token exchange
// redirect_uri; the two must never diverge.
const CallbackPath = "/auth/callback"

// Config represents the main application configuration.
type Config struct {
	Server        ServerConfig                 `yaml:"server" mapstructure:"server" json:"server"`
	Environment   string                       `yaml:"environment" mapstructure:"environment" json:"environment"`
	Auth          AuthConfig                   `yaml:"auth" mapstructure:"auth" json:"auth"`
	Environments  map[string]EnvironmentConfig `yaml:"environments" mapstructure:"environments" json:"environments"`
	State         StateConfig                  `yaml:"state" mapstructure:"state" json:"state"`
	Storage       StorageConfig                `yaml:"storage" mapstructure:"storage" json:"storage"`
	Resilience    ResilienceConfig             `yaml:"resilience" mapstructure:"resilience" json:"resilience"`
	Observability ObservabilityConfig          `yaml:"observability" mapstructure:"observability" json:"observability"`
	Log           LogConfig                    `yaml:"log" mapstructure:"log" json:"log"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" mapstructure:"http_port" json:"http_port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
}

// AuthConfig represents authorization-flow configuration.
type AuthConfig struct {
	// StateSigningKey is the server-side HMAC key for state tokens.
	StateSigningKey string `yaml:"state_signing_key" mapstructure:"state_signing_key" json:"state_signing_key"`
	// StateTTL is the state token lifetime.
	StateTTL time.Duration `yaml:"state_ttl" mapstructure:"state_ttl" json:"state_ttl"`
	// ProviderTimeout bounds network calls to the identity provider.
	ProviderTimeout time.Duration `yaml:"provider_timeout" mapstructure:"provider_timeout" json:"provider_timeout"`
	// MaxRetries bounds retries of transient provider failures.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries" json:"max_retries"`
	// Scopes requested from providers. Defaults to openid email profile.
	Scopes []string `yaml:"scopes" mapstructure:"scopes" json:"scopes"`
}

// EnvironmentConfig holds per-environment provider credentials.
// Credentials configured for one environment are never consulted when
// resolving another.
type EnvironmentConfig struct {
	// BaseURL is the externally visible origin of this deployment; the
	// callback redirect URI is derived from it.
	BaseURL   string                    `yaml:"base_url" mapstructure:"base_url" json:"base_url"`
	Providers map[string]ProviderConfig `yaml:"providers" mapstructure:"providers" json:"providers"`
}

// ProviderConfig holds OAuth client credentials for one provider in one
// environment.
type ProviderConfig struct {
	ClientID     string   `yaml:"client_id" mapstructure:"client_id" json:"client_id"`
	ClientSecret string   `yaml:"client_secret" mapstructure:"client_secret" json:"client_secret"`
	IssuerURL    string   `yaml:"issuer_url" mapstructure:"issuer_url" json:"issuer_url"`
	Scopes       []string `yaml:"scopes" mapstructure:"scopes" json:"scopes"`
}

// StateConfig represents state store configuration.
type StateConfig struct {
	Store string           `yaml:"store" mapstructure:"store" json:"store"` // memory | redis
	Redis RedisStoreConfig `yaml:"redis" mapstructure:"redis" json:"redis"`
}

// RedisStoreConfig represents Redis store configuration.
type RedisStoreConfig struct {
	Addresses  []string `yaml:"addresses" mapstructure:"addresses" json:"addresses"`
	Password   string   `yaml:"password" mapstructure:"password" json:"password"`
	DB         int      `yaml:"db" mapstructure:"db" json:"db"`
	MasterName string   `yaml:"master_name" mapstructure:"master_name" json:"master_name"`
	KeyPrefix  string   `yaml:"key_prefix" mapstructure:"key_prefix" json:"key_prefix"`
}

// StorageConfig represents token/user repository configuration.
type StorageConfig struct {
	Type string `yaml:"type" mapstructure:"type" json:"type"` // memory | sqlite
	Path string `yaml:"path" mapstructure:"path" json:"path"` // sqlite database path
	// CleanupInterval is how often expired token records are deactivated.
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval" json:"cleanup_interval"`
}

// ResilienceConfig represents resilience configuration.
type ResilienceConfig struct {
	RateLimit      RateLimitConfig      `yaml:"rate_limit" mapstructure:"rate_limit" json:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" mapstructure:"circuit_breaker" json:"circuit_breaker"`
}

// RateLimitConfig represents request rate limiting configuration.
type RateLimitConfig struct {
	Enabled           bool     `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Rate              string   `yaml:"rate" mapstructure:"rate" json:"rate"` // e.g. "100-M"
	TrustForwardedFor bool     `yaml:"trust_forwarded_for" mapstructure:"trust_forwarded_for" json:"trust_forwarded_for"`
	ExcludePaths      []string `yaml:"exclude_paths" mapstructure:"exclude_paths" json:"exclude_paths"`
}

// CircuitBreakerConfig represents circuit breaker configuration for
// provider calls.
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	MaxRequests      uint32        `yaml:"max_requests" mapstructure:"max_requests" json:"max_requests"`
	Interval         time.Duration `yaml:"interval" mapstructure:"interval" json:"interval"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout" json:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold" mapstructure:"failure_threshold" json:"failure_threshold"`
}

// ObservabilityConfig represents observability configuration.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics" json:"metrics"`
}

// MetricsConfig represents Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Path    string `yaml:"path" mapstructure:"path" json:"path"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level       string `yaml:"level" mapstructure:"level" json:"level"`             // debug, info, warn, error
	Development bool   `yaml:"development" mapstructure:"development" json:"development"` // console output
}

// IsStrictEnvironment reports whether the environment class requires
// complete credentials at startup.
func IsStrictEnvironment(env string) bool {
	return env == EnvProduction || env == EnvStaging
}
