package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return "validation errors:\n  - " + strings.Join(msgs, "\n  - ")
}

var validEnvironments = map[string]bool{
	EnvProduction:  true,
	EnvStaging:     true,
	EnvDevelopment: true,
	EnvTest:        true,
}

// Validate validates the configuration. Strict-environment credential
// policy is enforced here so that misconfiguration is fatal at startup,
// not at first use.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	if !validEnvironments[cfg.Environment] {
		errs = append(errs, ValidationError{
			Field:   "environment",
			Message: fmt.Sprintf("must be one of production, staging, development, test; got '%s'", cfg.Environment),
		})
	}

	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.http_port",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", cfg.Server.HTTPPort),
		})
	}

	// State signing key is required everywhere; state tokens are useless
	// without one, and a weak key defeats the signature check.
	if len(cfg.Auth.StateSigningKey) < 32 {
		errs = append(errs, ValidationError{
			Field:   "auth.state_signing_key",
			Message: "required, minimum 32 bytes",
		})
	}

	if cfg.State.Store != "memory" && cfg.State.Store != "redis" {
		errs = append(errs, ValidationError{
			Field:   "state.store",
			Message: fmt.Sprintf("must be 'memory' or 'redis', got '%s'", cfg.State.Store),
		})
	}
	if cfg.State.Store == "redis" && len(cfg.State.Redis.Addresses) == 0 {
		errs = append(errs, ValidationError{
			Field:   "state.redis.addresses",
			Message: "required for Redis store",
		})
	}

	if cfg.Storage.Type != "memory" && cfg.Storage.Type != "sqlite" {
		errs = append(errs, ValidationError{
			Field:   "storage.type",
			Message: fmt.Sprintf("must be 'memory' or 'sqlite', got '%s'", cfg.Storage.Type),
		})
	}
	if cfg.Storage.Type == "sqlite" && cfg.Storage.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "storage.path",
			Message: "required for sqlite storage",
		})
	}

	errs = append(errs, validateEnvironments(cfg)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateEnvironments checks per-environment credential and redirect
// safety rules. Messages reference field names only; secret values never
// appear in validation output.
func validateEnvironments(cfg *Config) ValidationErrors {
	var errs ValidationErrors

	prodHost := environmentHost(cfg, EnvProduction)

	for env, envCfg := range cfg.Environments {
		prefix := fmt.Sprintf("environments.%s", env)

		if !validEnvironments[env] {
			errs = append(errs, ValidationError{
				Field:   prefix,
				Message: "unknown environment name",
			})
			continue
		}

		strict := IsStrictEnvironment(env)

		if envCfg.BaseURL == "" {
			if strict {
				errs = append(errs, ValidationError{Field: prefix + ".base_url", Message: "required"})
			}
			continue
		}

		u, err := url.Parse(envCfg.BaseURL)
		if err != nil || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   prefix + ".base_url",
				Message: "invalid URL",
			})
			continue
		}

		if strict && u.Scheme != "https" {
			errs = append(errs, ValidationError{
				Field:   prefix + ".base_url",
				Message: "must use https in " + env,
			})
		}
		if env == EnvProduction {
			lower := strings.ToLower(envCfg.BaseURL)
			if strings.Contains(lower, "localhost") || strings.Contains(lower, "staging") {
				errs = append(errs, ValidationError{
					Field:   prefix + ".base_url",
					Message: "production URL must not reference localhost or staging hosts",
				})
			}
		}
		if env == EnvStaging && prodHost != "" && strings.Contains(strings.ToLower(envCfg.BaseURL), prodHost) {
			errs = append(errs, ValidationError{
				Field:   prefix + ".base_url",
				Message: "staging URL must not reference the production hostname",
			})
		}

		if strict {
			for provider, pc := range envCfg.Providers {
				pp := fmt.Sprintf("%s.providers.%s", prefix, provider)
				if pc.ClientID == "" {
					errs = append(errs, ValidationError{Field: pp + ".client_id", Message: "required"})
				}
				if pc.ClientSecret == "" {
					errs = append(errs, ValidationError{Field: pp + ".client_secret", Message: "required"})
				}
				if pc.IssuerURL == "" {
					errs = append(errs, ValidationError{Field: pp + ".issuer_url", Message: "required"})
				}
			}
		}
	}

	return errs
}

// environmentHost returns the lowercase hostname configured for an
// environment, or "" when unset.
func environmentHost(cfg *Config, env string) string {
	envCfg, ok := cfg.Environments[env]
	if !ok || envCfg.BaseURL == "" {
		return ""
	}
	u, err := url.Parse(envCfg.BaseURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
