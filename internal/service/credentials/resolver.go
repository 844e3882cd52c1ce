// Package credentials resolves per-environment OAuth client credentials.
// Environments are strictly isolated: resolving credentials for one
// environment never consults another environment's configuration.
package credentials

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dzerik/oauth-service/internal/config"
)

var (
	// ErrCredentialsMissing is returned when a strict environment lacks a
	// required client id, secret, or issuer.
	ErrCredentialsMissing = errors.New("provider credentials missing")
	// ErrUnknownEnvironment is returned for environment names outside the
	// known classes.
	ErrUnknownEnvironment = errors.New("unknown environment")
	// ErrUnknownProvider is returned when the environment has no entry for
	// the requested provider.
	ErrUnknownProvider = errors.New("unknown provider")
)

// ProviderCredentials holds the resolved client configuration for one
// provider in one environment. ClientSecret is a secret: it must never be
// logged or embedded in error messages.
type ProviderCredentials struct {
	Environment  string
	Provider     string
	ClientID     string
	ClientSecret string
	IssuerURL    string
	RedirectURI  string
	Scopes       []string

	// Configured is false when a lenient environment (development, test)
	// is missing credentials. Callers must not start a flow with an
	// unconfigured credential set.
	Configured bool
}

// Resolver resolves provider credentials from configuration. Credential
// sets and redirect URIs are memoized per process; configuration is fixed
// at startup (no hot reload).
type Resolver struct {
	cfg *config.Config

	mu           sync.RWMutex
	cache        map[string]*ProviderCredentials
	redirectURIs map[string]string
}

// NewResolver creates a resolver over the loaded configuration.
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{
		cfg:          cfg,
		cache:        make(map[string]*ProviderCredentials),
		redirectURIs: make(map[string]string),
	}
}

// Resolve returns the credentials for the given environment and provider.
// In production and staging, missing credentials are an error. In
// development and test a credential set with Configured=false is returned
// instead, so local development is never blocked on provider setup.
func (r *Resolver) Resolve(environment, provider string) (*ProviderCredentials, error) {
	if !knownEnvironment(environment) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEnvironment, environment)
	}

	key := environment + "/" + provider
	r.mu.RLock()
	if creds, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return creds, nil
	}
	r.mu.RUnlock()

	creds, err := r.resolve(environment, provider)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[key] = creds
	r.mu.Unlock()
	return creds, nil
}

func (r *Resolver) resolve(environment, provider string) (*ProviderCredentials, error) {
	strict := config.IsStrictEnvironment(environment)

	envCfg, ok := r.cfg.Environments[environment]
	if !ok {
		if strict {
			return nil, fmt.Errorf("%w: environment %s has no configuration", ErrCredentialsMissing, environment)
		}
		return r.unconfigured(environment, provider), nil
	}

	pc, ok := envCfg.Providers[provider]
	if !ok {
		if strict {
			return nil, fmt.Errorf("%w: %s in %s", ErrUnknownProvider, provider, environment)
		}
		return r.unconfigured(environment, provider), nil
	}

	if pc.ClientID == "" || pc.ClientSecret == "" {
		if strict {
			return nil, fmt.Errorf("%w: %s in %s", ErrCredentialsMissing, provider, environment)
		}
		return r.unconfigured(environment, provider), nil
	}

	scopes := pc.Scopes
	if len(scopes) == 0 {
		scopes = r.cfg.Auth.Scopes
	}

	return &ProviderCredentials{
		Environment:  environment,
		Provider:     provider,
		ClientID:     pc.ClientID,
		ClientSecret: pc.ClientSecret,
		IssuerURL:    pc.IssuerURL,
		RedirectURI:  r.RedirectURI(environment),
		Scopes:       scopes,
		Configured:   true,
	}, nil
}

func (r *Resolver) unconfigured(environment, provider string) *ProviderCredentials {
	return &ProviderCredentials{
		Environment: environment,
		Provider:    provider,
		RedirectURI: r.RedirectURI(environment),
		Scopes:      r.cfg.Auth.Scopes,
		Configured:  false,
	}
}

// RedirectURI returns the deterministic callback redirect URI for an
// environment, memoized per process. A single canonical callback path is
// used everywhere: the URI sent in the authorization URL and the one sent
// in the token exchange are always identical.
func (r *Resolver) RedirectURI(environment string) string {
	r.mu.RLock()
	if uri, ok := r.redirectURIs[environment]; ok {
		r.mu.RUnlock()
		return uri
	}
	r.mu.RUnlock()

	base := ""
	if envCfg, ok := r.cfg.Environments[environment]; ok {
		base = strings.TrimSuffix(envCfg.BaseURL, "/")
	}
	if base == "" {
		// Lenient environments default to a local origin.
		base = fmt.Sprintf("http://localhost:%d", r.cfg.Server.HTTPPort)
	}
	uri := base + config.CallbackPath

	r.mu.Lock()
	r.redirectURIs[environment] = uri
	r.mu.Unlock()
	return uri
}

// ValidateCredentials runs format and environment-appropriateness checks
// on a resolved credential set. The reason string is safe to log: it never
// contains the secret value.
func ValidateCredentials(creds *ProviderCredentials) (bool, string) {
	if !creds.Configured {
		return false, "credentials not configured"
	}
	if len(creds.ClientID) < 8 {
		return false, "client id is suspiciously short"
	}
	if strings.ContainsAny(creds.ClientID, " \t\n") {
		return false, "client id contains whitespace"
	}
	if len(creds.ClientSecret) < 16 {
		return false, "client secret is shorter than 16 characters"
	}

	lower := strings.ToLower(creds.RedirectURI)
	if config.IsStrictEnvironment(creds.Environment) {
		if !strings.HasPrefix(lower, "https://") {
			return false, "redirect URI must use https in " + creds.Environment
		}
	}
	if creds.Environment == config.EnvProduction {
		if strings.Contains(lower, "localhost") || strings.Contains(lower, "staging") {
			return false, "production redirect URI references a non-production host"
		}
	}
	return true, ""
}

func knownEnvironment(env string) bool {
	switch env {
	case config.EnvProduction, config.EnvStaging, config.EnvDevelopment, config.EnvTest:
		return true
	}
	return false
}
