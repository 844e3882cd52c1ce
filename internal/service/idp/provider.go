// Package idp implements identity-provider integrations for the
// authorization-code flow. Providers are resolved once at startup into a
// registry; there is no runtime string-based dispatch beyond the initial
// registry lookup.
package idp

import (
	"context"
	"errors"

	"github.com/dzerik/oauth-service/internal/model"
)

var (
	// ErrProviderUnknown is returned for provider names with no registry
	// entry.
	ErrProviderUnknown = errors.New("unknown provider")
	// ErrProviderNotConfigured is returned when a provider exists but has
	// no usable credentials in the active environment.
	ErrProviderNotConfigured = errors.New("provider not configured")
	// ErrExchangeFailed is returned when the code-for-token exchange is
	// rejected. The message never contains the client secret.
	ErrExchangeFailed = errors.New("token exchange failed")
	// ErrUserInfoFailed is returned when the userinfo fetch fails.
	ErrUserInfoFailed = errors.New("failed to get user info")
	// ErrRefreshFailed is returned when a provider-side refresh fails.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrProviderTimeout is returned when a provider call exceeds its
	// deadline.
	ErrProviderTimeout = errors.New("provider request timed out")
)

// AuthURLOptions contains options for generating an authorization URL.
type AuthURLOptions struct {
	State     string
	Nonce     string
	LoginHint string
	Prompt    string // none, login, consent, select_account
}

// Provider defines the interface for identity providers.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// AuthURL generates the authorization URL.
	AuthURL(opts AuthURLOptions) string

	// Exchange exchanges the authorization code for tokens.
	Exchange(ctx context.Context, code string) (*model.TokenSet, error)

	// UserInfo retrieves user information using the access token.
	UserInfo(ctx context.Context, accessToken string) (*model.UserInfo, error)

	// Refresh refreshes the access token using the refresh token.
	Refresh(ctx context.Context, refreshToken string) (*model.TokenSet, error)
}

// Registry holds the providers resolved for the active environment.
type Registry struct {
	providers    map[string]Provider
	unconfigured map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers:    make(map[string]Provider),
		unconfigured: make(map[string]bool),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// RegisterUnconfigured marks a provider name as known but unusable, so
// lookups can distinguish "no such provider" from "not configured here".
func (r *Registry) RegisterUnconfigured(name string) {
	r.unconfigured[name] = true
}

// Get returns the provider for the given name. It fails with
// ErrProviderNotConfigured for known-but-unconfigured providers and
// ErrProviderUnknown otherwise.
func (r *Registry) Get(name string) (Provider, error) {
	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	if r.unconfigured[name] {
		return nil, ErrProviderNotConfigured
	}
	return nil, ErrProviderUnknown
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
