package credentials

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dzerik/oauth-service/internal/config"
)

func multiEnvConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{HTTPPort: 8080},
		Auth:   config.AuthConfig{Scopes: []string{"openid", "email", "profile"}},
		Environments: map[string]config.EnvironmentConfig{
			config.EnvProduction: {
				BaseURL: "https://auth.example.com",
				Providers: map[string]config.ProviderConfig{
					"google": {
						ClientID:     "prod-client-id-google",
						ClientSecret: "prod-secret-0123456789",
						IssuerURL:    "https://accounts.google.com",
					},
				},
			},
			config.EnvStaging: {
				BaseURL: "https://auth.stg.example.net",
				Providers: map[string]config.ProviderConfig{
					"google": {
						ClientID:     "stg-client-id-google",
						ClientSecret: "stg-secret-0123456789",
						IssuerURL:    "https://accounts.google.com",
					},
				},
			},
			config.EnvDevelopment: {
				BaseURL: "http://localhost:8080",
				Providers: map[string]config.ProviderConfig{
					"google": {
						ClientID:     "dev-client-id-google",
						ClientSecret: "dev-secret-0123456789",
						IssuerURL:    "https://accounts.google.com",
					},
				},
			},
		},
	}
}

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver(multiEnvConfig())

	creds, err := r.Resolve(config.EnvProduction, "google")
	require.NoError(t, err)
	assert.True(t, creds.Configured)
	assert.Equal(t, "prod-client-id-google", creds.ClientID)
	assert.Equal(t, "https://auth.example.com/auth/callback", creds.RedirectURI)
	assert.Equal(t, []string{"openid", "email", "profile"}, creds.Scopes)
}

func TestResolver_UnknownEnvironment(t *testing.T) {
	r := NewResolver(multiEnvConfig())

	_, err := r.Resolve("qa", "google")
	assert.ErrorIs(t, err, ErrUnknownEnvironment)
}

func TestResolver_StrictEnvironmentMissingCredentials(t *testing.T) {
	cfg := multiEnvConfig()
	prod := cfg.Environments[config.EnvProduction]
	prod.Providers["google"] = config.ProviderConfig{ClientID: "prod-client-id-google"}
	cfg.Environments[config.EnvProduction] = prod

	r := NewResolver(cfg)
	_, err := r.Resolve(config.EnvProduction, "google")
	assert.ErrorIs(t, err, ErrCredentialsMissing)

	_, err = r.Resolve(config.EnvStaging, "github")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestResolver_LenientEnvironmentMissingCredentials(t *testing.T) {
	cfg := multiEnvConfig()
	delete(cfg.Environments, config.EnvDevelopment)

	r := NewResolver(cfg)
	creds, err := r.Resolve(config.EnvDevelopment, "google")
	require.NoError(t, err)
	assert.False(t, creds.Configured)

	creds, err = r.Resolve(config.EnvTest, "github")
	require.NoError(t, err)
	assert.False(t, creds.Configured)
}

func TestResolver_EnvironmentIsolation(t *testing.T) {
	r := NewResolver(multiEnvConfig())

	envs := []string{config.EnvProduction, config.EnvStaging, config.EnvDevelopment}
	resolved := make(map[string]*ProviderCredentials)
	for _, env := range envs {
		creds, err := r.Resolve(env, "google")
		require.NoError(t, err)
		require.True(t, creds.Configured)
		resolved[env] = creds
	}

	for i, a := range envs {
		for _, b := range envs[i+1:] {
			assert.NotEqual(t, resolved[a].ClientID, resolved[b].ClientID, "%s vs %s", a, b)
			assert.NotEqual(t, resolved[a].ClientSecret, resolved[b].ClientSecret, "%s vs %s", a, b)
			assert.NotEqual(t, resolved[a].RedirectURI, resolved[b].RedirectURI, "%s vs %s", a, b)
		}
	}
}

func TestResolver_RedirectURI(t *testing.T) {
	r := NewResolver(multiEnvConfig())

	uri := r.RedirectURI(config.EnvProduction)
	assert.True(t, strings.HasPrefix(uri, "https://"))
	assert.NotContains(t, uri, "localhost")
	assert.True(t, strings.HasSuffix(uri, config.CallbackPath))

	// Memoized: repeated calls return the identical value.
	assert.Equal(t, uri, r.RedirectURI(config.EnvProduction))

	// Unconfigured environments default to a local origin.
	cfg := multiEnvConfig()
	delete(cfg.Environments, config.EnvTest)
	r = NewResolver(cfg)
	assert.Equal(t, "http://localhost:8080/auth/callback", r.RedirectURI(config.EnvTest))
}

func TestValidateCredentials(t *testing.T) {
	base := &ProviderCredentials{
		Environment:  config.EnvProduction,
		Provider:     "google",
		ClientID:     "prod-client-id-google",
		ClientSecret: "prod-secret-0123456789",
		RedirectURI:  "https://auth.example.com/auth/callback",
		Configured:   true,
	}

	t.Run("valid", func(t *testing.T) {
		ok, reason := ValidateCredentials(base)
		assert.True(t, ok)
		assert.Empty(t, reason)
	})

	tests := []struct {
		name   string
		mutate func(c *ProviderCredentials)
	}{
		{"not configured", func(c *ProviderCredentials) { c.Configured = false }},
		{"short client id", func(c *ProviderCredentials) { c.ClientID = "abc" }},
		{"whitespace in client id", func(c *ProviderCredentials) { c.ClientID = "has space-in-id" }},
		{"short secret", func(c *ProviderCredentials) { c.ClientSecret = "tiny" }},
		{"http redirect in production", func(c *ProviderCredentials) { c.RedirectURI = "http://auth.example.com/auth/callback" }},
		{"localhost redirect in production", func(c *ProviderCredentials) { c.RedirectURI = "https://localhost/auth/callback" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := *base
			tt.mutate(&creds)
			ok, reason := ValidateCredentials(&creds)
			assert.False(t, ok)
			assert.NotEmpty(t, reason)
			// The reason must never leak the secret value.
			assert.NotContains(t, reason, base.ClientSecret)
		})
	}
}
