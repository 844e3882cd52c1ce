package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// writeConfigFile marshals the given document to a temp YAML file.
func writeConfigFile(t *testing.T, doc map[string]any) string {
	t.Helper()
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfigFile(t, map[string]any{
		"environment": "development",
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, 10*time.Minute, cfg.Auth.StateTTL)
	assert.Equal(t, 10*time.Second, cfg.Auth.ProviderTimeout)
	assert.Equal(t, 2, cfg.Auth.MaxRetries)
	assert.Equal(t, []string{"openid", "email", "profile"}, cfg.Auth.Scopes)
	assert.Equal(t, "memory", cfg.State.Store)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, 30*time.Minute, cfg.Storage.CleanupInterval)
	assert.True(t, cfg.Resilience.RateLimit.Enabled)
	assert.True(t, cfg.Observability.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Observability.Metrics.Path)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FullDocument(t *testing.T) {
	path := writeConfigFile(t, map[string]any{
		"environment": "staging",
		"server":      map[string]any{"http_port": 9090},
		"auth": map[string]any{
			"state_signing_key": "0123456789abcdef0123456789abcdef",
			"state_ttl":         "5m",
		},
		"environments": map[string]any{
			"staging": map[string]any{
				"base_url": "https://auth.staging.example.com",
				"providers": map[string]any{
					"google": map[string]any{
						"client_id":     "stg-client",
						"client_secret": "stg-secret",
						"issuer_url":    "https://accounts.google.com",
					},
				},
			},
		},
		"storage": map[string]any{"type": "sqlite", "path": "/var/lib/oauth-service/tokens.db"},
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, EnvStaging, cfg.Environment)
	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, 5*time.Minute, cfg.Auth.StateTTL)
	assert.Equal(t, "sqlite", cfg.Storage.Type)

	stg, ok := cfg.Environments[EnvStaging]
	require.True(t, ok)
	assert.Equal(t, "https://auth.staging.example.com", stg.BaseURL)
	assert.Equal(t, "stg-client", stg.Providers["google"].ClientID)

	assert.NoError(t, Validate(cfg))
}

func TestLoad_SecretFromEnv(t *testing.T) {
	t.Setenv("STATE_SIGNING_KEY", "env-supplied-key-0123456789abcdef")

	path := writeConfigFile(t, map[string]any{"environment": "test"})
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-supplied-key-0123456789abcdef", cfg.Auth.StateSigningKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
