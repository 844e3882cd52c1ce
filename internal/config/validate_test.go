package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server:      ServerConfig{HTTPPort: 8080},
		Environment: EnvDevelopment,
		Auth: AuthConfig{
			StateSigningKey: strings.Repeat("k", 32),
		},
		State:   StateConfig{Store: "memory"},
		Storage: StorageConfig{Type: "memory"},
		Environments: map[string]EnvironmentConfig{
			EnvDevelopment: {
				BaseURL: "http://localhost:8080",
				Providers: map[string]ProviderConfig{
					"google": {ClientID: "dev-client", ClientSecret: "dev-secret", IssuerURL: "https://accounts.google.com"},
				},
			},
		},
	}
}

func containsField(err error, field string) bool {
	errs, ok := err.(ValidationErrors)
	if !ok {
		return false
	}
	for _, e := range errs {
		if strings.Contains(e.Field, field) {
			return true
		}
	}
	return false
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{Field: "test.field", Message: "test message"}
	assert.Equal(t, "test.field: test message", err.Error())
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		assert.Equal(t, "", errs.Error())
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Message: "message1"},
			{Field: "field2", Message: "message2"},
		}
		result := errs.Error()
		assert.Contains(t, result, "field1: message1")
		assert.Contains(t, result, "field2: message2")
	})
}

func TestValidate_Environment(t *testing.T) {
	tests := []struct {
		name      string
		env       string
		expectErr bool
	}{
		{"production", EnvProduction, false},
		{"staging", EnvStaging, false},
		{"development", EnvDevelopment, false},
		{"test", EnvTest, false},
		{"unknown", "qa", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Environment = tt.env
			err := Validate(cfg)
			hasErr := err != nil && containsField(err, "environment")
			assert.Equal(t, tt.expectErr, hasErr)
		})
	}
}

func TestValidate_SigningKey(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.StateSigningKey = "short"

	err := Validate(cfg)
	require.Error(t, err)
	assert.True(t, containsField(err, "auth.state_signing_key"))
	// The key value itself must not appear in the error text.
	assert.NotContains(t, err.Error(), "short,")
}

func TestValidate_ProductionCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Environment = EnvProduction
	cfg.Environments[EnvProduction] = EnvironmentConfig{
		BaseURL: "https://auth.example.com",
		Providers: map[string]ProviderConfig{
			"google": {ClientID: "prod-client", IssuerURL: "https://accounts.google.com"},
		},
	}

	err := Validate(cfg)
	require.Error(t, err)
	assert.True(t, containsField(err, "client_secret"))
}

func TestValidate_ProductionBaseURL(t *testing.T) {
	tests := []struct {
		name      string
		baseURL   string
		expectErr bool
	}{
		{"https production host", "https://auth.example.com", false},
		{"plain http", "http://auth.example.com", true},
		{"localhost", "https://localhost:8443", true},
		{"staging fragment", "https://auth.staging.example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Environments[EnvProduction] = EnvironmentConfig{
				BaseURL: tt.baseURL,
				Providers: map[string]ProviderConfig{
					"google": {ClientID: "prod-client", ClientSecret: "prod-secret", IssuerURL: "https://accounts.google.com"},
				},
			}
			err := Validate(cfg)
			hasErr := err != nil && containsField(err, "environments.production.base_url")
			assert.Equal(t, tt.expectErr, hasErr)
		})
	}
}

func TestValidate_StagingDoesNotReferenceProduction(t *testing.T) {
	cfg := validConfig()
	cfg.Environments[EnvProduction] = EnvironmentConfig{
		BaseURL: "https://auth.example.com",
		Providers: map[string]ProviderConfig{
			"google": {ClientID: "prod-client", ClientSecret: "prod-secret", IssuerURL: "https://accounts.google.com"},
		},
	}
	cfg.Environments[EnvStaging] = EnvironmentConfig{
		BaseURL: "https://auth.example.com/staging",
		Providers: map[string]ProviderConfig{
			"google": {ClientID: "stg-client", ClientSecret: "stg-secret", IssuerURL: "https://accounts.google.com"},
		},
	}

	err := Validate(cfg)
	require.Error(t, err)
	assert.True(t, containsField(err, "environments.staging.base_url"))
}

func TestValidate_DevelopmentToleratesMissingCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Environments[EnvDevelopment] = EnvironmentConfig{
		BaseURL:   "http://localhost:8080",
		Providers: map[string]ProviderConfig{"google": {}},
	}

	assert.NoError(t, Validate(cfg))
}

func TestValidate_StateStore(t *testing.T) {
	cfg := validConfig()
	cfg.State.Store = "memcached"
	err := Validate(cfg)
	require.Error(t, err)
	assert.True(t, containsField(err, "state.store"))

	cfg = validConfig()
	cfg.State.Store = "redis"
	err = Validate(cfg)
	require.Error(t, err)
	assert.True(t, containsField(err, "state.redis.addresses"))
}

func TestValidate_Storage(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Type = "postgres"
	err := Validate(cfg)
	require.Error(t, err)
	assert.True(t, containsField(err, "storage.type"))

	cfg = validConfig()
	cfg.Storage.Type = "sqlite"
	cfg.Storage.Path = ""
	err = Validate(cfg)
	require.Error(t, err)
	assert.True(t, containsField(err, "storage.path"))
}
