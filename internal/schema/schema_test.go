package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Generate(t *testing.T) {
	g := NewGenerator()

	data, err := g.Generate()
	require.NoError(t, err)

	var schema map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &schema), "output must be valid JSON")

	assert.Equal(t, "OAuth Service Configuration", schema["title"])
	assert.Contains(t, schema, "$defs")

	// Spot-check that the main config sections are reflected.
	defs := schema["$defs"].(map[string]interface{})
	for _, name := range []string{"Config", "ServerConfig", "AuthConfig", "EnvironmentConfig", "ProviderConfig"} {
		assert.Contains(t, defs, name)
	}
}

func TestGenerator_DurationFieldsAreStrings(t *testing.T) {
	g := NewGenerator()

	data, err := g.Generate()
	require.NoError(t, err)

	var schema struct {
		Defs map[string]struct {
			Properties map[string]struct {
				Type    string `json:"type"`
				Pattern string `json:"pattern"`
			} `json:"properties"`
		} `json:"$defs"`
	}
	require.NoError(t, json.Unmarshal(data, &schema))

	authCfg, ok := schema.Defs["AuthConfig"]
	require.True(t, ok)
	ttl, ok := authCfg.Properties["state_ttl"]
	require.True(t, ok)
	assert.Equal(t, "string", ttl.Type)
	assert.NotEmpty(t, ttl.Pattern)
}
