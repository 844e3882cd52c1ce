// Package schema provides JSON Schema generation for the service
// configuration file.
package schema

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/dzerik/oauth-service/internal/config"
)

// Generator generates the JSON schema for config.yaml, suitable for
// editor validation and completion.
type Generator struct {
	reflector *jsonschema.Reflector
}

// NewGenerator creates a new schema generator.
func NewGenerator() *Generator {
	r := &jsonschema.Reflector{
		ExpandedStruct: false,
		// Fields are optional by default; defaults are applied at load
		// time.
		RequiredFromJSONSchemaTags: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(time.Duration(0)) {
				return &jsonschema.Schema{
					Type:        "string",
					Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
					Description: "Duration string (e.g., '30s', '5m', '1h')",
					Examples:    []interface{}{"10s", "10m", "1h"},
				}
			}
			return nil
		},
	}
	return &Generator{reflector: r}
}

// Generate produces the indented JSON schema for the configuration.
func (g *Generator) Generate() ([]byte, error) {
	schema := g.reflector.Reflect(&config.Config{})

	schema.Title = "OAuth Service Configuration"
	schema.Description = "Configuration schema for the OAuth state and token lifecycle service.\n\n" +
		"Secrets (state signing key, client secrets, Redis password) should be supplied\n" +
		"via environment variables rather than this file."
	schema.ID = "https://github.com/dzerik/oauth-service/schemas/config.schema.json"

	schema.Examples = []interface{}{
		map[string]interface{}{
			"environment": "production",
			"server": map[string]interface{}{
				"http_port": 8080,
			},
			"auth": map[string]interface{}{
				"state_ttl":        "10m",
				"provider_timeout": "10s",
			},
			"environments": map[string]interface{}{
				"production": map[string]interface{}{
					"base_url": "https://auth.example.com",
					"providers": map[string]interface{}{
						"google": map[string]interface{}{
							"client_id":  "example-client-id",
							"issuer_url": "https://accounts.google.com",
						},
					},
				},
			},
		},
	}

	return json.MarshalIndent(schema, "", "  ")
}
