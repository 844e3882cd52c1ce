package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dzerik/oauth-service/internal/schema"
)

// cliOptions holds parsed CLI options.
type cliOptions struct {
	configPath   string
	devMode      bool
	showVersion  bool
	genSchema    bool
	schemaOutput string
}

// parseFlags parses CLI flags and returns options.
func parseFlags() *cliOptions {
	opts := &cliOptions{}

	flag.StringVar(&opts.configPath, "config", getEnv("OAUTH_SERVICE_CONFIG", "/etc/oauth-service/config.yaml"), "Path to configuration file")
	flag.BoolVar(&opts.devMode, "dev", false, "Enable development mode")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	flag.BoolVar(&opts.genSchema, "schema", false, "Generate config JSON schema and exit")
	flag.StringVar(&opts.schemaOutput, "schema-output", "", "Output file for schema (default: stdout)")
	flag.Parse()

	return opts
}

// handleInfoCommands handles --version and --schema flags.
// Returns true if a command was handled and the program should exit.
func handleInfoCommands(opts *cliOptions) bool {
	if opts.showVersion {
		fmt.Printf("oauth-service %s (built %s)\n", Version, BuildTime)
		return true
	}

	if opts.genSchema {
		handleSchemaGeneration(opts.schemaOutput)
		return true
	}

	return false
}

// handleSchemaGeneration generates the config JSON schema and exits.
func handleSchemaGeneration(outputPath string) {
	gen := schema.NewGenerator()
	data, err := gen.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate schema: %v\n", err)
		os.Exit(1)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Schema written to %s\n", outputPath)
	} else {
		fmt.Println(string(data))
	}
}

// getEnv returns an environment variable value or a default.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
