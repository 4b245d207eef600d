// Command schema regenerates the JSON schema of the consentd configuration file
package main

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/consentd/pkg/config"
)

const defaultOutput = "schema.json"

func main() {
	outputPath := defaultOutput
	if len(os.Args) > 1 {
		outputPath = os.Args[1]
	}
	if err := generate(outputPath); err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
	log.Printf("[INFO] consentd config schema written to %s", outputPath)
}

// generate reflects the config types and writes the indented schema to path
func generate(path string) error {
	schema, err := config.GenerateSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	schema.Title = "consentd configuration"
	schema.Description = "Cookie consent service settings"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o600); err != nil { //nolint:gosec // schema file is not sensitive
		return fmt.Errorf("write schema %s: %w", path, err)
	}
	return nil
}
