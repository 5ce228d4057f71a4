// package validation checks provider response envelopes against embedded JSON schemas
package validation

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

// Envelope names one of the embedded provider response schemas.
type Envelope string

const (
	TaskCreated Envelope = "task_created"
	TaskStatus  Envelope = "task_status"
)

var (
	schemas   = map[Envelope]*gojsonschema.Schema{}
	schemasMu sync.Mutex
)

// LoadSchema compiles the embedded schema for env, caching the result.
func LoadSchema(env Envelope) (*gojsonschema.Schema, error) {
	schemasMu.Lock()
	defer schemasMu.Unlock()

	if s, ok := schemas[env]; ok {
		return s, nil
	}

	data, err := schemaFiles.ReadFile("schemas/" + string(env) + ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", env, err)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	schemas[env] = schema
	return schema, nil
}

// Validate checks body against the schema for env.
func Validate(env Envelope, body []byte) error {
	schema, err := LoadSchema(env)
	if err != nil {
		return err
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("failed to validate: %w", err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
