package bank

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const recordSchemaURL = "schema://question-record.json"

// recordSchema is the shape every raw record must have before the semantic
// validators run. Field semantics (band names, choice counts, resolvable
// correct_choice) are checked by the Validator chain, not here.
var recordSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"id":         map[string]any{"type": "string"},
		"domain":     map[string]any{"type": "string"},
		"difficulty": map[string]any{"type": "string"},
		"prompt":     map[string]any{"type": "string"},
		"choices": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"correct_choice": map[string]any{
			"oneOf": []any{
				map[string]any{"type": "integer"},
				map[string]any{"type": "string"},
			},
		},
		"explanation": map[string]any{"type": "string"},
		"tags": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required": []any{"id", "domain", "difficulty", "prompt", "choices", "correct_choice"},
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

// getCompiledSchema compiles recordSchema on first use.
func getCompiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		// The jsonschema library expects a parsed JSON value, so round-trip
		// the Go literal through encoding/json.
		defBytes, err := json.Marshal(recordSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema definition: %w", err)
			return
		}
		var defParsed any
		if err := json.Unmarshal(defBytes, &defParsed); err != nil {
			compileErr = fmt.Errorf("parse schema definition: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource(recordSchemaURL, defParsed); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(recordSchemaURL)
		if compileErr != nil {
			compileErr = fmt.Errorf("compile: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

// checkShape validates a raw record (as produced by encoding/json) against
// recordSchema.
func checkShape(raw any) *ValidationError {
	schema, err := getCompiledSchema()
	if err != nil {
		return &ValidationError{Validator: "schema", Message: err.Error()}
	}
	if err := schema.Validate(raw); err != nil {
		return &ValidationError{Validator: "schema", Message: err.Error()}
	}
	return nil
}
