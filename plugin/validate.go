package plugin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaValidator compiles each Tool's InputSchema once and validates
// tools/call arguments against it on every dispatch, before the
// handler runs.
type SchemaValidator struct {
	mu      sync.Mutex
	cache   map[string]*jsonschema.Schema
	resolve *jsonschema.Compiler
}

// NewSchemaValidator constructs an empty, concurrency-safe validator.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		cache:   make(map[string]*jsonschema.Schema),
		resolve: jsonschema.NewCompiler(),
	}
}

// Validate checks args against tool's InputSchema, compiling and
// caching the schema under key on first use. A zero-value Schema
// (Type == "") is treated as "accepts anything" and always passes.
func (v *SchemaValidator) Validate(key string, s Schema, args map[string]any) error {
	if s.Type == "" {
		return nil
	}

	schema, err := v.compiled(key, s)
	if err != nil {
		return fmt.Errorf("plugin: schema for %q is invalid: %w", key, err)
	}

	// jsonschema/v6 validates decoded JSON values (map[string]any,
	// []any, float64, ...); round-trip through json so args produced
	// by hand (ints, structs) normalize the same way wire-decoded
	// params would.
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("plugin: arguments for %q are not serializable: %w", key, err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("plugin: arguments for %q are not serializable: %w", key, err)
	}

	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("plugin: arguments for %q: %w", key, err)
	}
	return nil
}

func (v *SchemaValidator) compiled(key string, s Schema) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	doc := map[string]any{
		"type":                 s.Type,
		"properties":           s.Properties,
		"additionalProperties": s.AdditionalProperties,
	}
	if len(s.Required) > 0 {
		doc["required"] = s.Required
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	resource, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	url := "mem://" + key
	if err := v.resolve.AddResource(url, resource); err != nil {
		return nil, err
	}
	schema, err := v.resolve.Compile(url)
	if err != nil {
		return nil, err
	}
	v.cache[key] = schema
	return schema, nil
}
