package config

import (
	"context"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validating the manifest-level
// document shape. Per-kind property schemas live with their resource kind
// (pkg/resources/...) and are enforced separately by the resource registry.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with the built-in
// manifest schema registered.
func NewSchemaRegistry() *SchemaRegistry {
	ctx := cuecontext.New()
	sr := &SchemaRegistry{
		ctx:     ctx,
		schemas: make(map[string]cue.Value),
	}
	sr.registerBuiltInSchemas()
	return sr
}

func (sr *SchemaRegistry) registerBuiltInSchemas() {
	sr.RegisterSchema("manifest", builtinManifestSchema)
	sr.RegisterSchema("resource", builtinResourceSchema)
}

// RegisterSchema registers a CUE schema with the given name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ListSchemas returns all registered schema names.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	return names
}

const builtinManifestSchema = `
// Manifest schema for an opnforge desired-state document.
#Manifest: {
	deployment: string & =~"^[a-zA-Z0-9_-]+$"
	resources: [string]: #Resource
}
`

const builtinResourceSchema = `
// Resource schema for a single desired-state object within a manifest.
#Resource: {
	type: string & =~"^[a-z]+:[a-z]+$"
	name: string & =~"^[a-zA-Z0-9_.-]+$"
	properties: {...}
}
`

// ValidateResource validates a resource manifest against the #Resource
// definition of the resource schema.
func (sr *SchemaRegistry) ValidateResource(ctx context.Context, resource ResourceManifest) error {
	schema, ok := sr.GetSchema("resource")
	if !ok {
		return fmt.Errorf("schema resource not found")
	}
	def := schema.LookupPath(cue.ParsePath("#Resource"))

	dataVal := sr.ctx.Encode(resource)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}
	if err := def.Unify(dataVal).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
