package config

import (
	"context"
	"testing"
)

func TestSchemaRegistry_BuiltInSchemasRegistered(t *testing.T) {
	sr := NewSchemaRegistry()
	names := sr.ListSchemas()
	found := map[string]bool{}
	for _, n := range names {
		found[n] = true
	}
	if !found["manifest"] || !found["resource"] {
		t.Fatalf("expected manifest and resource schemas, got %v", names)
	}
}

func TestSchemaRegistry_ValidateResource(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	ok := ResourceManifest{TypeID: "network:vlan", Name: "guest", Properties: map[string]interface{}{"tag": 20}}
	if err := sr.ValidateResource(ctx, ok); err != nil {
		t.Fatalf("expected valid resource, got error: %v", err)
	}

	bad := ResourceManifest{TypeID: "not a type", Name: "guest"}
	if err := sr.ValidateResource(ctx, bad); err == nil {
		t.Fatal("expected invalid type id to fail schema validation")
	}
}

func TestSchemaRegistry_RegisterAndLookup(t *testing.T) {
	sr := NewSchemaRegistry()
	if err := sr.RegisterSchema("custom", `#Custom: {name: string}`); err != nil {
		t.Fatalf("register schema: %v", err)
	}
	if _, ok := sr.GetSchema("custom"); !ok {
		t.Fatal("expected custom schema to be registered")
	}
	if err := sr.RegisterSchema("broken", `this is not valid cue {{{`); err == nil {
		t.Fatal("expected invalid cue schema to fail to compile")
	}
}

func TestSchemaRegistry_ValidateAgainstSchema_UnknownName(t *testing.T) {
	sr := NewSchemaRegistry()
	if err := sr.ValidateAgainstSchema(context.Background(), "no-such-schema", struct{}{}); err == nil {
		t.Fatal("expected unknown schema name to fail")
	}
}
