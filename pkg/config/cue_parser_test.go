package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.cue")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestCUEParser_ParseFile(t *testing.T) {
	content := `
deployment: "branch-office-1"
resources: {
	uplink_vlan: {
		type: "network:vlan"
		name: "uplink"
		properties: {
			parent: "em0"
			tag:    10
		}
	}
}
`
	path := writeManifest(t, content)
	parser := NewCUEParser()
	manifest, err := parser.Parse(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(manifest.Errors) > 0 {
		t.Fatalf("unexpected errors: %+v", manifest.Errors)
	}
	if manifest.Deployment != "branch-office-1" {
		t.Errorf("expected deployment branch-office-1, got %s", manifest.Deployment)
	}
	if len(manifest.Resources) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(manifest.Resources))
	}
	res := manifest.Resources[0]
	if res.TypeID != "network:vlan" || res.Name != "uplink" {
		t.Errorf("unexpected resource: %+v", res)
	}
	tag, ok := res.Properties["tag"]
	if !ok {
		t.Fatalf("expected tag property, got %+v", res.Properties)
	}
	if fmt.Sprintf("%v", tag) != "10" {
		t.Errorf("expected tag property 10, got %v", tag)
	}
}

func TestCUEParser_ParseFile_MissingDeployment(t *testing.T) {
	content := `
resources: {
	uplink_vlan: {
		type: "network:vlan"
		name: "uplink"
		properties: {parent: "em0", tag: 10}
	}
}
`
	path := writeManifest(t, content)
	parser := NewCUEParser()
	manifest, err := parser.Parse(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(manifest.Errors) == 0 {
		t.Fatal("expected a validation error for missing deployment field")
	}
}

func TestCUEParser_ParseFile_NameDefaultsToMapKey(t *testing.T) {
	content := `
deployment: "dep-1"
resources: {
	em0: {
		type: "network:interface"
		properties: {device: "em0"}
	}
}
`
	path := writeManifest(t, content)
	parser := NewCUEParser()
	manifest, err := parser.Parse(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(manifest.Errors) > 0 {
		t.Fatalf("unexpected errors: %+v", manifest.Errors)
	}
	if len(manifest.Resources) != 1 || manifest.Resources[0].Name != "em0" {
		t.Fatalf("expected resource name to default to map key, got %+v", manifest.Resources)
	}
}

func TestCUEParser_ParseInline(t *testing.T) {
	parser := NewCUEParser()
	manifest, err := parser.ParseInline(context.Background(), `
deployment: "inline-dep"
resources: {
	r1: {type: "network:vlan", name: "r1", properties: {parent: "em0", tag: 1}}
}
`)
	if err != nil {
		t.Fatalf("parse inline: %v", err)
	}
	if len(manifest.Errors) > 0 {
		t.Fatalf("unexpected errors: %+v", manifest.Errors)
	}
	if manifest.Deployment != "inline-dep" {
		t.Errorf("expected inline-dep, got %s", manifest.Deployment)
	}
}

func TestCUEParser_ParseInline_SyntaxError(t *testing.T) {
	parser := NewCUEParser()
	manifest, err := parser.ParseInline(context.Background(), `deployment: "x" resources: {`)
	if err != nil {
		t.Fatalf("parse inline: %v", err)
	}
	if len(manifest.Errors) == 0 {
		t.Fatal("expected a syntax error to be reported")
	}
}

func TestParsedManifest_ToResourceInputs(t *testing.T) {
	manifest := &ParsedManifest{
		Deployment: "dep-1",
		Resources: []ResourceManifest{
			{TypeID: "network:vlan", Name: "guest", Properties: map[string]interface{}{"tag": 20}},
		},
	}
	inputs := manifest.ToResourceInputs()
	if len(inputs) != 1 {
		t.Fatalf("expected 1 input, got %d", len(inputs))
	}
	if inputs[0].TypeID != "network:vlan" || inputs[0].Name != "guest" {
		t.Errorf("unexpected input: %+v", inputs[0])
	}
}

func TestCUEParser_LoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.cue"), []byte("deployment: \"a\""), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatal(err)
	}
	parser := NewCUEParser()
	files, err := parser.LoadFromDirectory(dir)
	if err != nil {
		t.Fatalf("load from directory: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 cue file, got %v", files)
	}
}
