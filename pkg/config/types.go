package config

import "time"

// ResourceManifest is the CUE-level representation of one desired-state
// object: a kind-qualified type ID, a name unique within that kind, and a
// bag of kind-specific properties to be handed to the registry's factory.
type ResourceManifest struct {
	// TypeID is the resource kind (e.g. "network:vlan", "firewall:rule").
	TypeID string `json:"type" validate:"required"`

	// Name is the human-assigned identifier within the kind.
	Name string `json:"name" validate:"required"`

	// Properties is the kind-specific configuration, validated later
	// against the kind's own CUE schema by the resource registry.
	Properties map[string]interface{} `json:"properties"`
}

// ManifestDocument is the top-level shape of a CUE desired-state file: a
// deployment identifier and a map of resources keyed by a manifest-local
// name (defaults to the map key when the resource omits its own name).
type ManifestDocument struct {
	Deployment string                      `json:"deployment" validate:"required"`
	Resources  map[string]ResourceManifest `json:"resources"`
}

// ValidationError represents a validation error with location information.
type ValidationError struct {
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	Path     string `json:"path,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity" validate:"required,oneof=error warning info"`
}

// ParsedManifest is the fully parsed result of one or more CUE sources.
type ParsedManifest struct {
	Deployment  string             `json:"deployment"`
	Resources   []ResourceManifest `json:"resources"`
	SourceFiles []string           `json:"source_files"`
	ParsedAt    time.Time          `json:"parsed_at"`
	Errors      []ValidationError  `json:"errors,omitempty"`
}

// ResourceInput mirrors the shape the Tool Surface expects for a single
// desired-state object. It exists so this package never has to import the
// Tool Surface (which itself sits above the registry and executor); callers
// convert field-for-field.
type ResourceInput struct {
	TypeID     string
	Name       string
	Properties map[string]interface{}
}

// ToResourceInputs flattens a parsed manifest into the order-independent
// list the Tool Surface's Plan/Validate calls take.
func (pm *ParsedManifest) ToResourceInputs() []ResourceInput {
	inputs := make([]ResourceInput, len(pm.Resources))
	for i, rm := range pm.Resources {
		inputs[i] = ResourceInput{TypeID: rm.TypeID, Name: rm.Name, Properties: rm.Properties}
	}
	return inputs
}
