package firewall

import (
	"github.com/opnforge/opnforge/pkg/engine"
	"github.com/opnforge/opnforge/pkg/resources/common"
)

const AliasTypeID = "firewall:alias"

// Alias is a named, reusable set of hosts, networks, or ports referenced by
// Rule source/destination fields.
type Alias struct {
	engine.BaseResource
}

// NewAlias constructs an Alias from CUE-validated properties. Expected keys:
// kind (host|network|port), entries ([]string), description (string,
// optional).
func NewAlias(name string, properties map[string]interface{}) engine.Resource {
	return &Alias{BaseResource: engine.NewBaseResource(AliasTypeID, name, properties)}
}

func (a *Alias) Kind() string        { return common.AsString(a.Properties(), "kind") }
func (a *Alias) Description() string { return common.AsString(a.Properties(), "description") }
func (a *Alias) Entries() []string {
	raw, _ := a.Properties()["entries"].([]interface{})
	entries := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			entries = append(entries, s)
		}
	}
	return entries
}

var validAliasKinds = map[string]bool{"host": true, "network": true, "port": true}

func (a *Alias) Validate() engine.ValidationResult {
	var errs []string
	if !validAliasKinds[a.Kind()] {
		errs = append(errs, "kind must be one of host, network, port")
	}
	entries := a.Entries()
	if len(entries) == 0 {
		errs = append(errs, "entries must not be empty")
	}
	for _, e := range entries {
		switch a.Kind() {
		case "host":
			if err := common.ValidateIP(e); err != nil {
				errs = append(errs, err.Error())
			}
		case "port":
			if n, ok := common.AsInt(map[string]interface{}{"p": e}, "p"); ok {
				if err := common.ValidatePort(n); err != nil {
					errs = append(errs, err.Error())
				}
			} else {
				errs = append(errs, "port entry \""+e+"\" is not numeric")
			}
		}
	}
	return engine.ValidationResult{OK: len(errs) == 0, Errors: errs}
}

func (a *Alias) ToAPIPayload() (engine.DriverRequest, error) {
	return engine.DriverRequest{
		TypeID: AliasTypeID,
		Name:   a.Name(),
		Properties: map[string]interface{}{
			"type":    a.Kind(),
			"address": a.Entries(),
			"descr":   a.Description(),
		},
	}, nil
}

func (a *Alias) FromAPIResponse(resp engine.DriverResponse) error {
	a.SetBackendUUID(resp.UUID)
	a.SetOutputs(resp.Outputs)
	return nil
}

func (a *Alias) RequiredPermissions() []string {
	return []string{"firewall.alias.write"}
}

func (a *Alias) ReplaceForcingProperties() []string { return nil }

func (a *Alias) DependencyRefs() []engine.Reference {
	return engine.ExtractTemplateRefs(a.Properties())
}

// AliasSchema is the CUE schema registered for firewall:alias.
const AliasSchema = `
kind:        "host" | "network" | "port"
entries:     [...string] & [_, ...]
description: string | *""
`
