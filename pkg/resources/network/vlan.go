// Package network holds the VLAN and Interface resource kinds.
package network

import (
	"fmt"

	"github.com/opnforge/opnforge/pkg/engine"
	"github.com/opnforge/opnforge/pkg/resources/common"
)

const VLANTypeID = "network:vlan"

// VLAN is a single 802.1Q VLAN on a parent physical/virtual interface.
type VLAN struct {
	engine.BaseResource
}

// NewVLAN constructs a VLAN from CUE-validated properties. Expected keys:
// parent (string), tag (int 1-4094), description (string, optional).
func NewVLAN(name string, properties map[string]interface{}) engine.Resource {
	return &VLAN{BaseResource: engine.NewBaseResource(VLANTypeID, name, properties)}
}

func (v *VLAN) Parent() string { return common.AsString(v.Properties(), "parent") }
func (v *VLAN) Tag() int {
	tag, _ := common.AsInt(v.Properties(), "tag")
	return tag
}
func (v *VLAN) Description() string { return common.AsString(v.Properties(), "description") }

func (v *VLAN) Validate() engine.ValidationResult {
	var errs []string
	if v.Parent() == "" {
		errs = append(errs, "parent is required")
	}
	if err := common.ValidateVLANTag(v.Tag()); err != nil {
		errs = append(errs, err.Error())
	}
	return engine.ValidationResult{OK: len(errs) == 0, Errors: errs}
}

func (v *VLAN) ToAPIPayload() (engine.DriverRequest, error) {
	return engine.DriverRequest{
		TypeID: VLANTypeID,
		Name:   v.Name(),
		Properties: map[string]interface{}{
			"if":     v.Parent(),
			"tag":    v.Tag(),
			"descr":  v.Description(),
			"vlanif": fmt.Sprintf("%s.%d", v.Parent(), v.Tag()),
		},
	}, nil
}

func (v *VLAN) FromAPIResponse(resp engine.DriverResponse) error {
	v.SetBackendUUID(resp.UUID)
	v.SetOutputs(resp.Outputs)
	return nil
}

func (v *VLAN) RequiredPermissions() []string {
	return []string{"network.vlan.write"}
}

// ReplaceForcingProperties: changing the VLAN tag or parent interface
// re-homes the whole 802.1Q interface, so it cannot be updated in place.
func (v *VLAN) ReplaceForcingProperties() []string {
	return []string{"tag", "if"}
}

func (v *VLAN) DependencyRefs() []engine.Reference {
	refs := engine.ExtractTemplateRefs(v.Properties())
	if parent := v.Parent(); parent != "" && !looksLikeTemplateRef(parent) {
		refs = append(refs, engine.Reference{
			TargetID: "network:interface:" + parent,
			Kind:     engine.DependencySoft,
			Path:     "parent",
		})
	}
	return refs
}

func looksLikeTemplateRef(s string) bool {
	return len(s) > 2 && s[0] == '$' && s[1] == '{'
}

// VLANSchema is the CUE schema registered for network:vlan.
const VLANSchema = `
parent:      string
tag:         int & >=1 & <=4094
description: string | *""
`
