package firewall

import (
	"github.com/opnforge/opnforge/pkg/engine"
	"github.com/opnforge/opnforge/pkg/resources/common"
)

const NATOutboundTypeID = "firewall:natoutbound"

// NATOutbound is a single outbound NAT (masquerade/source-NAT) rule.
type NATOutbound struct {
	engine.BaseResource
}

// NewNATOutbound constructs a NATOutbound from CUE-validated properties.
// Expected keys: interface (string), source (string), destination (string,
// default "any"), translation (string, the NAT'd source address),
// description (string, optional).
func NewNATOutbound(name string, properties map[string]interface{}) engine.Resource {
	return &NATOutbound{BaseResource: engine.NewBaseResource(NATOutboundTypeID, name, properties)}
}

func (n *NATOutbound) Interface() string    { return common.AsString(n.Properties(), "interface") }
func (n *NATOutbound) Source() string       { return common.AsString(n.Properties(), "source") }
func (n *NATOutbound) Destination() string  { return common.AsString(n.Properties(), "destination") }
func (n *NATOutbound) Translation() string  { return common.AsString(n.Properties(), "translation") }
func (n *NATOutbound) Description() string  { return common.AsString(n.Properties(), "description") }

func (n *NATOutbound) Validate() engine.ValidationResult {
	var errs []string
	if n.Interface() == "" {
		errs = append(errs, "interface is required")
	}
	if n.Source() == "" {
		errs = append(errs, "source is required")
	}
	if n.Translation() == "" {
		errs = append(errs, "translation is required")
	} else if n.Translation() != "interface" {
		if err := common.ValidateIP(n.Translation()); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return engine.ValidationResult{OK: len(errs) == 0, Errors: errs}
}

func (n *NATOutbound) ToAPIPayload() (engine.DriverRequest, error) {
	dest := n.Destination()
	if dest == "" {
		dest = "any"
	}
	return engine.DriverRequest{
		TypeID: NATOutboundTypeID,
		Name:   n.Name(),
		Properties: map[string]interface{}{
			"interface":   n.Interface(),
			"source":      map[string]interface{}{"network": n.Source()},
			"destination": map[string]interface{}{"network": dest},
			"target":      n.Translation(),
			"descr":       n.Description(),
		},
	}, nil
}

func (n *NATOutbound) FromAPIResponse(resp engine.DriverResponse) error {
	n.SetBackendUUID(resp.UUID)
	n.SetOutputs(resp.Outputs)
	return nil
}

func (n *NATOutbound) RequiredPermissions() []string {
	return []string{"firewall.nat.write"}
}

func (n *NATOutbound) ReplaceForcingProperties() []string { return nil }

func (n *NATOutbound) DependencyRefs() []engine.Reference {
	refs := engine.ExtractTemplateRefs(n.Properties())
	if iface := n.Interface(); iface != "" && !looksLikeTemplateRef(iface) {
		refs = append(refs, engine.Reference{
			TargetID: "network:interface:" + iface,
			Kind:     engine.DependencySoft,
			Path:     "interface",
		})
	}
	return refs
}

// NATOutboundSchema is the CUE schema registered for firewall:natoutbound.
const NATOutboundSchema = `
interface:   string
source:      string
destination: string | *"any"
translation: string
description: string | *""
`
