package services

import (
	"github.com/opnforge/opnforge/pkg/engine"
	"github.com/opnforge/opnforge/pkg/resources/common"
)

const DHCPStaticTypeID = "services:dhcpstatic"

// DHCPStatic is a MAC-to-IP static mapping served by one interface's DHCP
// server.
type DHCPStatic struct {
	engine.BaseResource
}

// NewDHCPStatic constructs a DHCPStatic from CUE-validated properties.
// Expected keys: interface (string), mac (string), ip (string),
// hostname (string, optional), description (string, optional).
func NewDHCPStatic(name string, properties map[string]interface{}) engine.Resource {
	return &DHCPStatic{BaseResource: engine.NewBaseResource(DHCPStaticTypeID, name, properties)}
}

func (d *DHCPStatic) Interface() string  { return common.AsString(d.Properties(), "interface") }
func (d *DHCPStatic) MAC() string        { return common.AsString(d.Properties(), "mac") }
func (d *DHCPStatic) IP() string         { return common.AsString(d.Properties(), "ip") }
func (d *DHCPStatic) Hostname() string   { return common.AsString(d.Properties(), "hostname") }
func (d *DHCPStatic) Description() string { return common.AsString(d.Properties(), "description") }

func (d *DHCPStatic) Validate() engine.ValidationResult {
	var errs []string
	if d.Interface() == "" {
		errs = append(errs, "interface is required")
	}
	if _, err := common.NormalizeMAC(d.MAC()); err != nil {
		errs = append(errs, err.Error())
	}
	if err := common.ValidateIP(d.IP()); err != nil {
		errs = append(errs, err.Error())
	}
	if host := d.Hostname(); host != "" {
		if err := common.ValidateHostname(host); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return engine.ValidationResult{OK: len(errs) == 0, Errors: errs}
}

func (d *DHCPStatic) ToAPIPayload() (engine.DriverRequest, error) {
	mac, _ := common.NormalizeMAC(d.MAC())
	return engine.DriverRequest{
		TypeID: DHCPStaticTypeID,
		Name:   d.Name(),
		Properties: map[string]interface{}{
			"interface": d.Interface(),
			"mac":       mac,
			"ipaddr":    d.IP(),
			"hostname":  d.Hostname(),
			"descr":     d.Description(),
		},
	}, nil
}

func (d *DHCPStatic) FromAPIResponse(resp engine.DriverResponse) error {
	d.SetBackendUUID(resp.UUID)
	d.SetOutputs(resp.Outputs)
	return nil
}

func (d *DHCPStatic) RequiredPermissions() []string {
	return []string{"services.dhcp.write"}
}

func (d *DHCPStatic) ReplaceForcingProperties() []string { return nil }

func (d *DHCPStatic) DependencyRefs() []engine.Reference {
	refs := engine.ExtractTemplateRefs(d.Properties())
	if iface := d.Interface(); iface != "" && !looksLikeTemplateRef(iface) {
		refs = append(refs, engine.Reference{
			TargetID: "network:interface:" + iface,
			Kind:     engine.DependencyHard,
			Path:     "interface",
		})
	}
	return refs
}

// DHCPStaticSchema is the CUE schema registered for services:dhcpstatic.
const DHCPStaticSchema = `
interface:   string
mac:         string
ip:          string
hostname:    string | *""
description: string | *""
`
