package network

import (
	"fmt"
	"net"

	"github.com/opnforge/opnforge/pkg/engine"
	"github.com/opnforge/opnforge/pkg/resources/common"
)

const InterfaceTypeID = "network:interface"

// Interface assigns an IP configuration to a physical, VLAN, or virtual
// network interface.
type Interface struct {
	engine.BaseResource
}

// NewInterface constructs an Interface from CUE-validated properties.
// Expected keys: device (string), ipv4 (string, optional CIDR),
// description (string, optional), enabled (bool, default true).
func NewInterface(name string, properties map[string]interface{}) engine.Resource {
	return &Interface{BaseResource: engine.NewBaseResource(InterfaceTypeID, name, properties)}
}

func (i *Interface) Device() string      { return common.AsString(i.Properties(), "device") }
func (i *Interface) IPv4CIDR() string    { return common.AsString(i.Properties(), "ipv4") }
func (i *Interface) Description() string { return common.AsString(i.Properties(), "description") }
func (i *Interface) Enabled() bool {
	enabled, ok := common.AsBool(i.Properties(), "enabled")
	if !ok {
		return true
	}
	return enabled
}

func (i *Interface) Validate() engine.ValidationResult {
	var errs []string
	if i.Device() == "" {
		errs = append(errs, "device is required")
	}
	if cidr := i.IPv4CIDR(); cidr != "" {
		if err := validateCIDR(cidr); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return engine.ValidationResult{OK: len(errs) == 0, Errors: errs}
}

func validateCIDR(cidr string) error {
	ip, _, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("%q is not a valid CIDR (expected address/prefix): %w", cidr, err)
	}
	return common.ValidateIP(ip.String())
}

func (i *Interface) ToAPIPayload() (engine.DriverRequest, error) {
	return engine.DriverRequest{
		TypeID: InterfaceTypeID,
		Name:   i.Name(),
		Properties: map[string]interface{}{
			"if":      i.Device(),
			"ipaddr":  i.IPv4CIDR(),
			"descr":   i.Description(),
			"enable":  i.Enabled(),
		},
	}, nil
}

func (i *Interface) FromAPIResponse(resp engine.DriverResponse) error {
	i.SetBackendUUID(resp.UUID)
	i.SetOutputs(resp.Outputs)
	return nil
}

func (i *Interface) RequiredPermissions() []string {
	return []string{"network.interface.write"}
}

// ReplaceForcingProperties: rebinding to a different physical/VLAN device
// requires tearing the old interface assignment down first.
func (i *Interface) ReplaceForcingProperties() []string {
	return []string{"if"}
}

func (i *Interface) DependencyRefs() []engine.Reference {
	return engine.ExtractTemplateRefs(i.Properties())
}

// InterfaceSchema is the CUE schema registered for network:interface.
const InterfaceSchema = `
device:      string
ipv4:        string | *""
description: string | *""
enabled:     bool | *true
`
