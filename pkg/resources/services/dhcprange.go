// Package services holds the DHCP, DNS, and HAProxy resource kinds.
package services

import (
	"fmt"
	"net"

	"github.com/opnforge/opnforge/pkg/engine"
	"github.com/opnforge/opnforge/pkg/resources/common"
)

const DHCPRangeTypeID = "services:dhcprange"

// DHCPRange is a dynamic address pool for one interface's DHCP server.
type DHCPRange struct {
	engine.BaseResource
}

// NewDHCPRange constructs a DHCPRange from CUE-validated properties.
// Expected keys: interface (string), from (string IP), to (string IP).
func NewDHCPRange(name string, properties map[string]interface{}) engine.Resource {
	return &DHCPRange{BaseResource: engine.NewBaseResource(DHCPRangeTypeID, name, properties)}
}

func (d *DHCPRange) Interface() string { return common.AsString(d.Properties(), "interface") }
func (d *DHCPRange) From() string      { return common.AsString(d.Properties(), "from") }
func (d *DHCPRange) To() string        { return common.AsString(d.Properties(), "to") }

func (d *DHCPRange) Validate() engine.ValidationResult {
	var errs []string
	if d.Interface() == "" {
		errs = append(errs, "interface is required")
	}
	fromErr := common.ValidateIP(d.From())
	if fromErr != nil {
		errs = append(errs, fromErr.Error())
	}
	toErr := common.ValidateIP(d.To())
	if toErr != nil {
		errs = append(errs, toErr.Error())
	}
	if fromErr == nil && toErr == nil {
		if compareIPs(d.From(), d.To()) > 0 {
			errs = append(errs, fmt.Sprintf("range start %s must be <= range end %s", d.From(), d.To()))
		}
	}
	return engine.ValidationResult{OK: len(errs) == 0, Errors: errs}
}

// compareIPs returns -1, 0, or 1 comparing a and b as 4-byte (IPv4) or
// 16-byte (IPv6) big-endian integers. Mixed families compare equal-length
// byte slices lexically, which is sufficient for range-ordering validation.
func compareIPs(a, b string) int {
	ipA := net.ParseIP(a).To16()
	ipB := net.ParseIP(b).To16()
	for i := range ipA {
		if ipA[i] != ipB[i] {
			if ipA[i] < ipB[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (d *DHCPRange) ToAPIPayload() (engine.DriverRequest, error) {
	return engine.DriverRequest{
		TypeID: DHCPRangeTypeID,
		Name:   d.Name(),
		Properties: map[string]interface{}{
			"interface": d.Interface(),
			"range": map[string]interface{}{
				"from": d.From(),
				"to":   d.To(),
			},
		},
	}, nil
}

func (d *DHCPRange) FromAPIResponse(resp engine.DriverResponse) error {
	d.SetBackendUUID(resp.UUID)
	d.SetOutputs(resp.Outputs)
	return nil
}

func (d *DHCPRange) RequiredPermissions() []string {
	return []string{"services.dhcp.write"}
}

func (d *DHCPRange) ReplaceForcingProperties() []string { return nil }

func (d *DHCPRange) DependencyRefs() []engine.Reference {
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

func looksLikeTemplateRef(s string) bool {
	return len(s) > 2 && s[0] == '$' && s[1] == '{'
}

// DHCPRangeSchema is the CUE schema registered for services:dhcprange.
const DHCPRangeSchema = `
interface: string
from:      string
to:        string
`
