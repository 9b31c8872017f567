package services

import (
	"github.com/opnforge/opnforge/pkg/engine"
	"github.com/opnforge/opnforge/pkg/resources/common"
)

const DNSOverrideTypeID = "services:dnsoverride"

// DNSOverride is a host-level DNS resolver override (a static A/AAAA record
// served by the appliance's resolver).
type DNSOverride struct {
	engine.BaseResource
}

// NewDNSOverride constructs a DNSOverride from CUE-validated properties.
// Expected keys: hostname (string), domain (string), ip (string),
// description (string, optional).
func NewDNSOverride(name string, properties map[string]interface{}) engine.Resource {
	return &DNSOverride{BaseResource: engine.NewBaseResource(DNSOverrideTypeID, name, properties)}
}

func (d *DNSOverride) Hostname() string    { return common.AsString(d.Properties(), "hostname") }
func (d *DNSOverride) Domain() string      { return common.AsString(d.Properties(), "domain") }
func (d *DNSOverride) IP() string          { return common.AsString(d.Properties(), "ip") }
func (d *DNSOverride) Description() string { return common.AsString(d.Properties(), "description") }

func (d *DNSOverride) Validate() engine.ValidationResult {
	var errs []string
	if err := common.ValidateHostname(d.Hostname()); err != nil {
		errs = append(errs, err.Error())
	}
	if d.Domain() == "" {
		errs = append(errs, "domain is required")
	}
	if err := common.ValidateIP(d.IP()); err != nil {
		errs = append(errs, err.Error())
	}
	return engine.ValidationResult{OK: len(errs) == 0, Errors: errs}
}

func (d *DNSOverride) ToAPIPayload() (engine.DriverRequest, error) {
	return engine.DriverRequest{
		TypeID: DNSOverrideTypeID,
		Name:   d.Name(),
		Properties: map[string]interface{}{
			"host":   d.Hostname(),
			"domain": d.Domain(),
			"ip":     d.IP(),
			"descr":  d.Description(),
		},
	}, nil
}

func (d *DNSOverride) FromAPIResponse(resp engine.DriverResponse) error {
	d.SetBackendUUID(resp.UUID)
	d.SetOutputs(resp.Outputs)
	return nil
}

func (d *DNSOverride) RequiredPermissions() []string {
	return []string{"services.dns.write"}
}

func (d *DNSOverride) ReplaceForcingProperties() []string { return nil }

func (d *DNSOverride) DependencyRefs() []engine.Reference {
	return engine.ExtractTemplateRefs(d.Properties())
}

// DNSOverrideSchema is the CUE schema registered for services:dnsoverride.
const DNSOverrideSchema = `
hostname:    string
domain:      string
ip:          string
description: string | *""
`
