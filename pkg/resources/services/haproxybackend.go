package services

import (
	"github.com/opnforge/opnforge/pkg/engine"
	"github.com/opnforge/opnforge/pkg/resources/common"
)

const HAProxyBackendTypeID = "services:haproxybackend"

// HAProxyBackend is a named pool of servers with a load-balancing algorithm
// and mode. Individual members are separate HAProxyServer resources that
// reference the backend.
type HAProxyBackend struct {
	engine.BaseResource
}

// NewHAProxyBackend constructs a HAProxyBackend from CUE-validated
// properties. Expected keys: mode (http|tcp), balance (closed set),
// description (string, optional).
func NewHAProxyBackend(name string, properties map[string]interface{}) engine.Resource {
	return &HAProxyBackend{BaseResource: engine.NewBaseResource(HAProxyBackendTypeID, name, properties)}
}

func (b *HAProxyBackend) Mode() string        { return common.AsString(b.Properties(), "mode") }
func (b *HAProxyBackend) Balance() string     { return common.AsString(b.Properties(), "balance") }
func (b *HAProxyBackend) Description() string { return common.AsString(b.Properties(), "description") }

func (b *HAProxyBackend) Validate() engine.ValidationResult {
	var errs []string
	if err := common.ValidateHAProxyMode(b.Mode()); err != nil {
		errs = append(errs, err.Error())
	}
	if err := common.ValidateHAProxyBalance(b.Balance()); err != nil {
		errs = append(errs, err.Error())
	}
	return engine.ValidationResult{OK: len(errs) == 0, Errors: errs}
}

func (b *HAProxyBackend) ToAPIPayload() (engine.DriverRequest, error) {
	return engine.DriverRequest{
		TypeID: HAProxyBackendTypeID,
		Name:   b.Name(),
		Properties: map[string]interface{}{
			"name":    b.Name(),
			"mode":    b.Mode(),
			"balance": b.Balance(),
			"descr":   b.Description(),
		},
	}, nil
}

func (b *HAProxyBackend) FromAPIResponse(resp engine.DriverResponse) error {
	b.SetBackendUUID(resp.UUID)
	b.SetOutputs(resp.Outputs)
	return nil
}

func (b *HAProxyBackend) RequiredPermissions() []string {
	return []string{"services.haproxy.write"}
}

func (b *HAProxyBackend) ReplaceForcingProperties() []string { return nil }

func (b *HAProxyBackend) DependencyRefs() []engine.Reference {
	return engine.ExtractTemplateRefs(b.Properties())
}

// HAProxyBackendSchema is the CUE schema registered for
// services:haproxybackend.
const HAProxyBackendSchema = `
mode:        "http" | "tcp"
balance:     "roundrobin" | "static-rr" | "leastconn" | "source" | "uri" | "url_param"
description: string | *""
`
