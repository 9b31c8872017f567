package services

import (
	"github.com/opnforge/opnforge/pkg/engine"
	"github.com/opnforge/opnforge/pkg/resources/common"
)

const HAProxyFrontendTypeID = "services:haproxyfrontend"

// HAProxyFrontend binds a listening address/port to a default backend.
type HAProxyFrontend struct {
	engine.BaseResource
}

// NewHAProxyFrontend constructs a HAProxyFrontend from CUE-validated
// properties. Expected keys: bindAddress (string IP, or "any"),
// bindPort (int), mode (http|tcp), defaultBackend (string),
// description (string, optional).
func NewHAProxyFrontend(name string, properties map[string]interface{}) engine.Resource {
	return &HAProxyFrontend{BaseResource: engine.NewBaseResource(HAProxyFrontendTypeID, name, properties)}
}

func (f *HAProxyFrontend) BindAddress() string { return common.AsString(f.Properties(), "bindAddress") }
func (f *HAProxyFrontend) BindPort() int {
	port, _ := common.AsInt(f.Properties(), "bindPort")
	return port
}
func (f *HAProxyFrontend) Mode() string           { return common.AsString(f.Properties(), "mode") }
func (f *HAProxyFrontend) DefaultBackend() string { return common.AsString(f.Properties(), "defaultBackend") }
func (f *HAProxyFrontend) Description() string    { return common.AsString(f.Properties(), "description") }

func (f *HAProxyFrontend) Validate() engine.ValidationResult {
	var errs []string
	if addr := f.BindAddress(); addr != "" && addr != "any" {
		if err := common.ValidateIP(addr); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := common.ValidatePort(f.BindPort()); err != nil {
		errs = append(errs, err.Error())
	}
	if err := common.ValidateHAProxyMode(f.Mode()); err != nil {
		errs = append(errs, err.Error())
	}
	if f.DefaultBackend() == "" {
		errs = append(errs, "defaultBackend is required")
	}
	return engine.ValidationResult{OK: len(errs) == 0, Errors: errs}
}

func (f *HAProxyFrontend) ToAPIPayload() (engine.DriverRequest, error) {
	return engine.DriverRequest{
		TypeID: HAProxyFrontendTypeID,
		Name:   f.Name(),
		Properties: map[string]interface{}{
			"bind":            f.BindAddress(),
			"port":            f.BindPort(),
			"mode":            f.Mode(),
			"default_backend": f.DefaultBackend(),
			"descr":           f.Description(),
		},
	}, nil
}

func (f *HAProxyFrontend) FromAPIResponse(resp engine.DriverResponse) error {
	f.SetBackendUUID(resp.UUID)
	f.SetOutputs(resp.Outputs)
	return nil
}

func (f *HAProxyFrontend) RequiredPermissions() []string {
	return []string{"services.haproxy.write"}
}

func (f *HAProxyFrontend) ReplaceForcingProperties() []string { return nil }

func (f *HAProxyFrontend) DependencyRefs() []engine.Reference {
	refs := engine.ExtractTemplateRefs(f.Properties())
	if backend := f.DefaultBackend(); backend != "" && !looksLikeTemplateRef(backend) {
		refs = append(refs, engine.Reference{
			TargetID: HAProxyBackendTypeID + ":" + backend,
			Kind:     engine.DependencyHard,
			Path:     "defaultBackend",
		})
	}
	return refs
}

// HAProxyFrontendSchema is the CUE schema registered for
// services:haproxyfrontend.
const HAProxyFrontendSchema = `
bindAddress:    string | *"any"
bindPort:       int & >=1 & <=65535
mode:           "http" | "tcp"
defaultBackend: string
description:    string | *""
`
