package services

import (
	"github.com/opnforge/opnforge/pkg/engine"
	"github.com/opnforge/opnforge/pkg/resources/common"
)

const HAProxyServerTypeID = "services:haproxyserver"

// HAProxyServer is one real-server member of a HAProxyBackend pool.
type HAProxyServer struct {
	engine.BaseResource
}

// NewHAProxyServer constructs a HAProxyServer from CUE-validated properties.
// Expected keys: backend (string), address (string IP), port (int),
// enabled (bool, default true).
func NewHAProxyServer(name string, properties map[string]interface{}) engine.Resource {
	return &HAProxyServer{BaseResource: engine.NewBaseResource(HAProxyServerTypeID, name, properties)}
}

func (s *HAProxyServer) Backend() string { return common.AsString(s.Properties(), "backend") }
func (s *HAProxyServer) Address() string { return common.AsString(s.Properties(), "address") }
func (s *HAProxyServer) Port() int {
	port, _ := common.AsInt(s.Properties(), "port")
	return port
}
func (s *HAProxyServer) Enabled() bool {
	enabled, ok := common.AsBool(s.Properties(), "enabled")
	if !ok {
		return true
	}
	return enabled
}

func (s *HAProxyServer) Validate() engine.ValidationResult {
	var errs []string
	if s.Backend() == "" {
		errs = append(errs, "backend is required")
	}
	if err := common.ValidateIP(s.Address()); err != nil {
		errs = append(errs, err.Error())
	}
	if err := common.ValidatePort(s.Port()); err != nil {
		errs = append(errs, err.Error())
	}
	return engine.ValidationResult{OK: len(errs) == 0, Errors: errs}
}

func (s *HAProxyServer) ToAPIPayload() (engine.DriverRequest, error) {
	return engine.DriverRequest{
		TypeID: HAProxyServerTypeID,
		Name:   s.Name(),
		Properties: map[string]interface{}{
			"backend": s.Backend(),
			"address": s.Address(),
			"port":    s.Port(),
			"enabled": s.Enabled(),
		},
	}, nil
}

func (s *HAProxyServer) FromAPIResponse(resp engine.DriverResponse) error {
	s.SetBackendUUID(resp.UUID)
	s.SetOutputs(resp.Outputs)
	return nil
}

func (s *HAProxyServer) RequiredPermissions() []string {
	return []string{"services.haproxy.write"}
}

func (s *HAProxyServer) ReplaceForcingProperties() []string { return nil }

func (s *HAProxyServer) DependencyRefs() []engine.Reference {
	refs := engine.ExtractTemplateRefs(s.Properties())
	if backend := s.Backend(); backend != "" && !looksLikeTemplateRef(backend) {
		refs = append(refs, engine.Reference{
			TargetID: HAProxyBackendTypeID + ":" + backend,
			Kind:     engine.DependencyHard,
			Path:     "backend",
		})
	}
	return refs
}

// HAProxyServerSchema is the CUE schema registered for
// services:haproxyserver.
const HAProxyServerSchema = `
backend: string
address: string
port:    int & >=1 & <=65535
enabled: bool | *true
`
