package commands

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/opnforge/opnforge/pkg/driver"
	"github.com/opnforge/opnforge/pkg/engine"
	"github.com/opnforge/opnforge/pkg/policy"
	"github.com/opnforge/opnforge/pkg/registry"
	"github.com/opnforge/opnforge/pkg/resources/firewall"
	"github.com/opnforge/opnforge/pkg/resources/network"
	"github.com/opnforge/opnforge/pkg/resources/services"
	"github.com/opnforge/opnforge/pkg/state"
	"github.com/opnforge/opnforge/pkg/toolsurface"
)

// kindRegistration binds one resource kind's type ID, CUE schema, factory,
// and required permission set for registry.Register.
type kindRegistration struct {
	typeID              string
	schema              string
	factory             registry.Factory
	requiredPermissions []string
}

// builtinKinds lists every resource kind this build ships, mirroring the
// eleven kinds under pkg/resources/{network,firewall,services}.
func builtinKinds() []kindRegistration {
	return []kindRegistration{
		{network.VLANTypeID, network.VLANSchema, network.NewVLAN, []string{"network.vlan.write"}},
		{network.InterfaceTypeID, network.InterfaceSchema, network.NewInterface, []string{"network.interface.write"}},
		{firewall.RuleTypeID, firewall.RuleSchema, firewall.NewRule, []string{"firewall.rule.write"}},
		{firewall.AliasTypeID, firewall.AliasSchema, firewall.NewAlias, []string{"firewall.alias.write"}},
		{firewall.NATOutboundTypeID, firewall.NATOutboundSchema, firewall.NewNATOutbound, []string{"firewall.nat.write"}},
		{services.DHCPRangeTypeID, services.DHCPRangeSchema, services.NewDHCPRange, []string{"services.dhcp.write"}},
		{services.DHCPStaticTypeID, services.DHCPStaticSchema, services.NewDHCPStatic, []string{"services.dhcp.write"}},
		{services.DNSOverrideTypeID, services.DNSOverrideSchema, services.NewDNSOverride, []string{"services.dns.write"}},
		{services.HAProxyBackendTypeID, services.HAProxyBackendSchema, services.NewHAProxyBackend, []string{"services.haproxy.write"}},
		{services.HAProxyServerTypeID, services.HAProxyServerSchema, services.NewHAProxyServer, []string{"services.haproxy.write"}},
		{services.HAProxyFrontendTypeID, services.HAProxyFrontendSchema, services.NewHAProxyFrontend, []string{"services.haproxy.write"}},
	}
}

// buildRegistry registers every built-in kind and freezes the registry
// before any Construct call is possible.
func buildRegistry() (*registry.Registry, error) {
	reg := registry.New()
	for _, k := range builtinKinds() {
		if err := reg.Register(k.typeID, k.schema, k.factory, k.requiredPermissions); err != nil {
			return nil, fmt.Errorf("register %s: %w", k.typeID, err)
		}
	}
	reg.Freeze()
	return reg, nil
}

// deriveKey turns the passphrase in STATE_ENCRYPTION_KEY into the
// AES-256-GCM key the state store uses for at-rest encryption. Encryption
// is always enabled (§6), so a missing key is a fatal configuration error
// rather than a silent insecure default.
func deriveKey() ([32]byte, error) {
	passphrase := os.Getenv("STATE_ENCRYPTION_KEY")
	if passphrase == "" {
		return [32]byte{}, engine.NewIntegrityError("STATE_ENCRYPTION_KEY is required for state-at-rest encryption", nil)
	}
	return sha256.Sum256([]byte(passphrase)), nil
}

// newSurface wires a Tool Surface for one CLI invocation: a frozen
// registry of built-in kinds, the appliance driver (the real HTTP/SSH
// implementation is an external collaborator per the IaC core's design;
// this build ships only the in-memory FakeDriver for local exercise), the
// built-in policy set, and file-backed state rooted at stateDir.
func newSurface(ctx context.Context, stateDir string, logger zerolog.Logger) (*toolsurface.Surface, error) {
	reg, err := buildRegistry()
	if err != nil {
		return nil, err
	}

	pol, err := policy.NewEngine(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("build policy engine: %w", err)
	}

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	aux, err := state.NewAuxStore(ctx, filepath.Join(stateDir, "aux.db"))
	if err != nil {
		return nil, fmt.Errorf("open aux store: %w", err)
	}

	key, err := deriveKey()
	if err != nil {
		return nil, err
	}
	runtimeCfg, err := loadRuntimeConfig()
	if err != nil {
		return nil, err
	}

	drv := driver.NewFakeDriver()

	surface := toolsurface.New(reg, drv, pol, aux, stateDir, key, toolsurface.Config{
		LockTimeout:    runtimeCfg.LockTimeout,
		MaxConcurrency: runtimeCfg.MaxConcurrency,
		MaxRetries:     runtimeCfg.ApplyRetries,
	}, logger)
	return surface, nil
}
