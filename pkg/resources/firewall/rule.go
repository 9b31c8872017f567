// Package firewall holds the Rule, Alias, and NAT outbound resource kinds.
package firewall

import (
	"github.com/opnforge/opnforge/pkg/engine"
	"github.com/opnforge/opnforge/pkg/resources/common"
)

const RuleTypeID = "firewall:rule"

// Rule is a single firewall filter rule on an interface.
type Rule struct {
	engine.BaseResource
}

// NewRule constructs a Rule from CUE-validated properties. Expected keys:
// interface (string), action (pass|block|reject), protocol (string),
// source (string), destination (string), destinationPort (string, optional),
// description (string, optional).
func NewRule(name string, properties map[string]interface{}) engine.Resource {
	return &Rule{BaseResource: engine.NewBaseResource(RuleTypeID, name, properties)}
}

func (r *Rule) Interface() string       { return common.AsString(r.Properties(), "interface") }
func (r *Rule) Action() string          { return common.AsString(r.Properties(), "action") }
func (r *Rule) Protocol() string        { return common.AsString(r.Properties(), "protocol") }
func (r *Rule) Source() string          { return common.AsString(r.Properties(), "source") }
func (r *Rule) Destination() string     { return common.AsString(r.Properties(), "destination") }
func (r *Rule) DestinationPort() string { return common.AsString(r.Properties(), "destinationPort") }
func (r *Rule) Description() string     { return common.AsString(r.Properties(), "description") }

var validActions = map[string]bool{"pass": true, "block": true, "reject": true}

func (r *Rule) Validate() engine.ValidationResult {
	var errs []string
	var warnings []string

	if r.Interface() == "" {
		errs = append(errs, "interface is required")
	}
	if !validActions[r.Action()] {
		errs = append(errs, "action must be one of pass, block, reject")
	}
	if r.Source() == "" {
		errs = append(errs, "source is required")
	}
	if r.Destination() == "" {
		errs = append(errs, "destination is required")
	}
	if port := r.DestinationPort(); port != "" && port != "any" {
		if n, ok := common.AsInt(map[string]interface{}{"p": port}, "p"); ok {
			if err := common.ValidatePort(n); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}

	if common.IsSecurityRelevant(r.Action(), r.Source(), r.Destination()) {
		warnings = append(warnings, "rule allows pass from any to any: review before applying")
	}

	return engine.ValidationResult{OK: len(errs) == 0, Errors: errs, Warnings: warnings}
}

func (r *Rule) ToAPIPayload() (engine.DriverRequest, error) {
	return engine.DriverRequest{
		TypeID: RuleTypeID,
		Name:   r.Name(),
		Properties: map[string]interface{}{
			"interface": r.Interface(),
			"type":      r.Action(),
			"protocol":  r.Protocol(),
			"source":    map[string]interface{}{"network": r.Source()},
			"destination": map[string]interface{}{
				"network": r.Destination(),
				"port":    r.DestinationPort(),
			},
			"descr": r.Description(),
		},
	}, nil
}

func (r *Rule) FromAPIResponse(resp engine.DriverResponse) error {
	r.SetBackendUUID(resp.UUID)
	r.SetOutputs(resp.Outputs)
	return nil
}

func (r *Rule) RequiredPermissions() []string {
	return []string{"firewall.rule.write"}
}

// ReplaceForcingProperties: moving a rule to a different interface means
// unbinding it from the old interface's ruleset entirely.
func (r *Rule) ReplaceForcingProperties() []string {
	return []string{"interface"}
}

func (r *Rule) DependencyRefs() []engine.Reference {
	refs := engine.ExtractTemplateRefs(r.Properties())
	if iface := r.Interface(); iface != "" && !looksLikeTemplateRef(iface) {
		refs = append(refs, engine.Reference{
			TargetID: "network:interface:" + iface,
			Kind:     engine.DependencySoft,
			Path:     "interface",
		})
	}
	return refs
}

func looksLikeTemplateRef(s string) bool {
	return len(s) > 2 && s[0] == '$' && s[1] == '{'
}

// RuleSchema is the CUE schema registered for firewall:rule.
const RuleSchema = `
interface:       string
action:          "pass" | "block" | "reject"
protocol:        string | *"any"
source:          string
destination:     string
destinationPort: string | *"any"
description:     string | *""
`
