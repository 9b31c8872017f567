package policy

// BuiltinPolicies returns the policy set always evaluated during plan/apply,
// independent of anything an operator supplies.
func BuiltinPolicies() []Policy {
	return []Policy{
		openAnyToAnyPolicy(),
		natWithoutDescriptionPolicy(),
	}
}

// openAnyToAnyPolicy flags the spec's named security-relevant property:
// a pass rule with source=any and destination=any.
func openAnyToAnyPolicy() Policy {
	return Policy{
		Name:        "open-any-to-any",
		Description: "Flags firewall rules that pass traffic from any source to any destination",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package opnforge.policies

import rego.v1

deny contains violation if {
	input.resource.type == "firewall:rule"
	props := input.resource.properties
	props.action == "pass"
	props.source == "any"
	props.destination == "any"
	violation := {
		"message": sprintf("rule %s passes traffic from any source to any destination", [input.resource.id]),
		"severity": "warning",
	}
}
`,
	}
}

// natWithoutDescriptionPolicy nudges toward documented NAT rules, since an
// undocumented outbound NAT is the hardest kind of rule to safely remove
// later.
func natWithoutDescriptionPolicy() Policy {
	return Policy{
		Name:        "nat-without-description",
		Description: "Flags outbound NAT rules with no description",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package opnforge.policies

import rego.v1

deny contains violation if {
	input.resource.type == "firewall:natoutbound"
	props := input.resource.properties
	desc := object.get(props, "description", "")
	desc == ""
	violation := {
		"message": sprintf("NAT rule %s has no description", [input.resource.id]),
		"severity": "warning",
	}
}
`,
	}
}
