// Package policy evaluates OPA/Rego policies over planned resource changes
// to surface security-relevant-property warnings (§4.1's pass/any/any case
// plus whatever additional rules operators layer in), adapted from the
// teacher's pkg/policy engine.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"

	"github.com/opnforge/opnforge/pkg/engine"
)

// Severity classifies a policy violation's impact.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Policy is one named Rego module evaluated against every planned resource.
type Policy struct {
	Name        string
	Description string
	Severity    Severity
	Enabled     bool
	Rego        string
}

// Violation is one deny produced by evaluating a Policy against a resource.
type Violation struct {
	PolicyName string   `json:"policyName"`
	ResourceID string   `json:"resourceId"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
}

// compiledPolicy wraps a Policy with its prepared evaluation query.
type compiledPolicy struct {
	policy Policy
	query  rego.PreparedEvalQuery
}

// Engine evaluates the built-in and any operator-supplied policies.
type Engine struct {
	policies []compiledPolicy
	logger   zerolog.Logger
}

// NewEngine compiles the built-in policy set plus any extra policies passed
// in, failing fast on a Rego compile error.
func NewEngine(ctx context.Context, logger zerolog.Logger, extra ...Policy) (*Engine, error) {
	e := &Engine{logger: logger.With().Str("component", "policy-engine").Logger()}

	all := append(BuiltinPolicies(), extra...)
	for _, p := range all {
		if !p.Enabled {
			continue
		}
		query, err := rego.New(
			rego.Query("data.opnforge.policies.deny"),
			rego.Module(p.Name+".rego", p.Rego),
		).PrepareForEval(ctx)
		if err != nil {
			return nil, fmt.Errorf("compiling policy %s: %w", p.Name, err)
		}
		e.policies = append(e.policies, compiledPolicy{policy: p, query: query})
	}
	return e, nil
}

// Evaluate runs every enabled policy against each change's resource
// properties, returning every Violation found. It never returns an error for
// a clean evaluation; a Rego evaluation failure is logged and skipped rather
// than failing the whole plan (a mis-authored custom policy should not block
// an otherwise-valid apply).
func (e *Engine) Evaluate(ctx context.Context, changes []engine.ResourceChange) []Violation {
	var violations []Violation
	for _, change := range changes {
		if change.Kind == engine.ChangeNoOp || change.Kind == engine.ChangeDelete {
			continue
		}
		input := map[string]interface{}{
			"resource": map[string]interface{}{
				"id":         change.ResourceID,
				"type":       change.TypeID,
				"properties": propertiesOf(change),
			},
		}
		for _, cp := range e.policies {
			results, err := cp.query.Eval(ctx, rego.EvalInput(input))
			if err != nil {
				e.logger.Warn().Err(err).Str("policy", cp.policy.Name).
					Str("resource", change.ResourceID).Msg("policy evaluation failed")
				continue
			}
			violations = append(violations, extractViolations(cp.policy, change.ResourceID, results)...)
		}
	}
	return violations
}

func propertiesOf(change engine.ResourceChange) map[string]interface{} {
	if change.Resource != nil {
		return change.Resource.Properties()
	}
	if change.Before != nil {
		return change.Before.Properties
	}
	return map[string]interface{}{}
}

func extractViolations(p Policy, resourceID string, results rego.ResultSet) []Violation {
	var out []Violation
	for _, result := range results {
		for _, expr := range result.Expressions {
			denies, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, d := range denies {
				entry, ok := d.(map[string]interface{})
				if !ok {
					continue
				}
				msg, _ := entry["message"].(string)
				severity := p.Severity
				if sevStr, ok := entry["severity"].(string); ok && sevStr != "" {
					severity = Severity(sevStr)
				}
				out = append(out, Violation{
					PolicyName: p.Name,
					ResourceID: resourceID,
					Severity:   severity,
					Message:    msg,
				})
			}
		}
	}
	return out
}
