package policy

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/opnforge/opnforge/pkg/engine"
)

func TestEngine_Evaluate_FlagsOpenAnyToAny(t *testing.T) {
	ctx := context.Background()
	eng, err := NewEngine(ctx, zerolog.Nop())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	changes := []engine.ResourceChange{
		{
			Kind:       engine.ChangeCreate,
			ResourceID: "firewall:rule:wide-open",
			TypeID:     "firewall:rule",
			Before: &engine.DriverRequest{
				Properties: map[string]interface{}{
					"action": "pass", "source": "any", "destination": "any",
				},
			},
		},
	}

	violations := eng.Evaluate(ctx, changes)
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d: %+v", len(violations), violations)
	}
	if violations[0].PolicyName != "open-any-to-any" {
		t.Errorf("expected open-any-to-any policy, got %s", violations[0].PolicyName)
	}
}

func TestEngine_Evaluate_NoViolationForScopedRule(t *testing.T) {
	ctx := context.Background()
	eng, err := NewEngine(ctx, zerolog.Nop())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	changes := []engine.ResourceChange{
		{
			Kind:       engine.ChangeCreate,
			ResourceID: "firewall:rule:scoped",
			TypeID:     "firewall:rule",
			Before: &engine.DriverRequest{
				Properties: map[string]interface{}{
					"action": "pass", "source": "lannet", "destination": "any",
				},
			},
		},
	}

	violations := eng.Evaluate(ctx, changes)
	if len(violations) != 0 {
		t.Errorf("expected no violations, got %+v", violations)
	}
}

func TestEngine_Evaluate_SkipsNoOpAndDelete(t *testing.T) {
	ctx := context.Background()
	eng, err := NewEngine(ctx, zerolog.Nop())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	changes := []engine.ResourceChange{
		{
			Kind: engine.ChangeDelete, ResourceID: "firewall:rule:wide-open", TypeID: "firewall:rule",
			Before: &engine.DriverRequest{Properties: map[string]interface{}{
				"action": "pass", "source": "any", "destination": "any",
			}},
		},
	}
	if v := eng.Evaluate(ctx, changes); len(v) != 0 {
		t.Errorf("expected delete changes to be skipped, got %+v", v)
	}
}
