package dag

import (
	"errors"
	"testing"

	"github.com/opnforge/opnforge/pkg/engine"
)

func TestBuilder_Build_Empty(t *testing.T) {
	g, err := NewBuilder().Build()
	if err != nil {
		t.Fatalf("expected no error for empty graph, got: %v", err)
	}
	if len(g.Nodes) != 0 {
		t.Errorf("expected 0 nodes, got %d", len(g.Nodes))
	}
}

func TestBuilder_Build_SingleNode(t *testing.T) {
	b := NewBuilder()
	b.AddNode("network:vlan:guest")

	g, err := b.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.Roots) != 1 || g.Roots[0] != "network:vlan:guest" {
		t.Errorf("expected single root, got %v", g.Roots)
	}
	if g.Depth != 1 {
		t.Errorf("expected depth 1, got %d", g.Depth)
	}
}

func TestBuilder_Build_LinearDependency(t *testing.T) {
	b := NewBuilder()
	b.AddNode("network:vlan:v")
	b.AddNode("firewall:rule:r")
	b.AddEdge("firewall:rule:r", "network:vlan:v")

	g, err := b.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Depth != 2 {
		t.Fatalf("expected depth 2, got %d", g.Depth)
	}
	levels := g.Levels()
	if len(levels[0]) != 1 || levels[0][0] != "network:vlan:v" {
		t.Errorf("expected wave 0 = [network:vlan:v], got %v", levels[0])
	}
	if len(levels[1]) != 1 || levels[1][0] != "firewall:rule:r" {
		t.Errorf("expected wave 1 = [firewall:rule:r], got %v", levels[1])
	}
}

func TestBuilder_Build_TieBreakAscendingID(t *testing.T) {
	b := NewBuilder()
	b.AddNode("network:vlan:zzz")
	b.AddNode("network:vlan:aaa")
	b.AddNode("network:vlan:mmm")

	g, err := b.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"network:vlan:aaa", "network:vlan:mmm", "network:vlan:zzz"}
	got := g.Levels()[0]
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("wave 0 = %v, want %v", got, want)
			break
		}
	}
}

func TestBuilder_Build_CycleDetected(t *testing.T) {
	b := NewBuilder()
	b.AddNode("a")
	b.AddNode("b")
	b.AddEdge("a", "b")
	b.AddEdge("b", "a")

	_, err := b.Build()
	if err == nil {
		t.Fatal("expected cycle error, got nil")
	}
	if engine.Code(err) != engine.ErrCodeCycle {
		t.Errorf("expected CycleError, got %v", err)
	}

	var ee *engine.EngineError
	if !errors.As(err, &ee) {
		t.Fatal("expected *engine.EngineError")
	}
	participants, _ := ee.Details["participants"].([]string)
	if len(participants) < 2 {
		t.Errorf("expected cycle participants recorded, got %v", participants)
	}
}

func TestBuilder_Build_SelfLoopIgnored(t *testing.T) {
	b := NewBuilder()
	b.AddNode("a")
	b.AddEdge("a", "a")

	g, err := b.Build()
	if err != nil {
		t.Fatalf("self edges must be ignored, not fail: %v", err)
	}
	if g.Depth != 1 {
		t.Errorf("expected depth 1, got %d", g.Depth)
	}
}

func TestBuilder_Build_UnresolvedDependency(t *testing.T) {
	b := NewBuilder()
	b.AddNode("a")
	b.AddEdge("a", "ghost")

	_, err := b.Build()
	if engine.Code(err) != engine.ErrCodeUnresolvedReference {
		t.Errorf("expected UnresolvedReference, got %v", err)
	}
}

func TestGraph_Reversed(t *testing.T) {
	b := NewBuilder()
	b.AddNode("v")
	b.AddNode("r")
	b.AddEdge("r", "v")

	g, err := b.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rev := g.Reversed()
	if rev.Depth != 2 {
		t.Fatalf("expected reversed depth 2, got %d", rev.Depth)
	}
	if rev.Levels()[0][0] != "r" {
		t.Errorf("expected reversed wave 0 = [r], got %v", rev.Levels()[0])
	}
}
