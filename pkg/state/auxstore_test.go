package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/opnforge/opnforge/pkg/engine"
)

func TestAuxStore_PlanRunEventAuditLifecycle(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewAuxStore(ctx, filepath.Join(dir, "aux.db"))
	if err != nil {
		t.Fatalf("new aux store: %v", err)
	}
	defer store.Close()

	plan := &engine.Plan{
		ID: "plan-1", DeploymentID: "dep-1", StateVersion: 1,
		CreatedAt: time.Now(), Summary: engine.PlanSummary{Create: 2},
	}
	if err := store.RecordPlan(ctx, plan); err != nil {
		t.Fatalf("record plan: %v", err)
	}

	if err := store.StartRun(ctx, "run-1", plan.ID, false); err != nil {
		t.Fatalf("start run: %v", err)
	}
	if err := store.AppendEvent(ctx, "run-1", "network:vlan:guest", "info", "creating"); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := store.FinishRun(ctx, "run-1", RunStatusSucceeded, ""); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	if err := store.RecordAudit(ctx, AuditEntry{
		Actor: "operator", Action: "apply", ResourceID: "dep-1",
		Detail: map[string]interface{}{"planId": plan.ID},
	}); err != nil {
		t.Fatalf("record audit: %v", err)
	}

	entries, err := store.ListAuditEntries(ctx, "apply", 10)
	if err != nil {
		t.Fatalf("list audit entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Actor != "operator" {
		t.Errorf("unexpected audit entries: %+v", entries)
	}
}
