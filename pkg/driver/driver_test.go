package driver

import (
	"context"
	"testing"

	"github.com/opnforge/opnforge/pkg/engine"
)

func TestFakeDriver_CreateGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	d := NewFakeDriver()

	resp, err := d.Create(ctx, engine.DriverRequest{
		TypeID: "network:vlan", Name: "guest", Properties: map[string]interface{}{"tag": 20},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if resp.UUID == "" {
		t.Fatal("expected non-empty UUID")
	}

	got, err := d.Get(ctx, "network:vlan", resp.UUID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Outputs["tag"] != 20 {
		t.Errorf("expected tag 20, got %v", got.Outputs["tag"])
	}

	updated, err := d.Update(ctx, resp.UUID, engine.DriverRequest{
		TypeID: "network:vlan", Name: "guest", Properties: map[string]interface{}{"tag": 30},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Outputs["tag"] != 30 {
		t.Errorf("expected updated tag 30, got %v", updated.Outputs["tag"])
	}

	if err := d.Delete(ctx, "network:vlan", resp.UUID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := d.Get(ctx, "network:vlan", resp.UUID); err == nil {
		t.Error("expected error getting deleted object")
	}
}

func TestFakeDriver_FailNext(t *testing.T) {
	ctx := context.Background()
	d := NewFakeDriver()
	d.FailNext = engine.NewDriverError("simulated failure", nil, true)

	_, err := d.Create(ctx, engine.DriverRequest{TypeID: "network:vlan", Name: "x"})
	if err == nil {
		t.Fatal("expected simulated failure")
	}
	if !engine.IsRetryable(err) {
		t.Error("expected simulated failure to be retryable")
	}

	// FailNext only applies once.
	resp, err := d.Create(ctx, engine.DriverRequest{TypeID: "network:vlan", Name: "x"})
	if err != nil {
		t.Fatalf("expected second create to succeed, got %v", err)
	}
	if resp.UUID == "" {
		t.Error("expected non-empty UUID on successful retry")
	}
}

func TestFakeDriver_StageCommitRollback(t *testing.T) {
	ctx := context.Background()
	d := NewFakeDriver()

	token, err := d.StageApply(ctx)
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := d.CommitApply(ctx, token); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := d.CommitApply(ctx, token); err == nil {
		t.Error("expected error committing an already-committed token")
	}

	token2, err := d.StageApply(ctx)
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := d.RollbackApply(ctx, token2); err != nil {
		t.Fatalf("rollback: %v", err)
	}
}
