package state

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opnforge/opnforge/pkg/engine"
)

func testKey() [32]byte {
	var k [32]byte
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "state.json.enc"), testKey())

	dep := &engine.Deployment{
		ID: "dep-1",
		Resources: map[string]engine.ResourceRecord{
			"network:vlan:guest": {TypeID: "network:vlan", Name: "guest", Properties: map[string]interface{}{"tag": float64(20)}},
		},
		Version: 1,
	}

	ctx := context.Background()
	if err := store.Save(ctx, dep); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ID != "dep-1" || len(loaded.Resources) != 1 {
		t.Errorf("unexpected loaded deployment: %+v", loaded)
	}
}

func TestFileStore_Load_MissingFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "nonexistent.json.enc"), testKey())

	dep, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if len(dep.Resources) != 0 {
		t.Errorf("expected empty resources, got %v", dep.Resources)
	}
}

func TestFileStore_Load_CorruptFileIsIntegrityError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json.enc")
	store := NewFileStore(path, testKey())

	if err := os.WriteFile(path, []byte("not encrypted data at all"), 0o600); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	_, err := store.Load(context.Background())
	if err == nil {
		t.Fatal("expected integrity error for corrupt state file")
	}
	if engine.Code(err) != engine.ErrCodeIntegrity {
		t.Errorf("expected IntegrityError, got %v", engine.Code(err))
	}
}

func TestFileStore_Save_WritesHexIVAuthTagCiphertextFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json.enc")
	store := NewFileStore(path, testKey())

	dep := &engine.Deployment{ID: "dep-1", Resources: map[string]engine.ResourceRecord{}}
	if err := store.Save(context.Background(), dep); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading state file: %v", err)
	}
	parts := strings.Split(string(raw), ":")
	if len(parts) != 3 {
		t.Fatalf("expected iv:authTag:ciphertext (3 parts), got %d: %q", len(parts), raw)
	}
	for i, p := range parts {
		if _, err := hex.DecodeString(p); err != nil {
			t.Errorf("part %d is not valid hex: %v", i, err)
		}
	}
}

func TestFileStore_LockAndRelease(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "state.json.enc"), testKey())

	release, err := store.Lock(context.Background())
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	// Lock should be acquirable again after release.
	release2, err := store.Lock(context.Background())
	if err != nil {
		t.Fatalf("second lock: %v", err)
	}
	_ = release2()
}

func TestCheckpointAndRollback(t *testing.T) {
	dep := &engine.Deployment{
		ID: "dep-1",
		Resources: map[string]engine.ResourceRecord{
			"network:vlan:guest": {TypeID: "network:vlan", Name: "guest"},
		},
	}
	cp := Checkpoint(dep, "cp-1", "before change")
	if len(cp.Resources) != 1 {
		t.Fatalf("expected checkpoint to capture 1 resource, got %d", len(cp.Resources))
	}

	dep.Resources["network:vlan:extra"] = engine.ResourceRecord{TypeID: "network:vlan", Name: "extra"}
	if len(dep.Resources) != 2 {
		t.Fatalf("expected 2 resources after mutation, got %d", len(dep.Resources))
	}

	if err := Rollback(dep, "cp-1"); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if len(dep.Resources) != 1 {
		t.Errorf("expected rollback to restore 1 resource, got %d", len(dep.Resources))
	}

	if err := Rollback(dep, "does-not-exist"); err == nil {
		t.Fatal("expected error rolling back to an unknown checkpoint")
	} else if engine.Code(err) != engine.ErrCodeRollbackFailed {
		t.Errorf("expected RollbackFailed, got %v", engine.Code(err))
	}
}

// TestRollback_TakesAutomaticPreRollbackCheckpoint covers rolling back twice:
// a second Rollback must be able to undo the first, which only works if the
// first Rollback snapshotted the state it was about to overwrite.
func TestRollback_TakesAutomaticPreRollbackCheckpoint(t *testing.T) {
	dep := &engine.Deployment{
		ID: "dep-1",
		Resources: map[string]engine.ResourceRecord{
			"network:vlan:guest": {TypeID: "network:vlan", Name: "guest"},
		},
	}
	Checkpoint(dep, "cp-early", "early")

	dep.Resources["network:vlan:extra"] = engine.ResourceRecord{TypeID: "network:vlan", Name: "extra"}
	cpLate := Checkpoint(dep, "cp-late", "late")

	dep.Resources["network:vlan:third"] = engine.ResourceRecord{TypeID: "network:vlan", Name: "third"}

	if err := Rollback(dep, cpLate.ID); err != nil {
		t.Fatalf("first rollback: %v", err)
	}
	if len(dep.Resources) != 2 {
		t.Fatalf("expected 2 resources after first rollback, got %d", len(dep.Resources))
	}

	// Undo the first rollback via its auto-generated pre-rollback checkpoint.
	if err := Rollback(dep, cpLate.ID+"-pre-rollback"); err != nil {
		t.Fatalf("undo rollback via pre-rollback checkpoint: %v", err)
	}
	if len(dep.Resources) != 3 {
		t.Errorf("expected 3 resources after undoing the rollback, got %d", len(dep.Resources))
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	dir := t.TempDir()
	key := testKey()

	for _, id := range []string{"dep-a", "dep-b"} {
		fs := NewFileStore(filepath.Join(dir, id+".json"), key)
		dep := &engine.Deployment{ID: id, Resources: map[string]engine.ResourceRecord{}}
		if err := fs.Save(context.Background(), dep); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	store := NewStore(dir)
	ids, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 || ids[0] != "dep-a" || ids[1] != "dep-b" {
		t.Fatalf("expected [dep-a dep-b], got %v", ids)
	}

	if err := store.Delete(context.Background(), "dep-a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ids, err = store.List(context.Background())
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(ids) != 1 || ids[0] != "dep-b" {
		t.Fatalf("expected [dep-b] after delete, got %v", ids)
	}

	// Deleting an already-absent deployment is not an error.
	if err := store.Delete(context.Background(), "dep-a"); err != nil {
		t.Errorf("expected delete of absent deployment to succeed, got %v", err)
	}
}

func TestStore_List_MissingDirectoryReturnsEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "does-not-exist"))
	ids, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no deployments, got %v", ids)
	}
}
