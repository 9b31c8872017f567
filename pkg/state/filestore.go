// Package state implements the State Store (§4.5/§6): a file-based,
// AES-256-GCM-encrypted Deployment document with a lock sidecar file
// (FileStore), plus an auxiliary SQLite store for Plan/Run/Event/audit
// history (AuxStore, in auxstore.go) adapted from the teacher's
// stores.SQLiteStore.
package state

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/opnforge/opnforge/pkg/engine"
)

// defaultLockTimeout is how long a lock sidecar may exist before a waiter
// assumes its owner crashed and reclaims it, absent an explicit override
// (§6 LOCK_TIMEOUT_MS).
const defaultLockTimeout = 10 * time.Minute

// FileStore persists a single Deployment document as an encrypted file, with
// a sidecar ".lock" file serializing concurrent writers (I5/P5: two
// concurrent Apply calls on the same deployment must not interleave).
type FileStore struct {
	path        string
	lockPath    string
	key         [32]byte
	lockTimeout time.Duration
}

// NewFileStore returns a FileStore writing to path, encrypting with key (a
// 32-byte AES-256 key the caller derives and owns the lifecycle of), using
// defaultLockTimeout for lock staleness.
func NewFileStore(path string, key [32]byte) *FileStore {
	return NewFileStoreWithLockTimeout(path, key, defaultLockTimeout)
}

// NewFileStoreWithLockTimeout is NewFileStore with an explicit lock-wait
// timeout (§6 LOCK_TIMEOUT_MS); lockTimeout <= 0 falls back to
// defaultLockTimeout.
func NewFileStoreWithLockTimeout(path string, key [32]byte, lockTimeout time.Duration) *FileStore {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &FileStore{path: path, lockPath: path + ".lock", key: key, lockTimeout: lockTimeout}
}

// Load decrypts and decodes the Deployment at path. A missing file returns a
// fresh empty Deployment (first-apply case), not an error.
func (s *FileStore) Load(ctx context.Context) (*engine.Deployment, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &engine.Deployment{Resources: map[string]engine.ResourceRecord{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	plaintext, err := s.decrypt(raw)
	if err != nil {
		return nil, engine.NewIntegrityError(
			fmt.Sprintf("state file %s failed to decrypt", s.path), err)
	}

	var dep engine.Deployment
	if err := json.Unmarshal(plaintext, &dep); err != nil {
		return nil, engine.NewIntegrityError(
			fmt.Sprintf("state file %s is not valid JSON", s.path), err)
	}
	return &dep, nil
}

// Save encrypts and atomically writes dep to path (write to a temp file in
// the same directory, then rename, so a crash mid-write cannot corrupt the
// previous good state).
func (s *FileStore) Save(ctx context.Context, dep *engine.Deployment) error {
	dep.UpdatedAt = time.Now()

	plaintext, err := json.Marshal(dep)
	if err != nil {
		return fmt.Errorf("encoding deployment: %w", err)
	}
	ciphertext, err := s.encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("encrypting deployment: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(ciphertext); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("renaming temp state file into place: %w", err)
	}
	return nil
}

// Lock acquires the sidecar lock file, blocking (via an fsnotify watch on its
// parent directory) until it can, ctx is cancelled, or the existing lock is
// found stale and reclaimed. It returns a release function the caller must
// call exactly once.
func (s *FileStore) Lock(ctx context.Context) (release func() error, err error) {
	for {
		f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() error { return os.Remove(s.lockPath) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("creating lock file: %w", err)
		}

		if stale, staleErr := s.lockIsStale(); staleErr == nil && stale {
			_ = os.Remove(s.lockPath)
			continue
		}

		if waitErr := s.waitForUnlock(ctx); waitErr != nil {
			return nil, waitErr
		}
	}
}

func (s *FileStore) lockIsStale() (bool, error) {
	info, err := os.Stat(s.lockPath)
	if err != nil {
		return false, err
	}
	return time.Since(info.ModTime()) > s.lockTimeout, nil
}

// waitForUnlock blocks until the lock sidecar is removed, ctx is cancelled,
// or s.lockTimeout elapses (at which point the caller re-checks staleness
// and may reclaim it).
func (s *FileStore) waitForUnlock(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating lock watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.lockPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching lock directory: %w", err)
	}

	timeout := time.NewTimer(s.lockTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return engine.NewLockedError("deployment lock wait cancelled", ctx.Err())
		case <-timeout.C:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name == s.lockPath && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
				return nil
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching lock directory: %w", watchErr)
		}
	}
}

// encrypt seals plaintext and encodes it as "iv:authTag:ciphertext" (§6),
// all three fields hex, colon-separated.
func (s *FileStore) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	tagSize := gcm.Overhead()
	ciphertext, authTag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	encoded := strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(authTag),
		hex.EncodeToString(ciphertext),
	}, ":")
	return []byte(encoded), nil
}

// decrypt parses the "iv:authTag:ciphertext" wire format and opens it.
func (s *FileStore) decrypt(raw []byte) ([]byte, error) {
	parts := strings.Split(string(raw), ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed state ciphertext: expected iv:authTag:ciphertext")
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("decoding iv: %w", err)
	}
	authTag, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decoding auth tag: %w", err)
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("decoding ciphertext: %w", err)
	}

	block, err := aes.NewCipher(s.key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, iv, append(ciphertext, authTag...), nil)
}

// Checkpoint appends a new Checkpoint snapshot of dep's current resources to
// dep.Checkpoints and returns it.
func Checkpoint(dep *engine.Deployment, id, description string) engine.Checkpoint {
	resources := make(map[string]engine.ResourceRecord, len(dep.Resources))
	for k, v := range dep.Resources {
		resources[k] = v
	}
	cp := engine.Checkpoint{
		ID:          id,
		Description: description,
		CreatedAt:   time.Now(),
		Resources:   resources,
	}
	dep.Checkpoints = append(dep.Checkpoints, cp)
	return cp
}

// Rollback replaces dep's resources with the snapshot from the checkpoint
// named id, or returns a RollbackFailed error if no such checkpoint exists.
// Before swapping, it takes an automatic "pre-rollback" checkpoint of the
// current resources, so a second Rollback can undo the first.
func Rollback(dep *engine.Deployment, id string) error {
	for _, cp := range dep.Checkpoints {
		if cp.ID == id {
			resources := make(map[string]engine.ResourceRecord, len(cp.Resources))
			for k, v := range cp.Resources {
				resources[k] = v
			}
			Checkpoint(dep, fmt.Sprintf("%s-pre-rollback", id), "pre-rollback")
			dep.Resources = resources
			return nil
		}
	}
	return engine.NewRollbackFailedError(
		fmt.Sprintf("no checkpoint %s in deployment %s", id, dep.ID), nil)
}

// Store enumerates and removes deployment documents under a directory, the
// whole-directory counterpart to a single deployment's FileStore (§4.5
// List/Delete).
type Store struct {
	dir string
}

// NewStore returns a Store over the deployment documents under dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// List returns the ID of every deployment with a persisted document under
// dir, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a deployment's document and lock sidecar. Deleting a
// deployment that doesn't exist is not an error.
func (s *Store) Delete(ctx context.Context, deploymentID string) error {
	path := filepath.Join(s.dir, deploymentID+".json")
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing state file: %w", err)
	}
	_ = os.Remove(path + ".lock")
	return nil
}
