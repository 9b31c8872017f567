// Package driver defines the ApplianceDriver port (§4.6): the boundary
// between the engine and a real network appliance's configuration API. It
// also ships an in-memory fake used by the Execution Engine's own tests and
// by any caller exercising a plan/apply cycle without a live appliance.
package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/opnforge/opnforge/pkg/engine"
)

// ApplianceDriver is the port every concrete backend (REST client, SSH/CLI
// shim, mock) implements. Create/Update/Delete operate on a single resource;
// Apply performs a two-phase commit (stage every change, then either commit
// or roll every staged change back) for appliances whose configuration API
// exposes a pending-changes buffer.
type ApplianceDriver interface {
	Get(ctx context.Context, typeID, backendUUID string) (engine.DriverResponse, error)
	List(ctx context.Context, typeID string) ([]engine.DriverResponse, error)
	Create(ctx context.Context, req engine.DriverRequest) (engine.DriverResponse, error)
	Update(ctx context.Context, backendUUID string, req engine.DriverRequest) (engine.DriverResponse, error)
	Delete(ctx context.Context, typeID, backendUUID string) error

	// StageApply begins a two-phase commit: appliances that buffer config
	// changes (e.g. pfSense/OPNsense-style staged configs) accumulate here
	// without taking effect.
	StageApply(ctx context.Context) (token string, err error)
	// CommitApply makes a staged batch of changes take effect.
	CommitApply(ctx context.Context, token string) error
	// RollbackApply discards a staged batch without applying it.
	RollbackApply(ctx context.Context, token string) error
}

// FakeDriver is an in-memory ApplianceDriver, keyed by backend UUID. It never
// fails unless FailNext is set, which lets tests exercise rollback paths
// deterministically.
type FakeDriver struct {
	mu       sync.Mutex
	objects  map[string]engine.DriverResponse
	typeOf   map[string]string
	staged   map[string][]string // token -> backend UUIDs created/updated/deleted in this batch
	FailNext error
}

// NewFakeDriver returns an empty FakeDriver.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{
		objects: make(map[string]engine.DriverResponse),
		typeOf:  make(map[string]string),
		staged:  make(map[string][]string),
	}
}

func (f *FakeDriver) takeFailure() error {
	err := f.FailNext
	f.FailNext = nil
	return err
}

func (f *FakeDriver) Get(ctx context.Context, typeID, backendUUID string) (engine.DriverResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp, ok := f.objects[backendUUID]
	if !ok {
		return engine.DriverResponse{}, engine.NewDriverError(
			fmt.Sprintf("no such object %s", backendUUID), nil, false)
	}
	return resp, nil
}

func (f *FakeDriver) List(ctx context.Context, typeID string) ([]engine.DriverResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []engine.DriverResponse
	for uuid, t := range f.typeOf {
		if t == typeID {
			out = append(out, f.objects[uuid])
		}
	}
	return out, nil
}

func (f *FakeDriver) Create(ctx context.Context, req engine.DriverRequest) (engine.DriverResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return engine.DriverResponse{}, err
	}
	id := uuid.New().String()
	resp := engine.DriverResponse{UUID: id, Outputs: cloneMap(req.Properties)}
	f.objects[id] = resp
	f.typeOf[id] = req.TypeID
	return resp, nil
}

func (f *FakeDriver) Update(ctx context.Context, backendUUID string, req engine.DriverRequest) (engine.DriverResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return engine.DriverResponse{}, err
	}
	if _, ok := f.objects[backendUUID]; !ok {
		return engine.DriverResponse{}, engine.NewDriverError(
			fmt.Sprintf("no such object %s", backendUUID), nil, false)
	}
	resp := engine.DriverResponse{UUID: backendUUID, Outputs: cloneMap(req.Properties)}
	f.objects[backendUUID] = resp
	return resp, nil
}

func (f *FakeDriver) Delete(ctx context.Context, typeID, backendUUID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	delete(f.objects, backendUUID)
	delete(f.typeOf, backendUUID)
	return nil
}

func (f *FakeDriver) StageApply(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := uuid.New().String()
	f.staged[token] = nil
	return token, nil
}

func (f *FakeDriver) CommitApply(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.staged[token]; !ok {
		return engine.NewDriverError(fmt.Sprintf("unknown stage token %s", token), nil, false)
	}
	delete(f.staged, token)
	return nil
}

func (f *FakeDriver) RollbackApply(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.staged, token)
	return nil
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
