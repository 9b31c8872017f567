// Package registry implements the Resource Registry (§4.2): a process-wide
// mapping from resource-type string to a schema and factory, with a
// Initialize -> Register* -> Freeze lifecycle. Once frozen it is immutable
// and safe to share across goroutines without further locking (per the
// design notes' "global registry" guidance, tests construct fresh
// registries rather than relying on a package-level singleton).
package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"

	"github.com/opnforge/opnforge/pkg/dag"
	"github.com/opnforge/opnforge/pkg/engine"
)

// Factory instantiates a resource kind's concrete value type from its
// already-CUE-validated properties.
type Factory func(name string, properties map[string]interface{}) engine.Resource

// Schema is what Describe returns for tool-surface introspection.
type Schema struct {
	TypeID              string
	Source              string
	RequiredPermissions []string
}

type typeEntry struct {
	source              string
	compiled            cue.Value
	factory             Factory
	requiredPermissions []string
}

// Registry is the Resource Registry. The zero value is not usable; construct
// one with New.
type Registry struct {
	cueCtx *cue.Context
	valid  *validator.Validate

	mu     sync.RWMutex
	types  map[string]*typeEntry
	frozen bool
}

// New returns an empty, unfrozen Registry ready for Register calls.
func New() *Registry {
	return &Registry{
		cueCtx: cuecontext.New(),
		valid:  validator.New(),
		types:  make(map[string]*typeEntry),
	}
}

// Register binds typeID to a CUE schema source and a Factory. It is
// idempotent by typeID: re-registering the same typeID with the identical
// schema source and factory is a no-op; a differing schema or factory is an
// error.
// Register panics if called after Freeze, mirroring the teacher's
// read-after-freeze discipline for shared registries.
func (r *Registry) Register(typeID, cueSchema string, factory Factory, requiredPermissions []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		panic("registry: Register called after Freeze")
	}

	if existing, ok := r.types[typeID]; ok {
		if existing.source != cueSchema {
			return engine.NewValidationError(
				fmt.Sprintf("type %s already registered with a different schema", typeID), nil)
		}
		if reflect.ValueOf(existing.factory).Pointer() != reflect.ValueOf(factory).Pointer() {
			return engine.NewValidationError(
				fmt.Sprintf("type %s already registered with a different factory", typeID), nil)
		}
		return nil
	}

	compiled := r.cueCtx.CompileString(cueSchema)
	if compiled.Err() != nil {
		return engine.NewValidationError(
			fmt.Sprintf("type %s: invalid schema: %v", typeID, compiled.Err()), compiled.Err())
	}

	r.types[typeID] = &typeEntry{
		source:              cueSchema,
		compiled:            compiled,
		factory:             factory,
		requiredPermissions: requiredPermissions,
	}
	return nil
}

// Freeze makes the registry immutable. Construct/Describe/BuildGraph may be
// called before or after Freeze; Register may not be called after.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Construct validates props against typeID's schema, instantiates the kind,
// runs the kind's own local Validate, and populates its dependency set from
// DependencyRefs. It returns a ValidationError aggregating every problem
// found; callers should treat a non-nil error as "do not plan this resource".
func (r *Registry) Construct(typeID, name string, props map[string]interface{}) (engine.Resource, error) {
	r.mu.RLock()
	entry, ok := r.types[typeID]
	r.mu.RUnlock()
	if !ok {
		return nil, engine.NewValidationError(fmt.Sprintf("unknown resource type %q", typeID), nil)
	}

	dataVal := r.cueCtx.Encode(props)
	if dataVal.Err() != nil {
		return nil, engine.NewValidationError(
			fmt.Sprintf("%s %q: failed to encode properties: %v", typeID, name, dataVal.Err()), dataVal.Err())
	}
	unified := entry.compiled.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, engine.NewValidationError(
			fmt.Sprintf("%s %q: schema validation failed: %v", typeID, name, err), err).WithResource(typeID + ":" + name)
	}

	res := entry.factory(name, props)

	vr := res.Validate()
	if !vr.OK {
		return nil, engine.NewValidationError(
			fmt.Sprintf("%s %q: %v", typeID, name, vr.Errors), nil).WithResource(res.ID())
	}

	res.SetDependencies(res.DependencyRefs())
	now := time.Now()
	res.SetMetadata(engine.ResourceMetadata{
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	})
	if err := res.Transition(engine.LifecycleValidating); err != nil {
		return nil, err
	}
	if err := res.Transition(engine.LifecyclePlanned); err != nil {
		return nil, err
	}

	return res, nil
}

// Describe returns typeID's schema source and required permissions for
// introspection (the Tool Surface's describeResourceType).
func (r *Registry) Describe(typeID string) (Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.types[typeID]
	if !ok {
		return Schema{}, engine.NewValidationError(fmt.Sprintf("unknown resource type %q", typeID), nil)
	}
	return Schema{
		TypeID:              typeID,
		Source:              entry.source,
		RequiredPermissions: append([]string(nil), entry.requiredPermissions...),
	}, nil
}

// ListTypes returns every registered typeID, sorted.
func (r *Registry) ListTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.types))
	for id := range r.types {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BuildGraph produces a dependency DAG from a resource set's DependencyRefs:
// an edge from dependency -> dependent for every Hard, Soft, and Reference
// entry. It detects cycles (CycleError naming participants) and returns the
// built graph; TopologicalWaves derives the layering the Planner needs.
func (r *Registry) BuildGraph(resources []engine.Resource) (*dag.Graph, error) {
	b := dag.NewBuilder()
	for _, res := range resources {
		b.AddNode(res.ID())
	}
	for _, res := range resources {
		for _, ref := range res.Dependencies() {
			b.AddEdge(res.ID(), ref.TargetID)
		}
	}
	return b.Build()
}

// TopologicalWaves returns the layered topological sort of g: wave k
// contains exactly those resource ids whose predecessors all lie in waves
// < k, tie-broken by ascending id.
func (r *Registry) TopologicalWaves(g *dag.Graph) [][]string {
	return g.Levels()
}
