package engine

import "fmt"

// Resource is the capability set every resource kind implements (§4.1). There
// is one concrete value type per kind (pkg/resources/...), never a class
// hierarchy: BaseResource supplies the identity/bookkeeping fields common to
// all kinds, and each kind embeds it and adds its own Validate/ToAPIPayload/
// FromAPIResponse/RequiredPermissions/ReplaceForcingProperties/DependencyRefs.
type Resource interface {
	TypeID() string
	Name() string
	// ID is the stable logical identifier, "<typeId>:<name>".
	ID() string

	Properties() map[string]interface{}
	SetProperties(map[string]interface{})

	Outputs() map[string]interface{}
	SetOutputs(map[string]interface{})

	BackendUUID() string
	SetBackendUUID(string)

	Dependencies() []Reference
	SetDependencies([]Reference)

	Metadata() ResourceMetadata
	SetMetadata(ResourceMetadata)

	LifecycleState() LifecycleState
	// Transition moves the resource to next, returning an error if the edge
	// is not permitted by the lifecycle state machine (I3).
	Transition(next LifecycleState) error

	// Validate performs structural and semantic checks, purely local (no I/O).
	Validate() ValidationResult

	// ToAPIPayload projects properties into the driver's wire shape. Stable
	// regardless of whether BackendUUID is already assigned.
	ToAPIPayload() (DriverRequest, error)

	// FromAPIResponse updates Outputs (and BackendUUID, the first time) and
	// promotes LifecycleState on the appliance's response to a create/update.
	FromAPIResponse(resp DriverResponse) error

	// RequiredPermissions declares the capabilities the caller must possess
	// to apply a change to this resource.
	RequiredPermissions() []string

	// ReplaceForcingProperties names the ToAPIPayload property-path keys
	// that force a delete+recreate (Replace) instead of an in-place Update
	// when they differ from the current record (e.g. VLAN tag/if).
	ReplaceForcingProperties() []string

	// DependencyRefs returns static refs plus any ${type:name.output}
	// template references discovered in property values. The Registry calls
	// this once at Construct time and stores the result via SetDependencies.
	DependencyRefs() []Reference
}

// BaseResource is embedded by every concrete resource kind; it implements the
// identity, bookkeeping, and lifecycle-transition mechanics so each kind only
// has to implement the six domain-specific methods.
type BaseResource struct {
	typeID       string
	name         string
	properties   map[string]interface{}
	outputs      map[string]interface{}
	backendUUID  string
	dependencies []Reference
	metadata     ResourceMetadata
	lifecycle    LifecycleState
}

// NewBaseResource constructs the common portion of a resource kind. Callers
// (the per-kind constructors) pass the validated/raw properties map.
func NewBaseResource(typeID, name string, properties map[string]interface{}) BaseResource {
	if properties == nil {
		properties = map[string]interface{}{}
	}
	return BaseResource{
		typeID:     typeID,
		name:       name,
		properties: properties,
		outputs:    map[string]interface{}{},
		lifecycle:  LifecyclePending,
	}
}

func (b *BaseResource) TypeID() string { return b.typeID }
func (b *BaseResource) Name() string   { return b.name }
func (b *BaseResource) ID() string     { return b.typeID + ":" + b.name }

func (b *BaseResource) Properties() map[string]interface{} { return b.properties }
func (b *BaseResource) SetProperties(p map[string]interface{}) {
	b.properties = p
}

func (b *BaseResource) Outputs() map[string]interface{} { return b.outputs }
func (b *BaseResource) SetOutputs(o map[string]interface{}) {
	if b.outputs == nil {
		b.outputs = map[string]interface{}{}
	}
	for k, v := range o {
		b.outputs[k] = v
	}
}

func (b *BaseResource) BackendUUID() string { return b.backendUUID }

// SetBackendUUID assigns the backend UUID. Per invariant I4 this must only be
// called once per resource lifetime, except as part of a Replace (which
// constructs a brand new Resource value rather than mutating the old one).
func (b *BaseResource) SetBackendUUID(id string) {
	if b.backendUUID == "" {
		b.backendUUID = id
	}
}

func (b *BaseResource) Dependencies() []Reference          { return b.dependencies }
func (b *BaseResource) SetDependencies(deps []Reference)    { b.dependencies = deps }
func (b *BaseResource) Metadata() ResourceMetadata          { return b.metadata }
func (b *BaseResource) SetMetadata(m ResourceMetadata)      { b.metadata = m }
func (b *BaseResource) LifecycleState() LifecycleState      { return b.lifecycle }

func (b *BaseResource) Transition(next LifecycleState) error {
	if !b.lifecycle.CanTransitionTo(next) {
		return NewPermanentError(
			fmt.Sprintf("illegal lifecycle transition %s -> %s for %s", b.lifecycle, next, b.ID()),
			nil,
		).WithCode(ErrCodeValidation).WithResource(b.ID())
	}
	b.lifecycle = next
	return nil
}
