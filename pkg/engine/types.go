package engine

import (
	"encoding/json"
	"time"
)

// DependencyKind classifies an edge between two resources.
type DependencyKind string

const (
	// DependencyHard means the target must exist (be Created) before this resource.
	DependencyHard DependencyKind = "hard"

	// DependencySoft is an ordering hint only; it does not gate execution.
	DependencySoft DependencyKind = "soft"

	// DependencyReference is a typed capture of a specific output of another resource,
	// discovered from a ${type:name.output} template string in a property value.
	DependencyReference DependencyKind = "reference"
)

// Reference is one edge in a resource's dependency set.
type Reference struct {
	// TargetID is the logical id (type:name) of the resource depended on.
	TargetID string `json:"targetId"`

	// Kind classifies the edge.
	Kind DependencyKind `json:"kind"`

	// Output is the output field name captured, set only for DependencyReference.
	Output string `json:"output,omitempty"`

	// Path is the property-path within this resource where the reference appeared,
	// set only for DependencyReference.
	Path string `json:"path,omitempty"`
}

// LifecycleState is a resource's position in the state machine described in
// the execution engine's component design.
type LifecycleState string

const (
	LifecyclePending    LifecycleState = "Pending"
	LifecycleValidating LifecycleState = "Validating"
	LifecyclePlanned    LifecycleState = "Planned"
	LifecycleCreating   LifecycleState = "Creating"
	LifecycleCreated    LifecycleState = "Created"
	LifecycleUpdating   LifecycleState = "Updating"
	LifecycleUpdated    LifecycleState = "Updated"
	LifecycleDeleting   LifecycleState = "Deleting"
	LifecycleDeleted    LifecycleState = "Deleted"
	LifecycleFailed     LifecycleState = "Failed"
)

// lifecycleTransitions enumerates the allowed edges of the resource state machine.
var lifecycleTransitions = map[LifecycleState]map[LifecycleState]bool{
	LifecyclePending:    {LifecycleValidating: true},
	LifecycleValidating: {LifecyclePlanned: true, LifecycleFailed: true},
	LifecyclePlanned: {
		LifecycleCreating: true,
		LifecycleUpdating: true,
		LifecycleDeleting: true,
	},
	LifecycleCreating: {LifecycleCreated: true, LifecycleFailed: true},
	LifecycleUpdating: {LifecycleUpdated: true, LifecycleFailed: true},
	LifecycleDeleting: {LifecycleDeleted: true, LifecycleFailed: true},
	LifecycleCreated:  {LifecyclePlanned: true},
	LifecycleUpdated:  {LifecyclePlanned: true},
	LifecycleFailed:   {LifecyclePlanned: true},
	LifecycleDeleted:  {},
}

// CanTransitionTo reports whether moving from s to next is a legal edge of the
// lifecycle state machine. Failed is terminal unless a new Plan supersedes it,
// which is modeled as Failed -> Planned.
func (s LifecycleState) CanTransitionTo(next LifecycleState) bool {
	allowed, ok := lifecycleTransitions[s]
	if !ok {
		return false
	}
	return allowed[next]
}

// IsTerminal reports whether the state has no further automatic transitions
// within a single apply.
func (s LifecycleState) IsTerminal() bool {
	return s == LifecycleCreated || s == LifecycleUpdated ||
		s == LifecycleDeleted || s == LifecycleFailed
}

// ResourceMetadata tracks bookkeeping fields common to every resource.
type ResourceMetadata struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int64     `json:"version"`
}

// ValidationResult is the outcome of a resource's local, I/O-free Validate call.
type ValidationResult struct {
	OK       bool     `json:"ok"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Merge folds another ValidationResult's errors and warnings into this one.
func (v *ValidationResult) Merge(other ValidationResult) {
	v.Errors = append(v.Errors, other.Errors...)
	v.Warnings = append(v.Warnings, other.Warnings...)
	if !other.OK {
		v.OK = false
	}
}

// DriverRequest is the wire shape projected by ToAPIPayload, stable regardless
// of whether the backend object already exists.
type DriverRequest struct {
	TypeID     string                 `json:"typeId"`
	Name       string                 `json:"name"`
	Properties map[string]interface{} `json:"properties"`
}

// DriverResponse is what an ApplianceDriver hands back from create/update/get.
type DriverResponse struct {
	UUID    string                 `json:"uuid"`
	Outputs map[string]interface{} `json:"outputs"`
}

// ChangeKind is the classification the Planner assigns to a resource pair.
type ChangeKind string

const (
	ChangeCreate  ChangeKind = "Create"
	ChangeUpdate  ChangeKind = "Update"
	ChangeDelete  ChangeKind = "Delete"
	ChangeReplace ChangeKind = "Replace"
	ChangeNoOp    ChangeKind = "NoOp"
)

// PropertyDiff is one entry of a property-path-keyed diff.
type PropertyDiff struct {
	OldValue interface{} `json:"oldValue,omitempty"`
	NewValue interface{} `json:"newValue,omitempty"`
}

// ResourceChange is a single line item of a Plan.
type ResourceChange struct {
	Kind     ChangeKind              `json:"kind"`
	Resource Resource                `json:"-"`
	// ResourceID duplicates Resource's logical id for JSON/serialization and
	// for lookups once a ResourceChange has been persisted without its live
	// Resource (e.g. after a rollback replay).
	ResourceID string                  `json:"resourceId"`
	TypeID     string                  `json:"typeId"`
	Before     *DriverRequest          `json:"before,omitempty"`
	Diff       map[string]PropertyDiff `json:"diff,omitempty"`
	// Phase distinguishes the deletion half of a Replace (0) from its creation
	// half (1); NoOp/Create/Update/Delete are always phase 0.
	Phase int `json:"phase"`
}

// ExecutionWave groups ResourceChanges that are mutually independent per the
// dependency DAG and therefore eligible for concurrent dispatch.
type ExecutionWave struct {
	WaveNumber        int              `json:"waveNumber"`
	Changes           []ResourceChange `json:"changes"`
	EstimatedDuration time.Duration    `json:"estimatedDuration"`
}

// PlanSummary tallies the ResourceChanges by kind.
type PlanSummary struct {
	Create  int `json:"create"`
	Update  int `json:"update"`
	Delete  int `json:"delete"`
	Replace int `json:"replace"`
	NoOp    int `json:"noOp"`
}

// Plan is the transient, content-addressed output of the Planner.
type Plan struct {
	ID                string          `json:"id"`
	DeploymentID      string          `json:"deploymentId"`
	StateVersion      int64           `json:"stateVersion"`
	CreatedAt         time.Time       `json:"createdAt"`
	Summary           PlanSummary     `json:"summary"`
	ExecutionWaves    []ExecutionWave `json:"executionWaves"`
	EstimatedDuration time.Duration   `json:"estimatedDuration"`
}

// Checkpoint is an immutable snapshot of a deployment's resource set.
type Checkpoint struct {
	ID          string                 `json:"id"`
	Description string                 `json:"description"`
	CreatedAt   time.Time              `json:"createdAt"`
	Resources   map[string]ResourceRecord `json:"resources"`
}

// ResourceRecord is the durable, serialization-friendly shape of a Resource,
// used inside a Deployment and inside Checkpoints.
type ResourceRecord struct {
	TypeID       string                 `json:"type"`
	Name         string                 `json:"name"`
	Properties   map[string]interface{} `json:"properties"`
	Outputs      map[string]interface{} `json:"outputs,omitempty"`
	BackendUUID  string                 `json:"backendUuid,omitempty"`
	Dependencies []Reference            `json:"dependencies,omitempty"`
	Metadata     ResourceMetadata       `json:"metadata"`
	Lifecycle    LifecycleState         `json:"lifecycleState"`

	// Extra preserves unknown keys encountered on load, so that forward
	// compatibility across minor schema additions round-trips losslessly.
	Extra map[string]json.RawMessage `json:"-"`
}

// ID returns the logical (type:name) identity of the record.
func (r ResourceRecord) ID() string {
	return r.TypeID + ":" + r.Name
}

// Deployment is the named aggregate persisted by the State Store.
type Deployment struct {
	ID          string                    `json:"id"`
	Resources   map[string]ResourceRecord `json:"resources"`
	Version     int64                     `json:"version"`
	CreatedAt   time.Time                 `json:"createdAt"`
	UpdatedAt   time.Time                 `json:"updatedAt"`
	Checkpoints []Checkpoint              `json:"checkpoints,omitempty"`

	// Status is set to PartiallyRolledBack when a rollback fails mid-sequence.
	Status string `json:"status,omitempty"`

	// unknown preserves top-level keys this version of the engine doesn't
	// recognize, so Save-then-Load round-trips losslessly (P4).
	unknown map[string]json.RawMessage
}
