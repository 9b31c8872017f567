// Package toolsurface implements the Tool Surface (§4.6): the narrow,
// envelope-wrapped API exposed to external collaborators (the CLI, or any
// other caller), dispatching onto the Registry, Planner, Execution Engine,
// State Store, and Policy Engine.
package toolsurface

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opnforge/opnforge/pkg/driver"
	"github.com/opnforge/opnforge/pkg/engine"
	"github.com/opnforge/opnforge/pkg/executor"
	"github.com/opnforge/opnforge/pkg/planner"
	"github.com/opnforge/opnforge/pkg/policy"
	"github.com/opnforge/opnforge/pkg/registry"
	"github.com/opnforge/opnforge/pkg/state"
)

// maxCheckpoints is the bounded ring size: the 11th checkpoint evicts the
// oldest.
const maxCheckpoints = 10

// ResourceInput is a caller-supplied desired resource, pre-construction.
type ResourceInput struct {
	TypeID     string                 `json:"typeId"`
	Name       string                 `json:"name"`
	Properties map[string]interface{} `json:"properties"`
}

// PlanOptions configures a plan call.
type PlanOptions struct {
	DryRun bool
}

// ApplyOptions configures an apply/destroy/applyResource call.
type ApplyOptions struct {
	DryRun          bool
	ContinueOnError bool
	MaxConcurrency  int
}

// stagedPlan is what plan() keeps in memory between plan and apply, per
// §3's "stored by the State Store only for the duration between plan and
// apply" — held here rather than written to the encrypted document, since
// a Plan is transient and reconstructible.
type stagedPlan struct {
	plan         *engine.Plan
	deploymentID string
	stateVersion int64
}

// Config bundles the §6 environment-driven settings consumed below the Tool
// Surface: how long Lock waits before reclaiming a stale lock, the default
// per-wave concurrency a caller gets absent an explicit override, and how
// many times the Execution Engine retries a transient driver error.
type Config struct {
	LockTimeout    time.Duration
	MaxConcurrency int
	MaxRetries     int
}

// Surface wires the core components behind the Tool Surface's operations.
type Surface struct {
	registry *registry.Registry
	planner  *planner.Planner
	executor *executor.Executor
	policy   *policy.Engine
	aux      *state.AuxStore
	stateDir string
	key      [32]byte
	cfg      Config
	logger   zerolog.Logger

	mu    sync.Mutex
	plans map[string]*stagedPlan
}

// New wires a Surface from its already-constructed collaborators. reg must
// already be Frozen.
func New(reg *registry.Registry, drv driver.ApplianceDriver, pol *policy.Engine, aux *state.AuxStore, stateDir string, key [32]byte, cfg Config, logger zerolog.Logger) *Surface {
	return &Surface{
		registry: reg,
		planner:  planner.New(reg),
		executor: executor.New(drv, logger, cfg.MaxRetries),
		policy:   pol,
		aux:      aux,
		stateDir: stateDir,
		key:      key,
		cfg:      cfg,
		logger:   logger.With().Str("component", "toolsurface").Logger(),
		plans:    make(map[string]*stagedPlan),
	}
}

func (s *Surface) fileStore(deploymentID string) *state.FileStore {
	return state.NewFileStoreWithLockTimeout(filepath.Join(s.stateDir, deploymentID+".json"), s.key, s.cfg.LockTimeout)
}

func (s *Surface) store() *state.Store {
	return state.NewStore(s.stateDir)
}

// ListDeployments returns the ID of every deployment tracked under the
// Surface's state directory.
func (s *Surface) ListDeployments(ctx context.Context) Envelope {
	ids, err := s.store().List(ctx)
	if err != nil {
		return fail(err)
	}
	return ok(ids)
}

// DeleteDeployment removes a deployment's state document and lock sidecar.
func (s *Surface) DeleteDeployment(ctx context.Context, deploymentID string) Envelope {
	if err := s.store().Delete(ctx, deploymentID); err != nil {
		return fail(err)
	}
	return ok(deploymentID)
}

func (s *Surface) construct(inputs []ResourceInput) ([]engine.Resource, []string) {
	var resources []engine.Resource
	var errs []string
	for _, in := range inputs {
		res, err := s.registry.Construct(in.TypeID, in.Name, in.Properties)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s:%s: %s", in.TypeID, in.Name, err.Error()))
			continue
		}
		resources = append(resources, res)
	}
	return resources, errs
}

// ValidationReport is Validate's aggregated result.
type ValidationReport struct {
	OK         bool                               `json:"ok"`
	Results    map[string]engine.ValidationResult `json:"results"`
	Violations []policy.Violation                 `json:"violations,omitempty"`
}

// Validate runs every resource's local Validate() plus the policy engine,
// without touching the State Store.
func (s *Surface) Validate(ctx context.Context, inputs []ResourceInput) Envelope {
	resources, constructErrs := s.construct(inputs)
	report := ValidationReport{OK: len(constructErrs) == 0, Results: map[string]engine.ValidationResult{}}
	for _, msg := range constructErrs {
		report.OK = false
		report.Results["_construct"] = engine.ValidationResult{OK: false, Errors: append(report.Results["_construct"].Errors, msg)}
	}

	var changes []engine.ResourceChange
	for _, res := range resources {
		result := res.Validate()
		report.Results[res.ID()] = result
		if !result.OK {
			report.OK = false
		}
		changes = append(changes, engine.ResourceChange{Kind: engine.ChangeCreate, Resource: res, ResourceID: res.ID(), TypeID: res.TypeID()})
	}

	if s.policy != nil {
		report.Violations = s.policy.Evaluate(ctx, changes)
	}
	return ok(report)
}

// Plan loads current state, diffs it against the desired resources, and
// stages a Plan for a subsequent Apply. It does not hold the deployment
// lock; staleness is re-checked at Apply time.
func (s *Surface) Plan(ctx context.Context, deploymentID string, inputs []ResourceInput, opts PlanOptions) Envelope {
	resources, constructErrs := s.construct(inputs)
	if len(constructErrs) > 0 {
		return fail(engine.NewValidationError(fmt.Sprintf("construct failed: %v", constructErrs), nil))
	}
	for _, res := range resources {
		if result := res.Validate(); !result.OK {
			return fail(engine.NewValidationError(
				fmt.Sprintf("%s: %v", res.ID(), result.Errors), nil).WithResource(res.ID()))
		}
	}

	dep, err := s.fileStore(deploymentID).Load(ctx)
	if err != nil {
		return fail(err)
	}

	changes, err := s.planner.ComputeDiff(resources, dep.Resources)
	if err != nil {
		return fail(err)
	}
	plan, err := s.planner.BuildPlan(deploymentID, dep.Version, resources, dep.Resources, changes)
	if err != nil {
		return fail(err)
	}

	if s.aux != nil {
		_ = s.aux.RecordPlan(ctx, plan)
	}

	s.mu.Lock()
	s.plans[plan.ID] = &stagedPlan{plan: plan, deploymentID: deploymentID, stateVersion: dep.Version}
	s.mu.Unlock()

	s.logger.Info().Str("deployment", deploymentID).Str("plan", plan.ID).
		Int("create", plan.Summary.Create).Int("update", plan.Summary.Update).
		Int("delete", plan.Summary.Delete).Msg("plan staged")
	return ok(plan)
}

// ExecutionResult is Apply/Destroy/ApplyResource's result shape.
type ExecutionResult struct {
	PlanID     string                  `json:"planId"`
	Success    bool                    `json:"success"`
	Applied    []engine.ResourceChange `json:"applied"`
	Failed     *engine.ResourceChange  `json:"failed,omitempty"`
	Error      string                  `json:"error,omitempty"`
	RolledBack bool                    `json:"rolledBack"`
	Violations []policy.Violation      `json:"violations,omitempty"`
}

// Apply executes a previously staged plan. It acquires the deployment's
// exclusive lock for the duration of the run, refuses with ErrStale if
// another writer committed since Plan, and rolls back the run's applied
// changes when one fails. opts.ContinueOnError is not consulted: a failure
// always triggers rollback.
func (s *Surface) Apply(ctx context.Context, planID string, opts ApplyOptions) Envelope {
	s.mu.Lock()
	staged, found := s.plans[planID]
	s.mu.Unlock()
	if !found {
		return fail(engine.NewValidationError(fmt.Sprintf("unknown plan %s", planID), nil))
	}

	_, env := s.runPlan(ctx, staged.deploymentID, staged.plan, staged.stateVersion, opts)
	if env.OK {
		s.mu.Lock()
		delete(s.plans, planID)
		s.mu.Unlock()
	}
	return env
}

// Destroy builds and immediately applies a delete-only plan for every
// resource currently in the deployment.
func (s *Surface) Destroy(ctx context.Context, deploymentID string, opts ApplyOptions) Envelope {
	dep, err := s.fileStore(deploymentID).Load(ctx)
	if err != nil {
		return fail(err)
	}
	changes, err := s.planner.ComputeDiff(nil, dep.Resources)
	if err != nil {
		return fail(err)
	}
	plan, err := s.planner.BuildPlan(deploymentID, dep.Version, nil, dep.Resources, changes)
	if err != nil {
		return fail(err)
	}
	_, env := s.runPlan(ctx, deploymentID, plan, dep.Version, opts)
	return env
}

// ApplyResource is the single-resource fast path: it constructs a one-change
// plan for action against resource and executes it atomically.
func (s *Surface) ApplyResource(ctx context.Context, deploymentID string, action string, input ResourceInput) Envelope {
	dep, err := s.fileStore(deploymentID).Load(ctx)
	if err != nil {
		return fail(err)
	}

	var change engine.ResourceChange
	resourceID := input.TypeID + ":" + input.Name

	switch action {
	case "create", "update":
		res, cerr := s.registry.Construct(input.TypeID, input.Name, input.Properties)
		if cerr != nil {
			return fail(cerr)
		}
		if result := res.Validate(); !result.OK {
			return fail(engine.NewValidationError(fmt.Sprintf("%v", result.Errors), nil).WithResource(resourceID))
		}
		kind := engine.ChangeCreate
		if action == "update" {
			kind = engine.ChangeUpdate
		}
		change = engine.ResourceChange{Kind: kind, Resource: res, ResourceID: res.ID(), TypeID: res.TypeID()}
	case "delete":
		record, exists := dep.Resources[resourceID]
		if !exists {
			return fail(engine.NewValidationError(fmt.Sprintf("no such resource %s", resourceID), nil))
		}
		change = engine.ResourceChange{
			Kind: engine.ChangeDelete, ResourceID: resourceID, TypeID: record.TypeID,
			Before: &engine.DriverRequest{TypeID: record.TypeID, Name: record.Name, Properties: record.Properties},
		}
	default:
		return fail(engine.NewValidationError(fmt.Sprintf("unsupported action %s", action), nil))
	}

	plan := &engine.Plan{
		ID:             uuid.New().String(),
		DeploymentID:   deploymentID,
		StateVersion:   dep.Version,
		CreatedAt:      time.Now(),
		ExecutionWaves: []engine.ExecutionWave{{WaveNumber: 0, Changes: []engine.ResourceChange{change}}},
	}

	_, env := s.runPlan(ctx, deploymentID, plan, dep.Version, ApplyOptions{})
	return env
}

// runPlan is the shared lock/reload/stale-check/execute/save sequence behind
// Apply, Destroy, and ApplyResource.
func (s *Surface) runPlan(ctx context.Context, deploymentID string, plan *engine.Plan, expectedVersion int64, opts ApplyOptions) (ExecutionResult, Envelope) {
	fs := s.fileStore(deploymentID)

	release, err := fs.Lock(ctx)
	if err != nil {
		return ExecutionResult{}, fail(err)
	}
	defer release()

	dep, err := fs.Load(ctx)
	if err != nil {
		return ExecutionResult{}, fail(err)
	}
	if dep.Version != expectedVersion {
		return ExecutionResult{}, fail(engine.NewStaleError(
			fmt.Sprintf("deployment %s changed from version %d to %d since plan", deploymentID, expectedVersion, dep.Version), nil))
	}

	// runID names this run's wave-<k> checkpoints (see Executor.Run)
	// regardless of whether the auxiliary store is configured to record it.
	runID := uuid.New().String()
	if s.aux != nil {
		_ = s.aux.StartRun(ctx, runID, plan.ID, opts.DryRun)
	}

	maxConcurrency := opts.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = s.cfg.MaxConcurrency
	}

	result := s.executor.Run(ctx, plan, dep, executor.Options{
		MaxParallel: maxConcurrency,
		DryRun:      opts.DryRun,
		RunID:       runID,
		OnProgress: func(resourceID, status, message string) {
			if s.aux != nil && runID != "" {
				_ = s.aux.AppendEvent(ctx, runID, resourceID, status, message)
			}
		},
	})

	dep.Version++
	if result.Failed != nil && !result.RolledBack {
		dep.Status = "PartiallyRolledBack"
	} else if result.Failed == nil {
		dep.Status = ""
	}
	if saveErr := fs.Save(ctx, dep); saveErr != nil {
		return ExecutionResult{}, fail(saveErr)
	}

	if s.aux != nil && runID != "" {
		status := state.RunStatusSucceeded
		errMsg := ""
		if result.Failed != nil {
			status = state.RunStatusFailed
			errMsg = result.FailureErr.Error()
		}
		_ = s.aux.FinishRun(ctx, runID, status, errMsg)
	}

	er := ExecutionResult{
		PlanID:     plan.ID,
		Success:    result.Failed == nil,
		Applied:    result.Applied,
		Failed:     result.Failed,
		RolledBack: result.RolledBack,
	}
	if result.FailureErr != nil {
		er.Error = result.FailureErr.Error()
	}
	if s.policy != nil {
		er.Violations = s.policy.Evaluate(ctx, result.Applied)
	}

	if result.Failed != nil {
		s.logger.Error().Str("deployment", deploymentID).Str("plan", plan.ID).
			Str("resource", result.Failed.ResourceID).Bool("rolledBack", result.RolledBack).
			Err(result.FailureErr).Msg("apply failed")
		if !result.RolledBack {
			return er, fail(engine.NewRollbackFailedError(
				fmt.Sprintf("apply failed and rollback also failed: %v", result.RollbackErr), result.FailureErr))
		}
		return er, ok(er)
	}
	return er, ok(er)
}

// ListResourceTypes returns every registered type id, sorted.
func (s *Surface) ListResourceTypes(ctx context.Context) Envelope {
	return ok(s.registry.ListTypes())
}

// DescribeResourceType returns a type's schema and required permissions.
func (s *Surface) DescribeResourceType(ctx context.Context, typeID string) Envelope {
	schema, err := s.registry.Describe(typeID)
	if err != nil {
		return fail(err)
	}
	return ok(schema)
}

// GetDeploymentState returns the deployment's current resource set. Reads
// never take the deployment lock; they observe the last committed Save.
func (s *Surface) GetDeploymentState(ctx context.Context, deploymentID string) Envelope {
	dep, err := s.fileStore(deploymentID).Load(ctx)
	if err != nil {
		return fail(err)
	}
	return ok(dep)
}

// CreateCheckpoint snapshots the deployment's current resource set, evicting
// the oldest checkpoint once the ring exceeds maxCheckpoints.
func (s *Surface) CreateCheckpoint(ctx context.Context, deploymentID, description string) Envelope {
	fs := s.fileStore(deploymentID)
	release, err := fs.Lock(ctx)
	if err != nil {
		return fail(err)
	}
	defer release()

	dep, err := fs.Load(ctx)
	if err != nil {
		return fail(err)
	}

	cp := state.Checkpoint(dep, uuid.New().String(), description)
	if len(dep.Checkpoints) > maxCheckpoints {
		dep.Checkpoints = dep.Checkpoints[len(dep.Checkpoints)-maxCheckpoints:]
	}
	if err := fs.Save(ctx, dep); err != nil {
		return fail(err)
	}
	return ok(cp)
}

// Rollback restores the deployment's resource set from a prior checkpoint.
func (s *Surface) Rollback(ctx context.Context, deploymentID, checkpointID string) Envelope {
	fs := s.fileStore(deploymentID)
	release, err := fs.Lock(ctx)
	if err != nil {
		return fail(err)
	}
	defer release()

	dep, err := fs.Load(ctx)
	if err != nil {
		return fail(err)
	}
	if err := state.Rollback(dep, checkpointID); err != nil {
		return fail(err)
	}
	dep.Version++
	if err := fs.Save(ctx, dep); err != nil {
		return fail(err)
	}
	return ok(dep)
}
