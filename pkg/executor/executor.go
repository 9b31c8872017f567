// Package executor implements the Execution Engine (§4.4): wave-sequential,
// in-wave-parallel dispatch of a Plan's ResourceChanges against an
// ApplianceDriver, with reverse-order per-change rollback on failure, per-wave
// checkpoints, dry-run, and cooperative cancellation. Grounded on the teacher's worker-pool-per-level
// scheduler.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/opnforge/opnforge/pkg/driver"
	"github.com/opnforge/opnforge/pkg/engine"
	"github.com/opnforge/opnforge/pkg/state"
)

// defaultMaxParallel bounds in-wave concurrency absent an explicit override;
// §4.4/§6 default to sequential (1) execution.
const defaultMaxParallel = 1

// defaultMaxRetries is how many times a retryable DriverError is retried
// before the resource is marked Failed, absent an APPLY_RETRIES override.
const defaultMaxRetries = 3

// Options configures a single Run.
type Options struct {
	MaxParallel int
	DryRun      bool
	// RunID names the per-wave checkpoints this Run takes (wave-<k> within
	// the run); the Tool Surface always generates one, independent of
	// whether the auxiliary store is configured.
	RunID string
	// OnProgress, if set, is called for every resource's start/finish; used
	// to feed the AuxStore's event log and the Tool Surface's streamed
	// progress.
	OnProgress func(resourceID, status, message string)
}

// Executor dispatches a Plan's waves against drv.
type Executor struct {
	drv        driver.ApplianceDriver
	logger     zerolog.Logger
	maxRetries int
}

// New returns an Executor bound to drv, retrying a retryable DriverError up
// to maxRetries times (defaultMaxRetries if maxRetries <= 0).
func New(drv driver.ApplianceDriver, logger zerolog.Logger, maxRetries int) *Executor {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Executor{drv: drv, logger: logger.With().Str("component", "executor").Logger(), maxRetries: maxRetries}
}

// RunResult is the outcome of a single Run call.
type RunResult struct {
	Applied    []engine.ResourceChange
	Failed     *engine.ResourceChange
	FailureErr error
	RolledBack bool
	RollbackErr error
}

// Run dispatches plan's ExecutionWaves in order, running every ResourceChange
// within a wave concurrently (bounded by Options.MaxParallel). Each wave is
// bracketed by the driver's two-phase commit (§4.4 step 3): StageApply before
// the wave's resource calls, CommitApply once they all succeed, RollbackApply
// if any of them fail (before the existing per-change reverse-driver-call
// rollback runs). After a wave commits, Run takes a named wave-<k> checkpoint
// of dep — promoted to a durable checkpoint only when the caller's State
// Store Save persists dep at the end of the run. On the first resource
// failure within a wave, Run waits for the rest of that wave's in-flight work
// to finish, then rolls back every change already applied in this Run (in
// reverse order) before returning.
//
// dep is mutated in place as resources apply successfully: Created/Updated
// records are written, Deleted records are removed. Callers persist dep via
// the State Store after Run returns regardless of outcome, since a partial
// apply followed by a successful rollback still changed dep.
func (e *Executor) Run(ctx context.Context, plan *engine.Plan, dep *engine.Deployment, opts Options) RunResult {
	maxParallel := opts.MaxParallel
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallel
	}

	var applied []engine.ResourceChange
	var result RunResult

	for waveIdx, wave := range plan.ExecutionWaves {
		var stageToken string
		if !opts.DryRun {
			token, stageErr := e.drv.StageApply(ctx)
			if stageErr != nil {
				result.Applied = applied
				result.FailureErr = stageErr
				result.RollbackErr = e.rollback(ctx, applied, dep, opts)
				result.RolledBack = result.RollbackErr == nil
				return result
			}
			stageToken = token
		}

		failed, failErr := e.runWave(ctx, wave, dep, maxParallel, opts)
		applied = append(applied, survivingChanges(wave, failed)...)

		if failed != nil {
			if !opts.DryRun {
				_ = e.drv.RollbackApply(ctx, stageToken)
			}
			result.Applied = applied
			result.Failed = failed
			result.FailureErr = failErr
			result.RollbackErr = e.rollback(ctx, applied, dep, opts)
			result.RolledBack = result.RollbackErr == nil
			return result
		}

		if !opts.DryRun {
			if commitErr := e.drv.CommitApply(ctx, stageToken); commitErr != nil {
				result.Applied = applied
				result.FailureErr = commitErr
				result.RollbackErr = e.rollback(ctx, applied, dep, opts)
				result.RolledBack = result.RollbackErr == nil
				return result
			}
		}

		if opts.RunID != "" && !opts.DryRun {
			state.Checkpoint(dep, fmt.Sprintf("%s-wave-%d", opts.RunID, waveIdx), fmt.Sprintf("wave-%d", waveIdx))
		}

		select {
		case <-ctx.Done():
			result.Applied = applied
			result.FailureErr = ctx.Err()
			result.RollbackErr = e.rollback(ctx, applied, dep, opts)
			result.RolledBack = result.RollbackErr == nil
			return result
		default:
		}
	}

	result.Applied = applied
	return result
}

// runWave executes every change in wave concurrently via a bounded worker
// pool, applying successful results to dep as they complete. It returns the
// first change that failed (nil if the whole wave succeeded) and its error.
func (e *Executor) runWave(ctx context.Context, wave engine.ExecutionWave, dep *engine.Deployment, maxParallel int, opts Options) (*engine.ResourceChange, error) {
	workers := maxParallel
	if len(wave.Changes) < workers {
		workers = len(wave.Changes)
	}
	if workers == 0 {
		return nil, nil
	}

	work := make(chan engine.ResourceChange, len(wave.Changes))
	for _, c := range wave.Changes {
		work <- c
	}
	close(work)

	var mu sync.Mutex
	var wg sync.WaitGroup
	var failed *engine.ResourceChange
	var failErr error

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for change := range work {
				mu.Lock()
				alreadyFailed := failed != nil
				mu.Unlock()
				if alreadyFailed {
					continue
				}

				if err := e.applyOne(ctx, change, dep, opts); err != nil {
					mu.Lock()
					if failed == nil {
						c := change
						failed = &c
						failErr = err
					}
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	return failed, failErr
}

// applyOne performs the driver call for a single ResourceChange (or, in
// dry-run mode, simulates success without calling the driver) and updates
// dep's ResourceRecord set.
func (e *Executor) applyOne(ctx context.Context, change engine.ResourceChange, dep *engine.Deployment, opts Options) error {
	e.progress(opts, change.ResourceID, "started", fmt.Sprintf("%s %s", change.Kind, change.ResourceID))

	if opts.DryRun {
		e.progress(opts, change.ResourceID, "dry-run", "would "+string(change.Kind))
		return nil
	}

	err := e.withRetries(ctx, func() error {
		return e.dispatch(ctx, change, dep)
	})

	if err != nil {
		e.progress(opts, change.ResourceID, "failed", err.Error())
		return err
	}
	e.progress(opts, change.ResourceID, "succeeded", "")
	return nil
}

func (e *Executor) dispatch(ctx context.Context, change engine.ResourceChange, dep *engine.Deployment) error {
	switch change.Kind {
	case engine.ChangeCreate:
		payload, err := change.Resource.ToAPIPayload()
		if err != nil {
			return engine.NewDriverError("encoding create payload", err, false).WithResource(change.ResourceID)
		}
		resp, err := e.drv.Create(ctx, payload)
		if err != nil {
			return err
		}
		if err := change.Resource.FromAPIResponse(resp); err != nil {
			return err
		}
		if err := change.Resource.Transition(engine.LifecycleCreating); err == nil {
			_ = change.Resource.Transition(engine.LifecycleCreated)
		}
		dep.Resources[change.ResourceID] = recordOf(change.Resource)
		return nil

	case engine.ChangeUpdate:
		backendUUID := ""
		if existing, ok := dep.Resources[change.ResourceID]; ok {
			backendUUID = existing.BackendUUID
		}
		payload, err := change.Resource.ToAPIPayload()
		if err != nil {
			return engine.NewDriverError("encoding update payload", err, false).WithResource(change.ResourceID)
		}
		resp, err := e.drv.Update(ctx, backendUUID, payload)
		if err != nil {
			return err
		}
		if err := change.Resource.FromAPIResponse(resp); err != nil {
			return err
		}
		if err := change.Resource.Transition(engine.LifecycleUpdating); err == nil {
			_ = change.Resource.Transition(engine.LifecycleUpdated)
		}
		dep.Resources[change.ResourceID] = recordOf(change.Resource)
		return nil

	case engine.ChangeDelete:
		existing, ok := dep.Resources[change.ResourceID]
		if !ok {
			return nil
		}
		if err := e.drv.Delete(ctx, existing.TypeID, existing.BackendUUID); err != nil {
			return err
		}
		delete(dep.Resources, change.ResourceID)
		return nil

	case engine.ChangeReplace:
		if change.Phase == 0 {
			// Delete half: tear down the existing backend object, same as
			// ChangeDelete. The create half (Phase 1) recreates it.
			existing, ok := dep.Resources[change.ResourceID]
			if !ok {
				return nil
			}
			if err := e.drv.Delete(ctx, existing.TypeID, existing.BackendUUID); err != nil {
				return err
			}
			delete(dep.Resources, change.ResourceID)
			return nil
		}
		// Create half: build the replacement from scratch, same as ChangeCreate.
		payload, err := change.Resource.ToAPIPayload()
		if err != nil {
			return engine.NewDriverError("encoding replace payload", err, false).WithResource(change.ResourceID)
		}
		resp, err := e.drv.Create(ctx, payload)
		if err != nil {
			return err
		}
		if err := change.Resource.FromAPIResponse(resp); err != nil {
			return err
		}
		if err := change.Resource.Transition(engine.LifecycleCreating); err == nil {
			_ = change.Resource.Transition(engine.LifecycleCreated)
		}
		dep.Resources[change.ResourceID] = recordOf(change.Resource)
		return nil

	default:
		return engine.NewPermanentError(
			fmt.Sprintf("executor: unsupported change kind %s", change.Kind), nil).WithResource(change.ResourceID)
	}
}

// withRetries retries fn up to e.maxRetries times, with exponential backoff
// (1s, 4s, 16s, ...), as long as the returned error is IsRetryable.
func (e *Executor) withRetries(ctx context.Context, fn func() error) error {
	var err error
	backoff := 1 * time.Second
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		err = fn()
		if err == nil || !engine.IsRetryable(err) {
			return err
		}
		if attempt == e.maxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 4
	}
	return err
}

// rollback undoes every applied change in reverse order by issuing the
// inverse driver operation (delete what was created, restore prior
// properties for updates, recreate what was deleted). A failure partway
// through rollback returns a RollbackFailed error and leaves dep partially
// rolled back; the caller must mark the Deployment PartiallyRolledBack.
func (e *Executor) rollback(ctx context.Context, applied []engine.ResourceChange, dep *engine.Deployment, opts Options) error {
	if opts.DryRun {
		return nil
	}
	for i := len(applied) - 1; i >= 0; i-- {
		change := applied[i]
		e.progress(opts, change.ResourceID, "rolling-back", string(change.Kind))

		var err error
		switch change.Kind {
		case engine.ChangeCreate:
			if record, ok := dep.Resources[change.ResourceID]; ok {
				err = e.drv.Delete(ctx, record.TypeID, record.BackendUUID)
				delete(dep.Resources, change.ResourceID)
			}
		case engine.ChangeUpdate:
			if change.Before != nil {
				if record, ok := dep.Resources[change.ResourceID]; ok {
					_, err = e.drv.Update(ctx, record.BackendUUID, *change.Before)
					record.Properties = change.Before.Properties
					dep.Resources[change.ResourceID] = record
				}
			}
		case engine.ChangeDelete:
			if change.Before != nil {
				var resp engine.DriverResponse
				resp, err = e.drv.Create(ctx, *change.Before)
				if err == nil {
					dep.Resources[change.ResourceID] = engine.ResourceRecord{
						TypeID:      change.TypeID,
						Name:        change.Before.Name,
						Properties:  change.Before.Properties,
						BackendUUID: resp.UUID,
						Outputs:     resp.Outputs,
					}
				}
			}
		case engine.ChangeReplace:
			if change.Phase == 0 {
				// Undo the delete half: recreate the prior object, same as
				// ChangeDelete's rollback.
				if change.Before != nil {
					var resp engine.DriverResponse
					resp, err = e.drv.Create(ctx, *change.Before)
					if err == nil {
						dep.Resources[change.ResourceID] = engine.ResourceRecord{
							TypeID:      change.TypeID,
							Name:        change.Before.Name,
							Properties:  change.Before.Properties,
							BackendUUID: resp.UUID,
							Outputs:     resp.Outputs,
						}
					}
				}
			} else {
				// Undo the create half: delete the freshly created
				// replacement, same as ChangeCreate's rollback. Since
				// applied is unwound in reverse order, this runs before the
				// Phase-0 half below restores the original object.
				if record, ok := dep.Resources[change.ResourceID]; ok {
					err = e.drv.Delete(ctx, record.TypeID, record.BackendUUID)
					delete(dep.Resources, change.ResourceID)
				}
			}
		}
		if err != nil {
			return engine.NewRollbackFailedError(
				fmt.Sprintf("rollback failed at %s", change.ResourceID), err).WithResource(change.ResourceID)
		}
	}
	return nil
}

func (e *Executor) progress(opts Options, resourceID, status, message string) {
	if opts.OnProgress != nil {
		opts.OnProgress(resourceID, status, message)
	}
}

func recordOf(res engine.Resource) engine.ResourceRecord {
	return engine.ResourceRecord{
		TypeID:       res.TypeID(),
		Name:         res.Name(),
		Properties:   res.Properties(),
		Outputs:      res.Outputs(),
		BackendUUID:  res.BackendUUID(),
		Dependencies: res.Dependencies(),
		Metadata:     res.Metadata(),
		Lifecycle:    res.LifecycleState(),
	}
}

// survivingChanges returns wave's changes that were applied successfully,
// i.e. every change except failed (if any).
func survivingChanges(wave engine.ExecutionWave, failed *engine.ResourceChange) []engine.ResourceChange {
	if failed == nil {
		return wave.Changes
	}
	out := make([]engine.ResourceChange, 0, len(wave.Changes))
	for _, c := range wave.Changes {
		if c.ResourceID != failed.ResourceID {
			out = append(out, c)
		}
	}
	return out
}
