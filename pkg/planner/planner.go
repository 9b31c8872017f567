// Package planner implements the Planner component (§4.3): it diffs a
// desired resource set against a Deployment's current ResourceRecords and
// builds a wave-ordered Plan the Execution Engine can dispatch.
package planner

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/opnforge/opnforge/pkg/dag"
	"github.com/opnforge/opnforge/pkg/engine"
	"github.com/opnforge/opnforge/pkg/registry"
)

// perResourceBudget is the planner's estimate of how long a single create,
// update, or delete will take against the appliance; the Execution Engine
// may override this once real timing data accumulates.
const perResourceBudget = 10 * time.Second

// Planner computes diffs and builds Plans.
type Planner struct {
	registry *registry.Registry
}

// New returns a Planner bound to reg, used to rebuild the dependency DAG over
// the union of desired and current resources.
func New(reg *registry.Registry) *Planner {
	return &Planner{registry: reg}
}

// ComputeDiff classifies every resource in desired (plus every current
// resource absent from desired, which becomes a delete) into a
// ResourceChange, property diffs included.
func (p *Planner) ComputeDiff(desired []engine.Resource, current map[string]engine.ResourceRecord) ([]engine.ResourceChange, error) {
	var changes []engine.ResourceChange
	seen := make(map[string]bool, len(desired))

	for _, res := range desired {
		seen[res.ID()] = true
		record, existed := current[res.ID()]

		payload, err := res.ToAPIPayload()
		if err != nil {
			return nil, fmt.Errorf("resource %s: %w", res.ID(), err)
		}

		if !existed {
			changes = append(changes, engine.ResourceChange{
				Kind:       engine.ChangeCreate,
				Resource:   res,
				ResourceID: res.ID(),
				TypeID:     res.TypeID(),
			})
			continue
		}

		before := &engine.DriverRequest{
			TypeID:     record.TypeID,
			Name:       record.Name,
			Properties: record.Properties,
		}
		diff := diffProperties(record.Properties, payload.Properties)

		if len(diff) == 0 {
			changes = append(changes, engine.ResourceChange{
				Kind:       engine.ChangeNoOp,
				Resource:   res,
				ResourceID: res.ID(),
				TypeID:     res.TypeID(),
				Before:     before,
			})
			continue
		}

		kind := engine.ChangeUpdate
		if diffTouchesReplaceForcingProperty(res, diff) {
			kind = engine.ChangeReplace
		}
		changes = append(changes, engine.ResourceChange{
			Kind:       kind,
			Resource:   res,
			ResourceID: res.ID(),
			TypeID:     res.TypeID(),
			Before:     before,
			Diff:       diff,
		})
	}

	for id, record := range current {
		if seen[id] {
			continue
		}
		before := &engine.DriverRequest{
			TypeID:     record.TypeID,
			Name:       record.Name,
			Properties: record.Properties,
		}
		changes = append(changes, engine.ResourceChange{
			Kind:       engine.ChangeDelete,
			ResourceID: id,
			TypeID:     record.TypeID,
			Before:     before,
		})
	}

	return changes, nil
}

// diffTouchesReplaceForcingProperty reports whether diff changes any of
// res's replace-forcing property paths (§4.3: e.g. VLAN tag/if,
// firewall-rule interface), which forces a Replace instead of an Update.
func diffTouchesReplaceForcingProperty(res engine.Resource, diff map[string]engine.PropertyDiff) bool {
	forcing := res.ReplaceForcingProperties()
	if len(forcing) == 0 {
		return false
	}
	for _, path := range forcing {
		if _, changed := diff[path]; changed {
			return true
		}
	}
	return false
}

// diffProperties returns a path-keyed PropertyDiff map for every top-level
// key whose value differs between before and after (added, removed, or
// changed). Property normalization (MAC case, IP canonicalization, bool
// forms) happens upstream in ToAPIPayload, so a reflect.DeepEqual here
// compares already-normalized values.
func diffProperties(before, after map[string]interface{}) map[string]engine.PropertyDiff {
	diff := make(map[string]engine.PropertyDiff)
	for k, newVal := range after {
		oldVal, existed := before[k]
		if !existed || !reflect.DeepEqual(oldVal, newVal) {
			diff[k] = engine.PropertyDiff{OldValue: oldVal, NewValue: newVal}
		}
	}
	for k, oldVal := range before {
		if _, stillPresent := after[k]; !stillPresent {
			diff[k] = engine.PropertyDiff{OldValue: oldVal, NewValue: nil}
		}
	}
	return diff
}

// BuildPlan lays changes into dependency-ordered ExecutionWaves. A Replace
// expands into a deletion-phase half (Phase 0) and a creation-phase half
// (Phase 1): every deletion-phase wave — plain Deletes plus Replace delete
// halves, in reverse dependency order — runs before every creation-phase
// wave — plain Create/Update plus Replace create halves, in forward
// dependency order (§4.4). The forward graph is built from desired's live
// DependencyRefs; the deletion graph is built from current's persisted
// ResourceRecord.Dependencies, since a deleted (or replaced) resource's old
// half has no live Resource value to ask.
func (p *Planner) BuildPlan(deploymentID string, stateVersion int64, desired []engine.Resource, current map[string]engine.ResourceRecord, changes []engine.ResourceChange) (*engine.Plan, error) {
	deletionPhase, creationPhase := splitByPhase(changes)

	deletionGraph, err := buildRecordGraph(current)
	if err != nil {
		return nil, fmt.Errorf("building deletion dependency graph: %w", err)
	}
	reverseGraph := deletionGraph.Reversed()

	forwardGraph, err := p.registry.BuildGraph(desired)
	if err != nil {
		return nil, fmt.Errorf("building forward dependency graph: %w", err)
	}

	var waves []engine.ExecutionWave
	waveNum := 0

	reverseWaves := assignWaves(reverseGraph, deletionPhase)
	for _, waveChanges := range reverseWaves {
		if len(waveChanges) == 0 {
			continue
		}
		waves = append(waves, engine.ExecutionWave{
			WaveNumber:        waveNum,
			Changes:           waveChanges,
			EstimatedDuration: time.Duration(len(waveChanges)) * perResourceBudget,
		})
		waveNum++
	}

	forwardWaves := assignWaves(forwardGraph, creationPhase)
	for _, waveChanges := range forwardWaves {
		if len(waveChanges) == 0 {
			continue
		}
		waves = append(waves, engine.ExecutionWave{
			WaveNumber:        waveNum,
			Changes:           waveChanges,
			EstimatedDuration: time.Duration(len(waveChanges)) * perResourceBudget,
		})
		waveNum++
	}

	summary := summarize(changes)
	var total time.Duration
	for _, w := range waves {
		total += w.EstimatedDuration
	}

	return &engine.Plan{
		ID:                uuid.New().String(),
		DeploymentID:      deploymentID,
		StateVersion:      stateVersion,
		CreatedAt:         time.Now(),
		Summary:           summary,
		ExecutionWaves:    waves,
		EstimatedDuration: total,
	}, nil
}

// splitByPhase separates every change into its deletion-phase half (plain
// Deletes, plus a Replace's delete half) and its creation-phase half (plain
// Create/Update, plus a Replace's create half). NoOp changes are dropped:
// they carry nothing for the Execution Engine to do.
func splitByPhase(changes []engine.ResourceChange) (deletionPhase, creationPhase []engine.ResourceChange) {
	for _, c := range changes {
		switch c.Kind {
		case engine.ChangeNoOp:
			continue
		case engine.ChangeDelete:
			deletionPhase = append(deletionPhase, c)
		case engine.ChangeReplace:
			del, create := expandReplace(c)
			deletionPhase = append(deletionPhase, del)
			creationPhase = append(creationPhase, create)
		default:
			creationPhase = append(creationPhase, c)
		}
	}
	return deletionPhase, creationPhase
}

// expandReplace splits a Replace change into its deletion-phase half (Phase
// 0, carrying the prior record so the Execution Engine can tear down the
// existing backend object) and its creation-phase half (Phase 1, carrying
// the desired Resource so it can be recreated).
func expandReplace(c engine.ResourceChange) (deleteHalf, createHalf engine.ResourceChange) {
	deleteHalf = engine.ResourceChange{
		Kind:       engine.ChangeReplace,
		ResourceID: c.ResourceID,
		TypeID:     c.TypeID,
		Before:     c.Before,
		Phase:      0,
	}
	createHalf = engine.ResourceChange{
		Kind:       engine.ChangeReplace,
		Resource:   c.Resource,
		ResourceID: c.ResourceID,
		TypeID:     c.TypeID,
		Before:     c.Before,
		Diff:       c.Diff,
		Phase:      1,
	}
	return deleteHalf, createHalf
}

// buildRecordGraph builds a dependency DAG directly from persisted
// ResourceRecords, for use when no live Resource values exist (the
// delete-only side of a diff).
func buildRecordGraph(records map[string]engine.ResourceRecord) (*dag.Graph, error) {
	b := dag.NewBuilder()
	for id := range records {
		b.AddNode(id)
	}
	for id, record := range records {
		for _, ref := range record.Dependencies {
			b.AddEdge(id, ref.TargetID)
		}
	}
	return b.Build()
}

// assignWaves maps g's topological levels onto the subset of changes whose
// ResourceID appears in g, preserving level order.
func assignWaves(g *dag.Graph, changes []engine.ResourceChange) [][]engine.ResourceChange {
	byID := make(map[string]engine.ResourceChange, len(changes))
	for _, c := range changes {
		byID[c.ResourceID] = c
	}

	levels := g.Levels()
	waves := make([][]engine.ResourceChange, 0, len(levels))
	for _, ids := range levels {
		var waveChanges []engine.ResourceChange
		for _, id := range ids {
			if c, ok := byID[id]; ok {
				waveChanges = append(waveChanges, c)
			}
		}
		waves = append(waves, waveChanges)
	}
	return waves
}

func summarize(changes []engine.ResourceChange) engine.PlanSummary {
	var s engine.PlanSummary
	for _, c := range changes {
		switch c.Kind {
		case engine.ChangeCreate:
			s.Create++
		case engine.ChangeUpdate:
			s.Update++
		case engine.ChangeDelete:
			s.Delete++
		case engine.ChangeReplace:
			s.Replace++
		case engine.ChangeNoOp:
			s.NoOp++
		}
	}
	return s
}
