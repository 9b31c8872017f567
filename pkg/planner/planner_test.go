package planner

import (
	"testing"

	"github.com/opnforge/opnforge/pkg/engine"
	"github.com/opnforge/opnforge/pkg/registry"
)

const widgetSchema = `
name: string
tag:  int
`

type widget struct {
	engine.BaseResource
}

func (w *widget) Validate() engine.ValidationResult { return engine.ValidationResult{OK: true} }
func (w *widget) ToAPIPayload() (engine.DriverRequest, error) {
	return engine.DriverRequest{TypeID: w.TypeID(), Name: w.Name(), Properties: w.Properties()}, nil
}
func (w *widget) FromAPIResponse(resp engine.DriverResponse) error {
	w.SetBackendUUID(resp.UUID)
	w.SetOutputs(resp.Outputs)
	return nil
}
func (w *widget) RequiredPermissions() []string        { return nil }
func (w *widget) ReplaceForcingProperties() []string    { return nil }
func (w *widget) DependencyRefs() []engine.Reference {
	return engine.ExtractTemplateRefs(w.Properties())
}

func widgetFactory(name string, props map[string]interface{}) engine.Resource {
	return &widget{BaseResource: engine.NewBaseResource("test:widget", name, props)}
}

// replaceWidget is identical to widget except its tag is replace-forcing,
// used to exercise ComputeDiff/BuildPlan's Replace classification.
type replaceWidget struct {
	engine.BaseResource
}

func (w *replaceWidget) Validate() engine.ValidationResult { return engine.ValidationResult{OK: true} }
func (w *replaceWidget) ToAPIPayload() (engine.DriverRequest, error) {
	return engine.DriverRequest{TypeID: w.TypeID(), Name: w.Name(), Properties: w.Properties()}, nil
}
func (w *replaceWidget) FromAPIResponse(resp engine.DriverResponse) error {
	w.SetBackendUUID(resp.UUID)
	w.SetOutputs(resp.Outputs)
	return nil
}
func (w *replaceWidget) RequiredPermissions() []string     { return nil }
func (w *replaceWidget) ReplaceForcingProperties() []string { return []string{"tag"} }
func (w *replaceWidget) DependencyRefs() []engine.Reference {
	return engine.ExtractTemplateRefs(w.Properties())
}

func replaceWidgetFactory(name string, props map[string]interface{}) engine.Resource {
	return &replaceWidget{BaseResource: engine.NewBaseResource("test:replacewidget", name, props)}
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	if err := r.Register("test:widget", widgetSchema, widgetFactory, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("test:replacewidget", widgetSchema, replaceWidgetFactory, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	return r
}

func TestComputeDiff_CreateUpdateNoOpDelete(t *testing.T) {
	r := newTestRegistry(t)
	unchanged, err := r.Construct("test:widget", "unchanged", map[string]interface{}{"name": "unchanged", "tag": float64(1)})
	if err != nil {
		t.Fatalf("construct unchanged: %v", err)
	}
	changed, err := r.Construct("test:widget", "changed", map[string]interface{}{"name": "changed", "tag": float64(99)})
	if err != nil {
		t.Fatalf("construct changed: %v", err)
	}
	created, err := r.Construct("test:widget", "brandnew", map[string]interface{}{"name": "brandnew", "tag": float64(5)})
	if err != nil {
		t.Fatalf("construct brandnew: %v", err)
	}

	current := map[string]engine.ResourceRecord{
		"test:widget:unchanged": {
			TypeID: "test:widget", Name: "unchanged",
			Properties: map[string]interface{}{"name": "unchanged", "tag": float64(1)},
		},
		"test:widget:changed": {
			TypeID: "test:widget", Name: "changed",
			Properties: map[string]interface{}{"name": "changed", "tag": float64(1)},
		},
		"test:widget:gone": {
			TypeID: "test:widget", Name: "gone",
			Properties: map[string]interface{}{"name": "gone", "tag": float64(2)},
		},
	}

	p := New(r)
	changes, err := p.ComputeDiff([]engine.Resource{unchanged, changed, created}, current)
	if err != nil {
		t.Fatalf("compute diff: %v", err)
	}

	byID := map[string]engine.ResourceChange{}
	for _, c := range changes {
		byID[c.ResourceID] = c
	}

	if byID["test:widget:unchanged"].Kind != engine.ChangeNoOp {
		t.Errorf("expected unchanged widget to be NoOp, got %v", byID["test:widget:unchanged"].Kind)
	}
	if byID["test:widget:changed"].Kind != engine.ChangeUpdate {
		t.Errorf("expected changed widget to be Update, got %v", byID["test:widget:changed"].Kind)
	}
	if byID["test:widget:brandnew"].Kind != engine.ChangeCreate {
		t.Errorf("expected brandnew widget to be Create, got %v", byID["test:widget:brandnew"].Kind)
	}
	if byID["test:widget:gone"].Kind != engine.ChangeDelete {
		t.Errorf("expected gone widget to be Delete, got %v", byID["test:widget:gone"].Kind)
	}
}

func TestBuildPlan_OrdersCreatesForwardAndDeletesReverse(t *testing.T) {
	r := newTestRegistry(t)
	base, err := r.Construct("test:widget", "base", map[string]interface{}{"name": "base", "tag": float64(1)})
	if err != nil {
		t.Fatalf("construct base: %v", err)
	}
	dependent, err := r.Construct("test:widget", "dependent", map[string]interface{}{"name": "dependent", "tag": float64(2)})
	if err != nil {
		t.Fatalf("construct dependent: %v", err)
	}
	dependent.SetDependencies([]engine.Reference{{TargetID: base.ID(), Kind: engine.DependencyHard}})

	p := New(r)
	changes, err := p.ComputeDiff([]engine.Resource{base, dependent}, map[string]engine.ResourceRecord{})
	if err != nil {
		t.Fatalf("compute diff: %v", err)
	}

	plan, err := p.BuildPlan("dep-1", 1, []engine.Resource{base, dependent}, map[string]engine.ResourceRecord{}, changes)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if plan.Summary.Create != 2 {
		t.Fatalf("expected 2 creates, got %+v", plan.Summary)
	}
	if len(plan.ExecutionWaves) != 2 {
		t.Fatalf("expected 2 waves, got %d", len(plan.ExecutionWaves))
	}
	if plan.ExecutionWaves[0].Changes[0].ResourceID != base.ID() {
		t.Errorf("expected base in wave 0, got %v", plan.ExecutionWaves[0].Changes)
	}
	if plan.ExecutionWaves[1].Changes[0].ResourceID != dependent.ID() {
		t.Errorf("expected dependent in wave 1, got %v", plan.ExecutionWaves[1].Changes)
	}
	if plan.EstimatedDuration != 2*perResourceBudget {
		t.Errorf("expected estimated duration %v, got %v", 2*perResourceBudget, plan.EstimatedDuration)
	}
}

func TestBuildPlan_DeletesInReverseDependencyOrder(t *testing.T) {
	r := newTestRegistry(t)
	p := New(r)

	current := map[string]engine.ResourceRecord{
		"test:widget:base": {
			TypeID: "test:widget", Name: "base",
			Properties: map[string]interface{}{"name": "base", "tag": float64(1)},
		},
		"test:widget:dependent": {
			TypeID: "test:widget", Name: "dependent",
			Properties:   map[string]interface{}{"name": "dependent", "tag": float64(2)},
			Dependencies: []engine.Reference{{TargetID: "test:widget:base", Kind: engine.DependencyHard}},
		},
	}

	changes, err := p.ComputeDiff(nil, current)
	if err != nil {
		t.Fatalf("compute diff: %v", err)
	}
	plan, err := p.BuildPlan("dep-1", 1, nil, current, changes)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if plan.Summary.Delete != 2 {
		t.Fatalf("expected 2 deletes, got %+v", plan.Summary)
	}
	if len(plan.ExecutionWaves) != 2 {
		t.Fatalf("expected 2 waves, got %d", len(plan.ExecutionWaves))
	}
	// dependent must be torn down before base.
	if plan.ExecutionWaves[0].Changes[0].ResourceID != "test:widget:dependent" {
		t.Errorf("expected dependent deleted first, got %v", plan.ExecutionWaves[0].Changes)
	}
	if plan.ExecutionWaves[1].Changes[0].ResourceID != "test:widget:base" {
		t.Errorf("expected base deleted last, got %v", plan.ExecutionWaves[1].Changes)
	}
}

// TestComputeDiff_ReplaceOnForcingPropertyChange covers seeded scenario S2:
// a difference in a replace-forcing property (tag, for test:replacewidget)
// classifies as Replace rather than Update.
func TestComputeDiff_ReplaceOnForcingPropertyChange(t *testing.T) {
	r := newTestRegistry(t)
	changed, err := r.Construct("test:replacewidget", "changed", map[string]interface{}{"name": "changed", "tag": float64(99)})
	if err != nil {
		t.Fatalf("construct changed: %v", err)
	}

	current := map[string]engine.ResourceRecord{
		"test:replacewidget:changed": {
			TypeID: "test:replacewidget", Name: "changed",
			Properties: map[string]interface{}{"name": "changed", "tag": float64(1)},
		},
	}

	p := New(r)
	changes, err := p.ComputeDiff([]engine.Resource{changed}, current)
	if err != nil {
		t.Fatalf("compute diff: %v", err)
	}
	if len(changes) != 1 || changes[0].Kind != engine.ChangeReplace {
		t.Fatalf("expected a single Replace change, got %+v", changes)
	}
}

// TestBuildPlan_ExpandsReplaceIntoDeleteThenCreatePhases covers §4.4: a
// Replace expands into a phase-0 delete half and a phase-1 create half, with
// every delete-phase wave preceding every create-phase wave.
func TestBuildPlan_ExpandsReplaceIntoDeleteThenCreatePhases(t *testing.T) {
	r := newTestRegistry(t)
	changed, err := r.Construct("test:replacewidget", "changed", map[string]interface{}{"name": "changed", "tag": float64(99)})
	if err != nil {
		t.Fatalf("construct changed: %v", err)
	}

	current := map[string]engine.ResourceRecord{
		"test:replacewidget:changed": {
			TypeID: "test:replacewidget", Name: "changed",
			Properties: map[string]interface{}{"name": "changed", "tag": float64(1)},
		},
	}

	p := New(r)
	changes, err := p.ComputeDiff([]engine.Resource{changed}, current)
	if err != nil {
		t.Fatalf("compute diff: %v", err)
	}
	if changes[0].Kind != engine.ChangeReplace {
		t.Fatalf("expected Replace, got %v", changes[0].Kind)
	}

	plan, err := p.BuildPlan("dep-1", 1, []engine.Resource{changed}, current, changes)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if plan.Summary.Replace != 1 {
		t.Fatalf("expected 1 replace in summary, got %+v", plan.Summary)
	}
	if len(plan.ExecutionWaves) != 2 {
		t.Fatalf("expected 2 waves (delete phase, create phase), got %d", len(plan.ExecutionWaves))
	}

	deleteWave, createWave := plan.ExecutionWaves[0], plan.ExecutionWaves[1]
	if len(deleteWave.Changes) != 1 || deleteWave.Changes[0].Kind != engine.ChangeReplace || deleteWave.Changes[0].Phase != 0 {
		t.Errorf("expected phase-0 delete half first, got %+v", deleteWave.Changes)
	}
	if len(createWave.Changes) != 1 || createWave.Changes[0].Kind != engine.ChangeReplace || createWave.Changes[0].Phase != 1 {
		t.Errorf("expected phase-1 create half second, got %+v", createWave.Changes)
	}
	if deleteWave.Changes[0].ResourceID != "test:replacewidget:changed" || createWave.Changes[0].ResourceID != "test:replacewidget:changed" {
		t.Errorf("expected both halves to share the resource id, got %+v / %+v", deleteWave.Changes, createWave.Changes)
	}
}
