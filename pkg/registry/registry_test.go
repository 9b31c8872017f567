package registry

import (
	"strings"
	"testing"

	"github.com/opnforge/opnforge/pkg/engine"
)

const testSchema = `
name: string
tag:  int & >=1 & <=4094
`

// testWidget is a minimal Resource used only to exercise the Registry; real
// kinds live under pkg/resources/*.
type testWidget struct {
	engine.BaseResource
}

func (w *testWidget) Validate() engine.ValidationResult {
	return engine.ValidationResult{OK: true}
}

func (w *testWidget) ToAPIPayload() (engine.DriverRequest, error) {
	return engine.DriverRequest{TypeID: w.TypeID(), Name: w.Name(), Properties: w.Properties()}, nil
}

func (w *testWidget) FromAPIResponse(resp engine.DriverResponse) error {
	w.SetBackendUUID(resp.UUID)
	w.SetOutputs(resp.Outputs)
	return nil
}

func (w *testWidget) RequiredPermissions() []string     { return nil }
func (w *testWidget) ReplaceForcingProperties() []string { return nil }
func (w *testWidget) DependencyRefs() []engine.Reference {
	return engine.ExtractTemplateRefs(w.Properties())
}

func testFactory(name string, props map[string]interface{}) engine.Resource {
	return &testWidget{BaseResource: engine.NewBaseResource("test:widget", name, props)}
}

func TestRegister_IdempotentSameSchema(t *testing.T) {
	r := New()
	if err := r.Register("test:widget", testSchema, testFactory, nil); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register("test:widget", testSchema, testFactory, nil); err != nil {
		t.Fatalf("re-register with identical schema should be a no-op, got: %v", err)
	}
}

func TestRegister_ConflictDifferentSchema(t *testing.T) {
	r := New()
	if err := r.Register("test:widget", testSchema, testFactory, nil); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := r.Register("test:widget", `name: string`, testFactory, nil)
	if err == nil {
		t.Fatal("expected error re-registering with a different schema")
	}
	if engine.Code(err) != engine.ErrCodeValidation {
		t.Errorf("expected ValidationError, got %v", engine.Code(err))
	}
}

func TestRegister_InvalidSchemaRejected(t *testing.T) {
	r := New()
	err := r.Register("test:broken", `this is not valid cue {{{`, testFactory, nil)
	if err == nil {
		t.Fatal("expected error for invalid CUE source")
	}
}

func TestRegister_PanicsAfterFreeze(t *testing.T) {
	r := New()
	r.Freeze()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic registering after freeze")
		}
	}()
	_ = r.Register("test:widget", testSchema, testFactory, nil)
}

func TestConstruct_Success(t *testing.T) {
	r := New()
	if err := r.Register("test:widget", testSchema, testFactory, []string{"widget:read"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := r.Construct("test:widget", "alpha", map[string]interface{}{
		"name": "alpha",
		"tag":  float64(10),
	})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if res.LifecycleState() != engine.LifecyclePlanned {
		t.Errorf("expected Planned state after Construct, got %v", res.LifecycleState())
	}
	if res.Metadata().Version != 1 {
		t.Errorf("expected metadata version 1, got %d", res.Metadata().Version)
	}
}

func TestConstruct_SchemaViolation(t *testing.T) {
	r := New()
	if err := r.Register("test:widget", testSchema, testFactory, nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := r.Construct("test:widget", "bad", map[string]interface{}{
		"name": "bad",
		"tag":  float64(5000), // out of [1, 4094]
	})
	if err == nil {
		t.Fatal("expected schema validation error for out-of-range tag")
	}
	if engine.Code(err) != engine.ErrCodeValidation {
		t.Errorf("expected ValidationError, got %v", engine.Code(err))
	}
}

func TestConstruct_UnknownType(t *testing.T) {
	r := New()
	_, err := r.Construct("test:ghost", "x", map[string]interface{}{})
	if err == nil || !strings.Contains(err.Error(), "unknown resource type") {
		t.Fatalf("expected unknown resource type error, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	r := New()
	if err := r.Register("test:widget", testSchema, testFactory, []string{"widget:read"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	schema, err := r.Describe("test:widget")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if schema.TypeID != "test:widget" || len(schema.RequiredPermissions) != 1 {
		t.Errorf("unexpected schema: %+v", schema)
	}
}

func TestListTypes_Sorted(t *testing.T) {
	r := New()
	_ = r.Register("test:zzz", testSchema, testFactory, nil)
	_ = r.Register("test:aaa", testSchema, testFactory, nil)
	types := r.ListTypes()
	if len(types) != 2 || types[0] != "test:aaa" || types[1] != "test:zzz" {
		t.Errorf("expected sorted [test:aaa test:zzz], got %v", types)
	}
}

func TestBuildGraph_AndTopologicalWaves(t *testing.T) {
	r := New()
	if err := r.Register("test:widget", testSchema, testFactory, nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	base, err := r.Construct("test:widget", "base", map[string]interface{}{
		"name": "base", "tag": float64(1),
	})
	if err != nil {
		t.Fatalf("construct base: %v", err)
	}
	dependent, err := r.Construct("test:widget", "dependent", map[string]interface{}{
		"name": "dependent", "tag": float64(2),
	})
	if err != nil {
		t.Fatalf("construct dependent: %v", err)
	}
	dependent.SetDependencies([]engine.Reference{
		{TargetID: base.ID(), Kind: engine.DependencyHard},
	})

	g, err := r.BuildGraph([]engine.Resource{base, dependent})
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	waves := r.TopologicalWaves(g)
	if len(waves) != 2 {
		t.Fatalf("expected 2 waves, got %d: %v", len(waves), waves)
	}
	if waves[0][0] != base.ID() {
		t.Errorf("expected base in wave 0, got %v", waves[0])
	}
	if waves[1][0] != dependent.ID() {
		t.Errorf("expected dependent in wave 1, got %v", waves[1])
	}
}
