package tools

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// echoTool is a minimal tool double that records its last arguments.
type echoTool struct {
	name     string
	lastArgs string
	failInfo bool
}

func (e *echoTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	if e.failInfo {
		return nil, fmt.Errorf("no info")
	}
	return &schema.ToolInfo{Name: e.name, Desc: "test tool"}, nil
}

func (e *echoTool) InvokableRun(_ context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	e.lastArgs = argumentsInJSON
	return `{"ok":true}`, nil
}

var _ tool.InvokableTool = (*echoTool)(nil)

func testManifest(name string) *Manifest {
	return &Manifest{
		Name:        name,
		Description: "test bundle",
		Tools: []ToolSpec{
			{
				Name:        name,
				Description: "test tool",
				Parameters: map[string]ParamSpec{
					"value": {Type: "string", Description: "a value", Required: true},
				},
			},
		},
	}
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	e := &echoTool{name: "alpha"}
	if err := r.Register("alpha", e, testManifest("alpha")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if r.Tool("alpha") == nil {
		t.Error("Tool(alpha) = nil, want registered tool")
	}
	if r.Manifest("alpha") == nil {
		t.Error("Manifest(alpha) = nil, want manifest")
	}
	if spec := r.Spec("alpha"); spec == nil || spec.Name != "alpha" {
		t.Errorf("Spec(alpha) = %+v, want spec named alpha", spec)
	}
	if r.Tool("missing") != nil {
		t.Error("Tool(missing) should be nil")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("alpha", &echoTool{name: "alpha"}, testManifest("alpha")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := r.Register("alpha", &echoTool{name: "alpha"}, testManifest("alpha"))
	if err == nil {
		t.Fatal("duplicate Register should fail")
	}
	if !strings.Contains(err.Error(), "already registered") {
		t.Errorf("error = %v, want already registered", err)
	}
}

func TestToolNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(name, &echoTool{name: name}, testManifest(name)); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	names := r.ToolNames()
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("ToolNames() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("ToolNames()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestToolsByNamesSkipsUnknown(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("alpha", &echoTool{name: "alpha"}, testManifest("alpha")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got := r.ToolsByNames([]string{"alpha", "ghost"})
	if len(got) != 1 {
		t.Errorf("ToolsByNames returned %d tools, want 1", len(got))
	}
}

func TestDefinitionsNilSelectsAll(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"beta", "alpha"} {
		if err := r.Register(name, &echoTool{name: name}, testManifest(name)); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	defs := r.Definitions(context.Background(), nil)
	if len(defs) != 2 {
		t.Fatalf("Definitions(nil) returned %d, want 2", len(defs))
	}
	if defs[0].Name != "alpha" || defs[1].Name != "beta" {
		t.Errorf("Definitions(nil) order = %q, %q, want alpha, beta", defs[0].Name, defs[1].Name)
	}
}

func TestDefinitionsEmptySelectsNone(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("alpha", &echoTool{name: "alpha"}, testManifest("alpha")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if defs := r.Definitions(context.Background(), []string{}); len(defs) != 0 {
		t.Errorf("Definitions(empty) returned %d, want 0", len(defs))
	}
}

func TestDefinitionsFiltersAndSkips(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("alpha", &echoTool{name: "alpha"}, testManifest("alpha")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("broken", &echoTool{name: "broken", failInfo: true}, testManifest("broken")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	defs := r.Definitions(context.Background(), []string{"alpha", "broken", "ghost"})
	if len(defs) != 1 {
		t.Fatalf("Definitions returned %d, want 1", len(defs))
	}
	if defs[0].Name != "alpha" {
		t.Errorf("Definitions[0].Name = %q, want alpha", defs[0].Name)
	}
}

func TestExecuteRoundTrip(t *testing.T) {
	r := NewRegistry()
	e := &echoTool{name: "alpha"}
	if err := r.Register("alpha", e, testManifest("alpha")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	result, err := r.Execute(context.Background(), "alpha", `{"value": "hi"}`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != `{"ok":true}` {
		t.Errorf("Execute result = %q", result)
	}
	if e.lastArgs != `{"value": "hi"}` {
		t.Errorf("tool received args %q", e.lastArgs)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "ghost", `{}`)
	if err == nil {
		t.Fatal("Execute(ghost) should fail")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestSpecToToolInfo(t *testing.T) {
	spec := &ToolSpec{
		Name:        "sample",
		Description: "A sample tool",
		Parameters: map[string]ParamSpec{
			"query": {Type: "string", Description: "the query", Required: true},
		},
	}

	info := specToToolInfo(spec)
	if info.Name != "sample" {
		t.Errorf("Name = %q, want sample", info.Name)
	}
	if info.Desc != "A sample tool" {
		t.Errorf("Desc = %q", info.Desc)
	}
	if info.ParamsOneOf == nil {
		t.Error("ParamsOneOf should be set when parameters exist")
	}
}

func TestSpecToToolInfoNoParams(t *testing.T) {
	info := specToToolInfo(&ToolSpec{Name: "bare", Description: "no params"})
	if info.ParamsOneOf != nil {
		t.Error("ParamsOneOf should be nil without parameters")
	}
}

func TestParamToInfoNested(t *testing.T) {
	p := ParamSpec{
		Type:        "array",
		Description: "task list",
		Required:    true,
		Items: &ParamSpec{
			Type: "object",
			Properties: map[string]ParamSpec{
				"task":  {Type: "string", Description: "the task", Required: true},
				"label": {Type: "string", Description: "a label"},
			},
		},
	}

	info := paramToInfo(p)
	if info.Type != schema.Array {
		t.Errorf("Type = %v, want Array", info.Type)
	}
	if !info.Required {
		t.Error("Required should carry through")
	}
	if info.ElemInfo == nil {
		t.Fatal("ElemInfo should be set for array params")
	}
	if info.ElemInfo.Type != schema.Object {
		t.Errorf("ElemInfo.Type = %v, want Object", info.ElemInfo.Type)
	}
	task, ok := info.ElemInfo.SubParams["task"]
	if !ok {
		t.Fatal("SubParams missing task")
	}
	if !task.Required {
		t.Error("task sub-param should be required")
	}
	if _, ok := info.ElemInfo.SubParams["label"]; !ok {
		t.Error("SubParams missing label")
	}
}

func TestParamTypeToDataType(t *testing.T) {
	cases := []struct {
		in   string
		want schema.DataType
	}{
		{"string", schema.String},
		{"number", schema.Number},
		{"integer", schema.Integer},
		{"boolean", schema.Boolean},
		{"array", schema.Array},
		{"object", schema.Object},
		{"mystery", schema.String},
	}
	for _, c := range cases {
		if got := paramTypeToDataType(c.in); got != c.want {
			t.Errorf("paramTypeToDataType(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
