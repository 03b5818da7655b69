package tools

import (
	"context"
	"slices"
	"testing"

	"github.com/dohr-michael/crew/internal/config"
	"github.com/dohr-michael/crew/internal/tasks"
)

func TestSetupWorkerRegistry(t *testing.T) {
	cfg := &config.Config{}
	// Google without keys cannot start, so web_search is skipped and the
	// rest of the registry still comes up.
	cfg.Tools.Web.Provider = "google"

	r := SetupWorkerRegistry(context.Background(), cfg)
	names := r.ToolNames()
	for _, want := range []string{"exec", "read_file", "write_file", "list_dir", "web_fetch"} {
		if !slices.Contains(names, want) {
			t.Errorf("registry missing %s (have %v)", want, names)
		}
	}
	if slices.Contains(names, "web_search") {
		t.Error("web_search should be skipped when the provider cannot start")
	}
}

func TestSetupWorkerRegistryExecDisabled(t *testing.T) {
	cfg := &config.Config{}
	cfg.Tools.Exec.Disabled = true
	cfg.Tools.Web.Provider = "google"

	r := SetupWorkerRegistry(context.Background(), cfg)
	if slices.Contains(r.ToolNames(), "exec") {
		t.Error("exec should respect the disabled flag")
	}
}

func TestSetupOrchestrationRegistry(t *testing.T) {
	r := SetupOrchestrationRegistry(&fakeConductor{}, tasks.NewRegistry(0), nil, testOrigin)

	names := r.ToolNames()
	want := []string{
		"await_agent", "await_group", "cancel_agent", "get_agent_result",
		"list_agents", "parallel_group", "spawn_agent", "spawn_chain", "wait_all",
	}
	if len(names) != len(want) {
		t.Fatalf("ToolNames() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("ToolNames()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestOrchestrationDefinitions(t *testing.T) {
	r := SetupOrchestrationRegistry(&fakeConductor{}, tasks.NewRegistry(0), nil, testOrigin)
	defs := r.Definitions(context.Background(), nil)
	if len(defs) != 9 {
		t.Fatalf("Definitions returned %d, want 9", len(defs))
	}
	for _, def := range defs {
		if def.Name == "" {
			t.Error("definition missing name")
		}
	}
}
