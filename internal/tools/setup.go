package tools

import (
	"context"
	"log/slog"

	"github.com/cloudwego/eino/components/tool"

	"github.com/dohr-michael/crew/internal/config"
	"github.com/dohr-michael/crew/internal/tasks"
)

// SetupWorkerRegistry builds the tool set available to worker loops: shell
// exec, workspace file access and web search and fetch. Profiles narrow
// the set per task through the registry's Definitions filter.
func SetupWorkerRegistry(ctx context.Context, cfg *config.Config) *Registry {
	r := NewRegistry()

	if !cfg.Tools.Exec.Disabled {
		register(r, "exec", NewExecTool(cfg.Tools.Exec.Timeout.Duration()), ExecManifest())
	}
	register(r, "read_file", NewReadFileTool(), ReadFileManifest())
	register(r, "write_file", NewWriteFileTool(), WriteFileManifest())
	register(r, "list_dir", NewListDirTool(), ListDirManifest())

	if search, err := NewWebSearchTool(ctx, cfg.Tools.Web); err != nil {
		slog.Warn("web_search unavailable", "error", err)
	} else {
		register(r, "web_search", search, WebSearchManifest())
	}
	register(r, "web_fetch", NewWebFetchTool(cfg.Tools.Web), WebFetchManifest())

	return r
}

// SetupOrchestrationRegistry builds the agent-management tool set exposed
// to the primary surface: gateway chat and MCP clients.
func SetupOrchestrationRegistry(orc Conductor, registry *tasks.Registry, profiles map[string]tasks.Profile, origin tasks.Origin) *Registry {
	r := NewRegistry()

	register(r, "spawn_agent", NewSpawnAgentTool(orc, profiles, origin), SpawnAgentManifest())
	register(r, "cancel_agent", NewCancelAgentTool(orc, registry), CancelAgentManifest())
	register(r, "list_agents", NewListAgentsTool(registry), ListAgentsManifest())
	register(r, "get_agent_result", NewGetAgentResultTool(registry), GetAgentResultManifest())
	register(r, "await_agent", NewAwaitAgentTool(orc), AwaitAgentManifest())
	register(r, "parallel_group", NewParallelGroupTool(orc, origin), ParallelGroupManifest())
	register(r, "await_group", NewAwaitGroupTool(orc), AwaitGroupManifest())
	register(r, "spawn_chain", NewSpawnChainTool(orc, origin), SpawnChainManifest())
	register(r, "wait_all", NewWaitAllTool(orc), WaitAllManifest())

	return r
}

func register(r *Registry, name string, t tool.InvokableTool, m *Manifest) {
	if err := r.Register(name, t, m); err != nil {
		slog.Warn("tool registration failed", "tool", name, "error", err)
	}
}
