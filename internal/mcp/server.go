package mcp

import (
	"context"
	"log/slog"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dohr-michael/crew/internal/tools"
)

// NewMCPServer creates an MCP server exposing tools from the registry.
// A non-empty filter is a comma-separated list of tool names; only those
// are exposed.
func NewMCPServer(registry *tools.Registry, filter string) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "crew",
		Version: "0.1.0",
	}, nil)

	keep := filterSet(filter)

	for _, name := range registry.ToolNames() {
		if keep != nil {
			if _, ok := keep[name]; !ok {
				continue
			}
		}

		spec := registry.Spec(name)
		if spec == nil {
			continue
		}

		mcpTool := toolSpecToMCPTool(spec)

		invokable := registry.Tool(name)
		toolName := name

		server.AddTool(mcpTool, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			args := string(req.Params.Arguments)
			result, err := invokable.InvokableRun(ctx, args)
			if err != nil {
				slog.Debug("mcp tool error", "tool", toolName, "error", err)
				return &mcpsdk.CallToolResult{
					IsError: true,
					Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
				}, nil
			}
			return &mcpsdk.CallToolResult{
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: result}},
			}, nil
		})

		slog.Debug("mcp tool registered", "tool", name)
	}

	return server
}

// filterSet parses the comma-separated filter. Nil means expose all.
func filterSet(filter string) map[string]struct{} {
	if filter == "" {
		return nil
	}
	set := make(map[string]struct{})
	for _, name := range strings.Split(filter, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			set[name] = struct{}{}
		}
	}
	return set
}
