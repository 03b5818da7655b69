package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dohr-michael/crew/internal/config"
	"github.com/dohr-michael/crew/internal/events"
	crewmcp "github.com/dohr-michael/crew/internal/mcp"
	"github.com/dohr-michael/crew/internal/models"
	"github.com/dohr-michael/crew/internal/orchestrator"
	"github.com/dohr-michael/crew/internal/tasks"
	"github.com/dohr-michael/crew/internal/tools"
)

// NewMCPServeCommand returns the mcp-serve subcommand.
func NewMCPServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp-serve",
		Usage: "Expose orchestration tools as an MCP server (stdio)",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "filter",
				UsageText: "Comma-separated tool names to expose (empty = all)",
			},
		},
		Action: runMCPServe,
	}
}

func runMCPServe(_ context.Context, cmd *cli.Command) error {
	// stdout carries the MCP stdio transport; logs must go to stderr.
	level := slog.LevelWarn
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	configPath := cmd.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Debug("config not found, using defaults", "path", configPath, "error", err)
		cfg = config.Default()
	}

	ctx := context.Background()

	bus := events.NewBus(64)
	defer bus.Close()

	registry := tasks.NewRegistry(cfg.Orchestrator.Retention.Duration())

	profiles, err := tasks.LoadProfiles(config.ProfilesPath())
	if err != nil {
		slog.Debug("profiles not loaded", "error", err)
		profiles = nil
	}

	modelRegistry := models.NewRegistry(cfg.Models)
	chat := models.NewChat(modelRegistry, bus)
	workerTools := tools.SetupWorkerRegistry(ctx, cfg)

	orc := orchestrator.New(orchestrator.Config{
		Registry:      registry,
		Provider:      chat,
		Tools:         workerTools,
		Notifier:      orchestrator.NewBusNotifier(bus),
		Bus:           bus,
		Profiles:      profiles,
		MaxIterations: cfg.Orchestrator.MaxIterations,
		Workspace:     cfg.Orchestrator.Workspace,
		SystemPrompt:  cfg.Orchestrator.SystemPrompt,
	})
	orc.Start()
	defer orc.Stop()

	origin := tasks.Origin{Channel: "mcp", ChatID: "stdio"}
	toolRegistry := tools.SetupOrchestrationRegistry(orc, registry, profiles, origin)

	filter := cmd.StringArg("filter")

	slog.Debug("starting MCP server", "filter", filter, "tools", len(toolRegistry.ToolNames()))

	server := crewmcp.NewMCPServer(toolRegistry, filter)
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}
