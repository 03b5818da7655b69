package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/crew/internal/config"
	"github.com/dohr-michael/crew/internal/events"
	"github.com/dohr-michael/crew/internal/gateway"
	"github.com/dohr-michael/crew/internal/models"
	"github.com/dohr-michael/crew/internal/orchestrator"
	"github.com/dohr-michael/crew/internal/storage"
	"github.com/dohr-michael/crew/internal/tasks"
	"github.com/dohr-michael/crew/internal/tools"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the crew daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runServe,
	}
}

func runServe(_ context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)
	setupLogging(cmd, cfg)

	// CLI flags override config
	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = cmd.Int("port")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := ensureDirs(cfg); err != nil {
		return err
	}

	// Event bus
	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	// Persistence: token usage ledger + per-task event log
	ledger, err := storage.OpenUsageLedger(cfg.Storage.UsageDB, bus)
	if err != nil {
		return fmt.Errorf("open usage ledger: %w", err)
	}
	defer ledger.Close()

	taskLog := storage.NewTaskLogger(cfg.Storage.TaskLogDir, bus)
	defer taskLog.Close()

	// Task registry + status snapshot
	registry := tasks.NewRegistry(cfg.Orchestrator.Retention.Duration())
	snapshot := tasks.NewSnapshotWriter(config.StatusPath(), registry)

	// Worker profiles
	profiles, err := tasks.LoadProfiles(config.ProfilesPath())
	if err != nil {
		slog.Warn("profiles not loaded", "path", config.ProfilesPath(), "error", err)
		profiles = nil
	}

	// Models + worker tools
	modelRegistry := models.NewRegistry(cfg.Models)
	chat := models.NewChat(modelRegistry, bus)
	workerTools := tools.SetupWorkerRegistry(ctx, cfg)
	slog.Info("worker tools loaded", "count", len(workerTools.ToolNames()))

	// Orchestrator
	orc := orchestrator.New(orchestrator.Config{
		Registry:      registry,
		Provider:      chat,
		Tools:         workerTools,
		Notifier:      orchestrator.NewBusNotifier(bus),
		Bus:           bus,
		Snapshot:      snapshot,
		Profiles:      profiles,
		MaxIterations: cfg.Orchestrator.MaxIterations,
		Workspace:     cfg.Orchestrator.Workspace,
		SystemPrompt:  cfg.Orchestrator.SystemPrompt,
	})
	orc.Start()
	defer orc.Stop()

	// Retention janitor
	janitor, err := tasks.NewJanitor(registry, snapshot)
	if err != nil {
		return fmt.Errorf("init janitor: %w", err)
	}
	go janitor.Run(ctx)

	// Fresh status file so CLI reads work before the first spawn.
	if err := snapshot.Write(); err != nil {
		slog.Warn("initial snapshot write failed", "error", err)
	}

	// Gateway server
	handler := gateway.NewTaskHandler(orc, registry, tasks.Origin{Channel: "gateway", ChatID: "api"})
	server := gateway.NewServer(bus, handler, cfg.Gateway.Host, cfg.Gateway.Port)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for signal or error
	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func ensureDirs(cfg *config.Config) error {
	for _, dir := range []string{config.CrewPath(), cfg.Orchestrator.Workspace, cfg.Storage.TaskLogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return nil
}
