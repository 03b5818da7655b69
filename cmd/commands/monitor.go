package commands

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/crew/clients/monitor"
	"github.com/dohr-michael/crew/internal/config"
)

// NewMonitorCommand returns the monitor subcommand.
func NewMonitorCommand() *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "Watch tasks in a live table",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "gateway",
				Usage: "Gateway base URL for the live event feed",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Status file poll interval",
				Value: 2 * time.Second,
			},
		},
		Action: runMonitor,
	}
}

func runMonitor(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)

	gatewayURL := cmd.String("gateway")
	if gatewayURL == "" {
		gatewayURL = gatewayBaseURL(cfg)
	}

	return monitor.Run(ctx, monitor.Options{
		SnapshotPath: config.StatusPath(),
		GatewayURL:   gatewayURL,
		PollInterval: cmd.Duration("interval"),
	})
}
