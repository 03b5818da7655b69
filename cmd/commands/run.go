package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	wsclient "github.com/dohr-michael/crew/clients/ws"
	"github.com/dohr-michael/crew/internal/events"
	wsprotocol "github.com/dohr-michael/crew/internal/gateway/ws"
)

// NewRunCommand returns the run subcommand.
func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Spawn a task and wait for its result",
		ArgsUsage: "<description>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "gateway",
				Usage: "Gateway WebSocket URL",
				Value: "ws://127.0.0.1:18720/api/ws",
			},
			&cli.StringFlag{
				Name:    "label",
				Aliases: []string{"l"},
				Usage:   "Short label for the task",
			},
			&cli.StringFlag{
				Name:    "profile",
				Aliases: []string{"p"},
				Usage:   "Worker profile name",
			},
			&cli.IntFlag{
				Name:  "timeout",
				Usage: "Result timeout in seconds",
				Value: 300,
			},
		},
		Action: runRun,
	}
}

func runRun(_ context.Context, cmd *cli.Command) error {
	description := cmd.Args().First()
	if description == "" {
		return fmt.Errorf("usage: crew run <description>")
	}

	timeoutSecs := cmd.Int("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)
	defer cancel()

	client, err := wsclient.Dial(ctx, cmd.String("gateway"))
	if err != nil {
		return fmt.Errorf("connect to gateway: %w", err)
	}
	defer client.Close()

	reqID, err := client.SpawnTask(description, cmd.String("label"), cmd.String("profile"))
	if err != nil {
		return fmt.Errorf("spawn task: %w", err)
	}

	// Read frames until our task reaches a terminal state.
	taskID := ""
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("timeout waiting for result")
			}
			return fmt.Errorf("read frame: %w", err)
		}

		switch frame.Type {
		case wsprotocol.FrameTypeResponse:
			if frame.ID != reqID {
				continue
			}
			if frame.OK == nil || !*frame.OK {
				return fmt.Errorf("spawn rejected: %s", frame.Error)
			}
			var res struct {
				TaskID string `json:"task_id"`
			}
			if err := json.Unmarshal(frame.Payload, &res); err != nil {
				return fmt.Errorf("decode spawn response: %w", err)
			}
			taskID = res.TaskID
			fmt.Fprintf(os.Stderr, "task: %s\n", taskID)

		case wsprotocol.FrameTypeEvent:
			if taskID == "" {
				continue
			}
			var evt events.Event
			if err := json.Unmarshal(frame.Payload, &evt); err != nil {
				continue
			}
			if evt.TaskID != taskID {
				continue
			}

			switch evt.Type {
			case events.EventTaskProgress:
				if p, ok := events.GetTaskProgressPayload(evt); ok {
					fmt.Fprintf(os.Stderr, "working... (iteration %d/%d)\n", p.Iteration, p.MaxIterations)
				}

			case events.EventTaskCompleted:
				result := ""
				if p, ok := events.GetTaskCompletedPayload(evt); ok {
					result = p.Result
				}
				return printResult(result)

			case events.EventTaskFailed:
				if p, ok := events.GetTaskFailedPayload(evt); ok && p.Error != "" {
					return fmt.Errorf("task failed: %s", p.Error)
				}
				return fmt.Errorf("task failed")

			case events.EventTaskCancelled:
				return fmt.Errorf("task cancelled")
			}
		}
	}
}

// printResult renders markdown when stdout is a terminal and prints plain
// text otherwise (pipes, redirects).
func printResult(result string) error {
	if result == "" {
		fmt.Println("(no result)")
		return nil
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err == nil {
			if out, err := r.Render(result); err == nil {
				fmt.Print(out)
				return nil
			}
		}
	}
	fmt.Println(result)
	return nil
}
