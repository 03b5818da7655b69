package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/crew/internal/config"
	"github.com/dohr-michael/crew/internal/storage"
	"github.com/dohr-michael/crew/internal/tasks"
)

// NewTasksCommand returns the tasks subcommand.
func NewTasksCommand() *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "Inspect and manage tasks",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List tasks from the daemon status file",
				Action: runTasksList,
			},
			{
				Name:      "show",
				Usage:     "Show task details",
				ArgsUsage: "<task_id>",
				Action:    runTasksShow,
			},
			{
				Name:      "cancel",
				Usage:     "Cancel a running task via the gateway",
				ArgsUsage: "<task_id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "gateway",
						Usage: "Gateway base URL",
					},
				},
				Action: runTasksCancel,
			},
			{
				Name:   "usage",
				Usage:  "Show token usage per task",
				Action: runTasksUsage,
			},
		},
		DefaultCommand: "list",
	}
}

func loadStatus() (*tasks.Snapshot, error) {
	return tasks.LoadSnapshot(config.StatusPath())
}

// The daemon refreshes the status file at least once a minute (janitor
// sweep), so anything older than this means it is down.
const staleAfter = 2 * time.Minute

func runTasksList(_ context.Context, _ *cli.Command) error {
	snap, err := loadStatus()
	if err != nil {
		fmt.Println("No status file found. Is the daemon running?")
		return nil
	}

	if time.Since(snap.Timestamp) > staleAfter {
		fmt.Printf("Status file is stale (last write %s ago). The daemon appears to be down.\n\n",
			time.Since(snap.Timestamp).Truncate(time.Second))
	}

	if len(snap.Workers) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	type row struct {
		id    string
		entry tasks.SnapshotEntry
	}
	rows := make([]row, 0, len(snap.Workers))
	for id, entry := range snap.Workers {
		rows = append(rows, row{id: id, entry: entry})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].entry.CreatedAt.Equal(rows[j].entry.CreatedAt) {
			return rows[i].id < rows[j].id
		}
		return rows[i].entry.CreatedAt.Before(rows[j].entry.CreatedAt)
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tITER\tAGE\tLABEL")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			r.id,
			r.entry.Status,
			r.entry.Iteration,
			entryAge(r.entry),
			r.entry.Label,
		)
	}
	return w.Flush()
}

// entryAge is runtime so far for live tasks and total runtime for
// finished ones.
func entryAge(e tasks.SnapshotEntry) string {
	if e.CompletedAt != nil {
		return e.CompletedAt.Sub(e.CreatedAt).Truncate(time.Second).String()
	}
	return time.Since(e.CreatedAt).Truncate(time.Second).String()
}

func runTasksShow(_ context.Context, cmd *cli.Command) error {
	taskID := cmd.Args().First()
	if taskID == "" {
		return fmt.Errorf("usage: crew tasks show <task_id>")
	}

	snap, err := loadStatus()
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}

	entry, ok := snap.Workers[taskID]
	if !ok {
		return fmt.Errorf("task %s not found", taskID)
	}

	fmt.Printf("ID:            %s\n", taskID)
	fmt.Printf("Label:         %s\n", entry.Label)
	fmt.Printf("Status:        %s\n", entry.Status)
	if entry.Profile != "" {
		fmt.Printf("Profile:       %s\n", entry.Profile)
	}
	fmt.Printf("Iteration:     %d\n", entry.Iteration)
	fmt.Printf("Created:       %s\n", entry.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Last activity: %s\n", entry.LastActivity.Format("2006-01-02 15:04:05"))
	if entry.CompletedAt != nil {
		fmt.Printf("Completed:     %s\n", entry.CompletedAt.Format("2006-01-02 15:04:05"))
	}

	if entry.Task != "" {
		fmt.Printf("\nTask:\n%s\n", entry.Task)
	}
	if entry.Result != "" {
		fmt.Printf("\nResult:\n%s\n", entry.Result)
	}
	if entry.Error != "" {
		fmt.Printf("\nError: %s\n", entry.Error)
	}

	return nil
}

func runTasksCancel(ctx context.Context, cmd *cli.Command) error {
	taskID := cmd.Args().First()
	if taskID == "" {
		return fmt.Errorf("usage: crew tasks cancel <task_id>")
	}

	base := cmd.String("gateway")
	if base == "" {
		base = gatewayBaseURL(loadConfig(cmd))
	}

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/api/tasks/%s", base, taskID)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("reach gateway: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		fmt.Printf("Task %s cancelled.\n", taskID)
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("task %s not found", taskID)
	case http.StatusConflict:
		fmt.Printf("Task %s is already finished.\n", taskID)
		return nil
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("cancel failed: %s: %s", resp.Status, body)
	}
}

func runTasksUsage(_ context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)

	ledger, err := storage.OpenUsageLedger(cfg.Storage.UsageDB, nil)
	if err != nil {
		return fmt.Errorf("open usage ledger: %w", err)
	}
	defer ledger.Close()

	perTask, err := ledger.PerTask()
	if err != nil {
		return fmt.Errorf("query usage: %w", err)
	}

	if len(perTask) == 0 {
		fmt.Println("No usage recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tCALLS\tPROMPT\tCOMPLETION")
	for _, u := range perTask {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", u.TaskID, u.Calls, u.PromptTokens, u.CompletionTokens)
	}

	total, err := ledger.GrandTotal()
	if err == nil {
		fmt.Fprintf(w, "total\t%d\t%d\t%d\n", total.Calls, total.PromptTokens, total.CompletionTokens)
	}
	return w.Flush()
}
