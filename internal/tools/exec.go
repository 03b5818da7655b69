package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/dohr-michael/crew/internal/events"
	"github.com/dohr-michael/crew/internal/tasks"
)

const (
	defaultExecTimeout = 60 * time.Second
	maxExecTimeout     = 300 * time.Second
	maxExecOutput      = 16 * 1024 // runes kept per stream
)

// ExecTool runs shell commands through an embedded POSIX interpreter, so
// pipes, redirects and variables work without a system shell.
type ExecTool struct {
	timeout time.Duration
}

// NewExecTool creates an exec tool. A non-positive timeout falls back to
// the 60s default.
func NewExecTool(timeout time.Duration) *ExecTool {
	if timeout <= 0 {
		timeout = defaultExecTimeout
	}
	return &ExecTool{timeout: timeout}
}

// ExecManifest returns the manifest for the exec tool.
func ExecManifest() *Manifest {
	return &Manifest{
		Name:        "exec",
		Description: "Execute shell commands",
		Tools: []ToolSpec{
			{
				Name:        "exec",
				Description: "Execute a shell command and return its stdout, stderr and exit code. Relative paths resolve against the task workspace.",
				Parameters: map[string]ParamSpec{
					"command": {
						Type:        "string",
						Description: "The shell command to execute",
						Required:    true,
					},
					"working_dir": {
						Type:        "string",
						Description: "Working directory for the command (defaults to the task workspace)",
					},
					"timeout": {
						Type:        "integer",
						Description: "Timeout in seconds (default: 60, max: 300)",
					},
				},
			},
		},
	}
}

type execInput struct {
	Command    string `json:"command"`
	WorkingDir string `json:"working_dir"`
	Timeout    int    `json:"timeout"`
}

type execOutput struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

func (t *ExecTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return specToToolInfo(&ExecManifest().Tools[0]), nil
}

func (t *ExecTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input execInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("exec: parse input: %w", err)
	}
	if input.Command == "" {
		return "", fmt.Errorf("exec: command is required")
	}

	timeout := t.timeout
	if input.Timeout > 0 {
		timeout = time.Duration(input.Timeout) * time.Second
		if timeout > maxExecTimeout {
			timeout = maxExecTimeout
		}
	}

	file, err := syntax.NewParser().Parse(strings.NewReader(input.Command), "")
	if err != nil {
		return "", fmt.Errorf("exec: parse command: %w", err)
	}

	dir := input.WorkingDir
	if dir == "" {
		dir = events.WorkspaceFromContext(ctx)
	}

	var stdout, stderr bytes.Buffer
	runner, err := interp.New(
		interp.Dir(dir),
		interp.StdIO(strings.NewReader(""), &stdout, &stderr),
		interp.Env(expand.ListEnviron(os.Environ()...)),
	)
	if err != nil {
		return "", fmt.Errorf("exec: %w", err)
	}

	slog.Debug("exec: running command",
		"command", tasks.Truncate(input.Command, 120),
		"dir", dir,
		"timeout", timeout)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	runErr := runner.Run(ctx, file)
	if ctx.Err() != nil {
		return "", fmt.Errorf("exec: %w", ctx.Err())
	}

	exitCode := 0
	if runErr != nil {
		status, ok := interp.IsExitStatus(runErr)
		if !ok {
			return "", fmt.Errorf("exec: %w", runErr)
		}
		exitCode = int(status)
	}

	result := execOutput{
		Stdout:   tasks.Truncate(stdout.String(), maxExecOutput),
		Stderr:   tasks.Truncate(stderr.String(), maxExecOutput),
		ExitCode: exitCode,
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("exec: marshal result: %w", err)
	}
	return string(out), nil
}

var _ tool.InvokableTool = (*ExecTool)(nil)
