package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/crew/internal/orchestrator"
	"github.com/dohr-michael/crew/internal/tasks"
)

// Conductor is the orchestration surface the agent tools drive.
// *orchestrator.Orchestrator satisfies it.
type Conductor interface {
	Spawn(req orchestrator.SpawnRequest) (*tasks.Task, error)
	Cancel(id string) bool
	AwaitTask(ctx context.Context, id string, timeout time.Duration) (*tasks.Task, error)
	CreateGroup(groupID string, specs []orchestrator.TaskSpec, origin tasks.Origin) ([]string, error)
	GroupTasks(groupID string) ([]string, bool)
	AwaitGroup(ctx context.Context, groupID string, timeout time.Duration) (map[string]*tasks.Task, error)
	RunChain(ctx context.Context, specs []orchestrator.TaskSpec, useResult bool, origin tasks.Origin, stepTimeout time.Duration) ([]*tasks.Task, error)
	WaitAll(ctx context.Context, ids []string, mode string, timeout time.Duration) (map[string]*tasks.Task, error)
}

// Preview lengths for list entries, matching what fits on one line of a
// chat reply.
const (
	taskPreviewLen   = 60
	resultPreviewLen = 80
)

// SpawnAgentTool launches a background worker for a task and returns
// immediately with its id.
type SpawnAgentTool struct {
	orc      Conductor
	profiles map[string]tasks.Profile
	origin   tasks.Origin
}

// NewSpawnAgentTool creates a spawn_agent tool. The origin is attached to
// every spawned task so announcements route back to the spawning chat.
func NewSpawnAgentTool(orc Conductor, profiles map[string]tasks.Profile, origin tasks.Origin) *SpawnAgentTool {
	return &SpawnAgentTool{orc: orc, profiles: profiles, origin: origin}
}

// SpawnAgentManifest returns the manifest for the spawn_agent tool.
func SpawnAgentManifest() *Manifest {
	return &Manifest{
		Name:        "spawn_agent",
		Description: "Spawn background agents",
		Tools: []ToolSpec{
			{
				Name:        "spawn_agent",
				Description: "Spawn a background agent to handle a task independently. Returns the task id immediately; the agent announces its result when done. Use await_agent or get_agent_result to collect it.",
				Parameters: map[string]ParamSpec{
					"task": {
						Type:        "string",
						Description: "The task for the agent to complete",
						Required:    true,
					},
					"label": {
						Type:        "string",
						Description: "Short display label for the task (optional)",
					},
					"profile": {
						Type:        "string",
						Description: "Named agent profile to run with (optional)",
					},
					"model": {
						Type:        "string",
						Description: "Model override for this task (optional)",
					},
					"temperature": {
						Type:        "number",
						Description: "Sampling temperature override (optional)",
					},
					"max_tokens": {
						Type:        "integer",
						Description: "Completion token cap override (optional)",
					},
				},
			},
		},
	}
}

type spawnAgentInput struct {
	Task        string   `json:"task"`
	Label       string   `json:"label"`
	Profile     string   `json:"profile"`
	Model       string   `json:"model"`
	Temperature *float32 `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
}

// overrides builds the inline profile carried by the request, nil when no
// override field is set.
func (in *spawnAgentInput) overrides() *tasks.Profile {
	if in.Model == "" && in.Temperature == nil && in.MaxTokens <= 0 {
		return nil
	}
	return &tasks.Profile{
		Model:       in.Model,
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
	}
}

func (t *SpawnAgentTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return specToToolInfo(&SpawnAgentManifest().Tools[0]), nil
}

func (t *SpawnAgentTool) InvokableRun(_ context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input spawnAgentInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("spawn_agent: parse input: %w", err)
	}
	if input.Task == "" {
		return "", fmt.Errorf("spawn_agent: task is required")
	}

	task, err := t.orc.Spawn(orchestrator.SpawnRequest{
		Description: input.Task,
		Label:       input.Label,
		Profile:     input.Profile,
		Overrides:   input.overrides(),
		Origin:      t.origin,
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrProfileNotFound) {
			return "", fmt.Errorf("spawn_agent: profile %q not found (available: %s)", input.Profile, profileNames(t.profiles))
		}
		return "", fmt.Errorf("spawn_agent: %w", err)
	}

	out, _ := json.Marshal(map[string]string{
		"task_id": task.ID,
		"label":   task.Label,
		"status":  "running",
	})
	return string(out), nil
}

var _ tool.InvokableTool = (*SpawnAgentTool)(nil)

// profileNames renders the configured profile names for error messages.
func profileNames(profiles map[string]tasks.Profile) string {
	if len(profiles) == 0 {
		return "none"
	}
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}

// CancelAgentTool stops one running agent, or all of them.
type CancelAgentTool struct {
	orc      Conductor
	registry *tasks.Registry
}

// NewCancelAgentTool creates a cancel_agent tool.
func NewCancelAgentTool(orc Conductor, registry *tasks.Registry) *CancelAgentTool {
	return &CancelAgentTool{orc: orc, registry: registry}
}

// CancelAgentManifest returns the manifest for the cancel_agent tool.
func CancelAgentManifest() *Manifest {
	return &Manifest{
		Name:        "cancel_agent",
		Description: "Cancel background agents",
		Tools: []ToolSpec{
			{
				Name:        "cancel_agent",
				Description: "Cancel a running background agent by task id, or every running agent at once.",
				Parameters: map[string]ParamSpec{
					"task_id": {
						Type:        "string",
						Description: "The task id of the agent to cancel",
					},
					"all": {
						Type:        "boolean",
						Description: "Cancel every running agent (ignores task_id)",
					},
				},
			},
		},
	}
}

type cancelAgentInput struct {
	TaskID string `json:"task_id"`
	All    bool   `json:"all"`
}

func (t *CancelAgentTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return specToToolInfo(&CancelAgentManifest().Tools[0]), nil
}

func (t *CancelAgentTool) InvokableRun(_ context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input cancelAgentInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("cancel_agent: parse input: %w", err)
	}

	if input.All {
		cancelled := 0
		for _, task := range t.registry.List() {
			if task.Status == tasks.StatusRunning && t.orc.Cancel(task.ID) {
				cancelled++
			}
		}
		out, _ := json.Marshal(map[string]int{"cancelled": cancelled})
		return string(out), nil
	}

	if input.TaskID == "" {
		return "", fmt.Errorf("cancel_agent: task_id is required (or pass all=true)")
	}
	if !t.orc.Cancel(input.TaskID) {
		return "", fmt.Errorf("cancel_agent: task %q not found or already finished (running: %s)", input.TaskID, runningIDs(t.registry))
	}

	out, _ := json.Marshal(map[string]string{
		"task_id": input.TaskID,
		"status":  "cancelled",
	})
	return string(out), nil
}

var _ tool.InvokableTool = (*CancelAgentTool)(nil)

// runningIDs renders the ids of currently running tasks for error messages.
func runningIDs(registry *tasks.Registry) string {
	var ids []string
	for _, task := range registry.List() {
		if task.Status == tasks.StatusRunning {
			ids = append(ids, task.ID)
		}
	}
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(ids, ", ")
}

// ListAgentsTool reports the state of background agents.
type ListAgentsTool struct {
	registry *tasks.Registry
}

// NewListAgentsTool creates a list_agents tool.
func NewListAgentsTool(registry *tasks.Registry) *ListAgentsTool {
	return &ListAgentsTool{registry: registry}
}

// ListAgentsManifest returns the manifest for the list_agents tool.
func ListAgentsManifest() *Manifest {
	return &Manifest{
		Name:        "list_agents",
		Description: "List background agents",
		Tools: []ToolSpec{
			{
				Name:        "list_agents",
				Description: "List background agents with status, elapsed time and result previews. Shows running agents by default.",
				Parameters: map[string]ParamSpec{
					"include_done": {
						Type:        "boolean",
						Description: "Also include completed, failed and cancelled agents",
					},
				},
			},
		},
	}
}

type listAgentsInput struct {
	IncludeDone bool `json:"include_done"`
}

type agentEntry struct {
	TaskID         string  `json:"task_id"`
	Label          string  `json:"label"`
	Profile        string  `json:"profile,omitempty"`
	Status         string  `json:"status"`
	Task           string  `json:"task"`
	Iteration      int     `json:"iteration,omitempty"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Result         string  `json:"result,omitempty"`
	Error          string  `json:"error,omitempty"`
}

type listAgentsOutput struct {
	Agents []agentEntry `json:"agents"`
	Total  int          `json:"total"`
}

func (t *ListAgentsTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return specToToolInfo(&ListAgentsManifest().Tools[0]), nil
}

func (t *ListAgentsTool) InvokableRun(_ context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input listAgentsInput
	if argumentsInJSON != "" {
		if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
			return "", fmt.Errorf("list_agents: parse input: %w", err)
		}
	}

	result := listAgentsOutput{Agents: []agentEntry{}}
	for _, task := range t.registry.List() {
		if task.Status != tasks.StatusRunning && !input.IncludeDone {
			continue
		}
		entry := agentEntry{
			TaskID:    task.ID,
			Label:     task.Label,
			Status:    string(task.Status),
			Task:      tasks.Truncate(task.Description, taskPreviewLen),
			Iteration: task.Iteration,
		}
		if task.Profile != nil {
			entry.Profile = task.Profile.Name
		}
		if task.CompletedAt != nil {
			entry.ElapsedSeconds = roundSeconds(task.CompletedAt.Sub(task.CreatedAt))
		} else {
			entry.ElapsedSeconds = roundSeconds(task.LastActivityAt.Sub(task.CreatedAt))
		}
		switch task.Status {
		case tasks.StatusCompleted:
			entry.Result = tasks.Truncate(task.Result, resultPreviewLen)
		case tasks.StatusFailed, tasks.StatusCancelled:
			entry.Error = tasks.Truncate(task.Error, resultPreviewLen)
		}
		result.Agents = append(result.Agents, entry)
	}
	result.Total = len(result.Agents)

	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("list_agents: marshal result: %w", err)
	}
	return string(out), nil
}

var _ tool.InvokableTool = (*ListAgentsTool)(nil)

// roundSeconds converts a duration to seconds with one decimal.
func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*10) / 10
}

// GetAgentResultTool fetches an agent's state without waiting.
type GetAgentResultTool struct {
	registry *tasks.Registry
}

// NewGetAgentResultTool creates a get_agent_result tool.
func NewGetAgentResultTool(registry *tasks.Registry) *GetAgentResultTool {
	return &GetAgentResultTool{registry: registry}
}

// GetAgentResultManifest returns the manifest for the get_agent_result tool.
func GetAgentResultManifest() *Manifest {
	return &Manifest{
		Name:        "get_agent_result",
		Description: "Read agent results",
		Tools: []ToolSpec{
			{
				Name:        "get_agent_result",
				Description: "Get the result of a background agent without waiting. Running agents report status only; use await_agent to block until they finish.",
				Parameters: map[string]ParamSpec{
					"task_id": {
						Type:        "string",
						Description: "The task id of the agent",
						Required:    true,
					},
				},
			},
		},
	}
}

type getAgentResultInput struct {
	TaskID string `json:"task_id"`
}

type agentResultOutput struct {
	TaskID string `json:"task_id"`
	Label  string `json:"label"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (t *GetAgentResultTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return specToToolInfo(&GetAgentResultManifest().Tools[0]), nil
}

func (t *GetAgentResultTool) InvokableRun(_ context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input getAgentResultInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("get_agent_result: parse input: %w", err)
	}
	if input.TaskID == "" {
		return "", fmt.Errorf("get_agent_result: task_id is required")
	}

	task, err := t.registry.Get(input.TaskID)
	if err != nil {
		return "", fmt.Errorf("get_agent_result: %w", err)
	}

	result := agentResultOutput{
		TaskID: task.ID,
		Label:  task.Label,
		Status: string(task.Status),
	}
	switch task.Status {
	case tasks.StatusCompleted:
		result.Result = task.Result
	case tasks.StatusFailed, tasks.StatusCancelled:
		result.Error = task.Error
	}

	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("get_agent_result: marshal result: %w", err)
	}
	return string(out), nil
}

var _ tool.InvokableTool = (*GetAgentResultTool)(nil)

// AwaitAgentTool blocks until an agent finishes.
type AwaitAgentTool struct {
	orc Conductor
}

// NewAwaitAgentTool creates an await_agent tool.
func NewAwaitAgentTool(orc Conductor) *AwaitAgentTool {
	return &AwaitAgentTool{orc: orc}
}

const defaultAwaitSeconds = 300

// AwaitAgentManifest returns the manifest for the await_agent tool.
func AwaitAgentManifest() *Manifest {
	return &Manifest{
		Name:        "await_agent",
		Description: "Wait for agents",
		Tools: []ToolSpec{
			{
				Name:        "await_agent",
				Description: "Wait for a background agent to finish and return its full result. Blocks up to the timeout.",
				Parameters: map[string]ParamSpec{
					"task_id": {
						Type:        "string",
						Description: "The task id of the agent to wait for",
						Required:    true,
					},
					"timeout": {
						Type:        "integer",
						Description: "Maximum seconds to wait (default: 300)",
					},
				},
			},
		},
	}
}

type awaitAgentInput struct {
	TaskID  string `json:"task_id"`
	Timeout int    `json:"timeout"`
}

func (t *AwaitAgentTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return specToToolInfo(&AwaitAgentManifest().Tools[0]), nil
}

func (t *AwaitAgentTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input awaitAgentInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("await_agent: parse input: %w", err)
	}
	if input.TaskID == "" {
		return "", fmt.Errorf("await_agent: task_id is required")
	}
	timeout := time.Duration(input.Timeout) * time.Second
	if input.Timeout <= 0 {
		timeout = defaultAwaitSeconds * time.Second
	}

	task, err := t.orc.AwaitTask(ctx, input.TaskID, timeout)
	if err != nil {
		if errors.Is(err, orchestrator.ErrWaitTimeout) {
			return "", fmt.Errorf("await_agent: task %s did not finish within %s", input.TaskID, timeout)
		}
		return "", fmt.Errorf("await_agent: %w", err)
	}

	result := agentResultOutput{
		TaskID: task.ID,
		Label:  task.Label,
		Status: string(task.Status),
	}
	switch task.Status {
	case tasks.StatusCompleted:
		result.Result = task.Result
	case tasks.StatusFailed, tasks.StatusCancelled:
		result.Error = task.Error
	}

	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("await_agent: marshal result: %w", err)
	}
	return string(out), nil
}

var _ tool.InvokableTool = (*AwaitAgentTool)(nil)
