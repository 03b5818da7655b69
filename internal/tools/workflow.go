package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/crew/internal/orchestrator"
	"github.com/dohr-michael/crew/internal/tasks"
)

const (
	defaultGroupAwaitSeconds = 600
	memberPreviewLen         = 100
)

// taskSpecInput is the wire shape of one group or chain member.
type taskSpecInput struct {
	Task    string `json:"task"`
	Label   string `json:"label"`
	Profile string `json:"profile"`
}

// taskSpecParam is the shared schema for arrays of task specs.
func taskSpecParam(description string) ParamSpec {
	return ParamSpec{
		Type:        "array",
		Description: description,
		Required:    true,
		Items: &ParamSpec{
			Type: "object",
			Properties: map[string]ParamSpec{
				"task": {
					Type:        "string",
					Description: "The task for this agent to complete",
					Required:    true,
				},
				"label": {
					Type:        "string",
					Description: "Short display label for this agent",
				},
				"profile": {
					Type:        "string",
					Description: "Named agent profile to run with (optional)",
				},
			},
		},
	}
}

// toTaskSpecs validates and converts wire specs, prefixing errors with the
// calling tool's name.
func toTaskSpecs(toolName string, inputs []taskSpecInput) ([]orchestrator.TaskSpec, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%s: at least one task is required", toolName)
	}
	specs := make([]orchestrator.TaskSpec, len(inputs))
	for i, in := range inputs {
		if in.Task == "" {
			return nil, fmt.Errorf("%s: task %d: task is required", toolName, i+1)
		}
		specs[i] = orchestrator.TaskSpec{
			Description: in.Task,
			Label:       in.Label,
			Profile:     in.Profile,
		}
	}
	return specs, nil
}

// memberEntry is one agent's state in a group, chain or wait report.
type memberEntry struct {
	TaskID string `json:"task_id"`
	Label  string `json:"label"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// memberFromTask builds a report entry with a preview-length result.
func memberFromTask(task *tasks.Task) memberEntry {
	entry := memberEntry{
		TaskID: task.ID,
		Label:  task.Label,
		Status: string(task.Status),
	}
	switch task.Status {
	case tasks.StatusCompleted:
		entry.Result = tasks.Truncate(task.Result, memberPreviewLen)
	case tasks.StatusFailed, tasks.StatusCancelled:
		entry.Error = tasks.Truncate(task.Error, memberPreviewLen)
	}
	return entry
}

// ParallelGroupTool spawns several agents at once under a shared group id.
type ParallelGroupTool struct {
	orc    Conductor
	origin tasks.Origin
}

// NewParallelGroupTool creates a parallel_group tool.
func NewParallelGroupTool(orc Conductor, origin tasks.Origin) *ParallelGroupTool {
	return &ParallelGroupTool{orc: orc, origin: origin}
}

// ParallelGroupManifest returns the manifest for the parallel_group tool.
func ParallelGroupManifest() *Manifest {
	return &Manifest{
		Name:        "parallel_group",
		Description: "Run agents in parallel",
		Tools: []ToolSpec{
			{
				Name:        "parallel_group",
				Description: "Spawn several background agents at once under a shared group id. Returns immediately; use await_group to collect the results.",
				Parameters: map[string]ParamSpec{
					"group_id": {
						Type:        "string",
						Description: "Identifier for this group, used by await_group",
						Required:    true,
					},
					"tasks": taskSpecParam("The tasks to run in parallel, one agent each"),
				},
			},
		},
	}
}

type parallelGroupInput struct {
	GroupID string          `json:"group_id"`
	Tasks   []taskSpecInput `json:"tasks"`
}

type parallelGroupOutput struct {
	GroupID string   `json:"group_id"`
	TaskIDs []string `json:"task_ids"`
	Count   int      `json:"count"`
}

func (t *ParallelGroupTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return specToToolInfo(&ParallelGroupManifest().Tools[0]), nil
}

func (t *ParallelGroupTool) InvokableRun(_ context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input parallelGroupInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("parallel_group: parse input: %w", err)
	}
	if input.GroupID == "" {
		return "", fmt.Errorf("parallel_group: group_id is required")
	}
	specs, err := toTaskSpecs("parallel_group", input.Tasks)
	if err != nil {
		return "", err
	}

	ids, err := t.orc.CreateGroup(input.GroupID, specs, t.origin)
	if err != nil {
		if errors.Is(err, orchestrator.ErrGroupExists) {
			return "", fmt.Errorf("parallel_group: group id %q already in use", input.GroupID)
		}
		return "", fmt.Errorf("parallel_group: %w", err)
	}

	out, err := json.Marshal(parallelGroupOutput{
		GroupID: input.GroupID,
		TaskIDs: ids,
		Count:   len(ids),
	})
	if err != nil {
		return "", fmt.Errorf("parallel_group: marshal result: %w", err)
	}
	return string(out), nil
}

var _ tool.InvokableTool = (*ParallelGroupTool)(nil)

// AwaitGroupTool blocks until every agent in a group finishes.
type AwaitGroupTool struct {
	orc Conductor
}

// NewAwaitGroupTool creates an await_group tool.
func NewAwaitGroupTool(orc Conductor) *AwaitGroupTool {
	return &AwaitGroupTool{orc: orc}
}

// AwaitGroupManifest returns the manifest for the await_group tool.
func AwaitGroupManifest() *Manifest {
	return &Manifest{
		Name:        "await_group",
		Description: "Wait for agent groups",
		Tools: []ToolSpec{
			{
				Name:        "await_group",
				Description: "Wait for every agent in a parallel group to finish and report their results. On timeout the stragglers are cancelled.",
				Parameters: map[string]ParamSpec{
					"group_id": {
						Type:        "string",
						Description: "The group id passed to parallel_group",
						Required:    true,
					},
					"timeout": {
						Type:        "integer",
						Description: "Maximum seconds to wait (default: 600)",
					},
				},
			},
		},
	}
}

type awaitGroupInput struct {
	GroupID string `json:"group_id"`
	Timeout int    `json:"timeout"`
}

type awaitGroupOutput struct {
	GroupID string        `json:"group_id"`
	Agents  []memberEntry `json:"agents"`
	Count   int           `json:"count"`
}

func (t *AwaitGroupTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return specToToolInfo(&AwaitGroupManifest().Tools[0]), nil
}

func (t *AwaitGroupTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input awaitGroupInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("await_group: parse input: %w", err)
	}
	if input.GroupID == "" {
		return "", fmt.Errorf("await_group: group_id is required")
	}
	timeout := time.Duration(input.Timeout) * time.Second
	if input.Timeout <= 0 {
		timeout = defaultGroupAwaitSeconds * time.Second
	}

	states, err := t.orc.AwaitGroup(ctx, input.GroupID, timeout)
	if err != nil {
		if errors.Is(err, orchestrator.ErrGroupNotFound) {
			return "", fmt.Errorf("await_group: group %q not found", input.GroupID)
		}
		if errors.Is(err, orchestrator.ErrWaitTimeout) {
			return "", fmt.Errorf("await_group: group %q did not finish within %s", input.GroupID, timeout)
		}
		return "", fmt.Errorf("await_group: %w", err)
	}

	// Report members in spawn order, not map order.
	ids, _ := t.orc.GroupTasks(input.GroupID)
	result := awaitGroupOutput{GroupID: input.GroupID, Agents: []memberEntry{}}
	for _, id := range ids {
		task, ok := states[id]
		if !ok {
			continue
		}
		result.Agents = append(result.Agents, memberFromTask(task))
	}
	result.Count = len(result.Agents)

	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("await_group: marshal result: %w", err)
	}
	return string(out), nil
}

var _ tool.InvokableTool = (*AwaitGroupTool)(nil)

// SpawnChainTool runs agents sequentially, threading each result into the
// next task.
type SpawnChainTool struct {
	orc    Conductor
	origin tasks.Origin
}

// NewSpawnChainTool creates a spawn_chain tool.
func NewSpawnChainTool(orc Conductor, origin tasks.Origin) *SpawnChainTool {
	return &SpawnChainTool{orc: orc, origin: origin}
}

// SpawnChainManifest returns the manifest for the spawn_chain tool.
func SpawnChainManifest() *Manifest {
	return &Manifest{
		Name:        "spawn_chain",
		Description: "Run agents in sequence",
		Tools: []ToolSpec{
			{
				Name:        "spawn_chain",
				Description: "Run background agents one after another. Each agent's result is appended to the next task unless use_result is false. Blocks until the chain finishes; a failed step stops the chain.",
				Parameters: map[string]ParamSpec{
					"tasks": taskSpecParam("The tasks to run in order, one agent each"),
					"use_result": {
						Type:        "boolean",
						Description: "Feed each result into the next task (default: true)",
					},
				},
			},
		},
	}
}

type spawnChainInput struct {
	Tasks     []taskSpecInput `json:"tasks"`
	UseResult *bool           `json:"use_result"`
}

type chainStepEntry struct {
	Step   int    `json:"step"`
	TaskID string `json:"task_id"`
	Label  string `json:"label"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type spawnChainOutput struct {
	Steps []chainStepEntry `json:"steps"`
	Count int              `json:"count"`
}

func (t *SpawnChainTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return specToToolInfo(&SpawnChainManifest().Tools[0]), nil
}

func (t *SpawnChainTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input spawnChainInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("spawn_chain: parse input: %w", err)
	}
	specs, err := toTaskSpecs("spawn_chain", input.Tasks)
	if err != nil {
		return "", err
	}
	useResult := true
	if input.UseResult != nil {
		useResult = *input.UseResult
	}

	// No per-step timeout: the worker iteration cap bounds each step.
	ran, err := t.orc.RunChain(ctx, specs, useResult, t.origin, 0)
	if err != nil {
		return "", fmt.Errorf("spawn_chain: %w", err)
	}

	result := spawnChainOutput{Steps: make([]chainStepEntry, 0, len(ran))}
	for i, task := range ran {
		member := memberFromTask(task)
		result.Steps = append(result.Steps, chainStepEntry{
			Step:   i + 1,
			TaskID: member.TaskID,
			Label:  member.Label,
			Status: member.Status,
			Result: member.Result,
			Error:  member.Error,
		})
	}
	result.Count = len(result.Steps)

	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("spawn_chain: marshal result: %w", err)
	}
	return string(out), nil
}

var _ tool.InvokableTool = (*SpawnChainTool)(nil)

// WaitAllTool blocks on an arbitrary set of agents with all/any semantics.
type WaitAllTool struct {
	orc Conductor
}

// NewWaitAllTool creates a wait_all tool.
func NewWaitAllTool(orc Conductor) *WaitAllTool {
	return &WaitAllTool{orc: orc}
}

// WaitAllManifest returns the manifest for the wait_all tool.
func WaitAllManifest() *Manifest {
	return &Manifest{
		Name:        "wait_all",
		Description: "Wait for sets of agents",
		Tools: []ToolSpec{
			{
				Name:        "wait_all",
				Description: "Wait for a set of background agents. Mode \"all\" returns when every one has finished, \"any\" as soon as the first finishes. Reports all requested agents, including those still running.",
				Parameters: map[string]ParamSpec{
					"task_ids": {
						Type:        "array",
						Description: "The task ids to wait for",
						Required:    true,
						Items:       &ParamSpec{Type: "string", Description: "A task id"},
					},
					"mode": {
						Type:        "string",
						Description: "Completion condition",
						Required:    true,
						Enum:        []string{"all", "any"},
					},
					"timeout": {
						Type:        "integer",
						Description: "Maximum seconds to wait (default: 600)",
					},
				},
			},
		},
	}
}

type waitAllInput struct {
	TaskIDs []string `json:"task_ids"`
	Mode    string   `json:"mode"`
	Timeout int      `json:"timeout"`
}

type waitAllOutput struct {
	Mode   string        `json:"mode"`
	Agents []memberEntry `json:"agents"`
	Count  int           `json:"count"`
}

func (t *WaitAllTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return specToToolInfo(&WaitAllManifest().Tools[0]), nil
}

func (t *WaitAllTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input waitAllInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("wait_all: parse input: %w", err)
	}
	if len(input.TaskIDs) == 0 {
		return "", fmt.Errorf("wait_all: task_ids is required")
	}
	if input.Mode == "" {
		return "", fmt.Errorf("wait_all: mode is required")
	}
	timeout := time.Duration(input.Timeout) * time.Second
	if input.Timeout <= 0 {
		timeout = defaultGroupAwaitSeconds * time.Second
	}

	states, err := t.orc.WaitAll(ctx, input.TaskIDs, input.Mode, timeout)
	if err != nil {
		if errors.Is(err, orchestrator.ErrInvalidMode) {
			return "", fmt.Errorf("wait_all: invalid mode %q (use \"all\" or \"any\")", input.Mode)
		}
		if errors.Is(err, orchestrator.ErrWaitTimeout) {
			return "", fmt.Errorf("wait_all: tasks did not finish within %s", timeout)
		}
		return "", fmt.Errorf("wait_all: %w", err)
	}

	result := waitAllOutput{Mode: input.Mode, Agents: []memberEntry{}}
	for _, id := range input.TaskIDs {
		task, ok := states[id]
		if !ok {
			continue
		}
		result.Agents = append(result.Agents, memberFromTask(task))
	}
	result.Count = len(result.Agents)

	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("wait_all: marshal result: %w", err)
	}
	return string(out), nil
}

var _ tool.InvokableTool = (*WaitAllTool)(nil)
