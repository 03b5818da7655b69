package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/crew/internal/events"
	"github.com/dohr-michael/crew/internal/models"
	"github.com/dohr-michael/crew/internal/tasks"
)

const (
	// fallbackResult is stored when the loop ends without a usable final
	// answer, either because the iteration budget ran out or the model
	// returned an empty message.
	fallbackResult = "Task completed but no final response was generated."

	// maxErrorLen bounds stored error messages.
	maxErrorLen = 500

	// maxEventResultLen bounds tool results carried on bus events. The
	// full result still reaches the model conversation.
	maxEventResultLen = 500

	// progressEvery is the iteration cadence for snapshots and progress
	// announcements.
	progressEvery = 3
)

// run drives one worker conversation to a terminal status. Every exit
// path goes through finish exactly once.
func (o *Orchestrator) run(ctx context.Context, t *tasks.Task) {
	started := o.now()

	conv := []*schema.Message{
		schema.SystemMessage(buildWorkerPrompt(t, o.workspaceFor(t), o.systemPrompt, o.maxIterations, o.now())),
		schema.UserMessage(t.Description),
	}

	var toolNames []string
	if t.Profile != nil {
		toolNames = t.Profile.Tools
	}
	var defs []*schema.ToolInfo
	if o.tools != nil {
		defs = o.tools.Definitions(ctx, toolNames)
	}

	var params models.Params
	if t.Profile != nil {
		params = models.Params{
			Provider:    t.Profile.Model,
			Temperature: t.Profile.Temperature,
			MaxTokens:   t.Profile.MaxTokens,
		}
	}

	lastTool := ""
	for iteration := 1; iteration <= o.maxIterations; iteration++ {
		o.registry.Touch(t.ID, iteration)

		if iteration%progressEvery == 0 {
			o.writeSnapshot()
			o.announceProgress(ctx, t, iteration, lastTool)
		}

		if o.interrupted(ctx, t.ID) {
			o.finish(ctx, t.ID, tasks.StatusCancelled, "", "", iteration, started)
			return
		}

		resp, err := o.provider.Generate(ctx, conv, defs, params)
		if err != nil {
			if errors.Is(err, context.Canceled) || o.interrupted(ctx, t.ID) {
				o.finish(ctx, t.ID, tasks.StatusCancelled, "", "", iteration, started)
				return
			}
			o.finish(ctx, t.ID, tasks.StatusFailed, "", tasks.Truncate(err.Error(), maxErrorLen), iteration, started)
			return
		}

		if len(resp.ToolCalls) == 0 {
			result := resp.Content
			if strings.TrimSpace(result) == "" {
				result = fallbackResult
			}
			o.finish(ctx, t.ID, tasks.StatusCompleted, result, "", iteration, started)
			return
		}

		conv = append(conv, resp)
		for _, tc := range resp.ToolCalls {
			if o.interrupted(ctx, t.ID) {
				o.finish(ctx, t.ID, tasks.StatusCancelled, "", "", iteration, started)
				return
			}
			lastTool = tc.Function.Name
			conv = append(conv, schema.ToolMessage(o.executeToolCall(ctx, tc), tc.ID))
		}
	}

	// Iteration budget exhausted without a final answer.
	o.finish(ctx, t.ID, tasks.StatusCompleted, fallbackResult, "", o.maxIterations, started)
}

// interrupted reports whether the worker should stop: either its context
// was cancelled or the task was marked cancelled in the registry.
func (o *Orchestrator) interrupted(ctx context.Context, id string) bool {
	if ctx.Err() != nil {
		return true
	}
	t, err := o.registry.Get(id)
	return err == nil && t.Status == tasks.StatusCancelled
}

// finish records the terminal status and emits the terminal event and
// announcement. When another writer already finalized the task, the
// announcement reflects that status instead, so exactly one report goes
// out per task either way.
func (o *Orchestrator) finish(ctx context.Context, id string, status tasks.Status, result, errMsg string, iterations int, started time.Time) {
	if status == tasks.StatusCancelled {
		o.registry.MarkCancelled(id)
	} else {
		o.registry.Finalize(id, status, result, errMsg)
	}

	t, err := o.registry.Get(id)
	if err != nil || !t.Status.Terminal() {
		return
	}

	o.writeSnapshot()
	o.publishTerminal(t, iterations, started)
	o.announce(ctx, t, terminalAnnouncement(t))
	slog.Info("worker finished", "task_id", id, "status", string(t.Status), "iterations", iterations)
}

func (o *Orchestrator) publishTerminal(t *tasks.Task, iterations int, started time.Time) {
	elapsed := o.now().Sub(started)

	var payload events.EventPayload
	switch t.Status {
	case tasks.StatusCompleted:
		payload = events.TaskCompletedPayload{Label: t.Label, Result: t.Result, Iterations: iterations, Duration: elapsed}
	case tasks.StatusFailed:
		payload = events.TaskFailedPayload{Label: t.Label, Error: t.Error, Iterations: iterations, Duration: elapsed}
	case tasks.StatusCancelled:
		payload = events.TaskCancelledPayload{Label: t.Label, Iterations: iterations, Duration: elapsed}
	default:
		return
	}
	o.publish(events.NewTypedEventForTask(events.SourceWorker, payload, t.ID))
}

func (o *Orchestrator) announceProgress(ctx context.Context, t *tasks.Task, iteration int, lastTool string) {
	o.publish(events.NewTypedEventForTask(events.SourceWorker, events.TaskProgressPayload{
		Label:         t.Label,
		Iteration:     iteration,
		MaxIterations: o.maxIterations,
	}, t.ID))
	o.announce(ctx, t, progressAnnouncement(t, iteration, o.maxIterations, lastTool))
}

// announce delivers one notification. Announcements survive worker
// context cancellation so the cancelled report still goes out.
func (o *Orchestrator) announce(ctx context.Context, t *tasks.Task, content string) {
	if o.notifier == nil || content == "" {
		return
	}
	if err := o.notifier.Publish(context.WithoutCancel(ctx), announceChannel, announceSender, t.Origin.String(), content); err != nil {
		slog.Warn("announce", "task_id", t.ID, "error", err)
	}
}

// executeToolCall runs one tool call and returns the message fed back to
// the model. Tool failures become part of the conversation so the model
// can recover; only provider errors abort a task.
func (o *Orchestrator) executeToolCall(ctx context.Context, tc schema.ToolCall) string {
	name := tc.Function.Name
	args := tc.Function.Arguments

	if o.tools == nil {
		return "Error: tool not available: " + name
	}

	o.publishToolCall(ctx, events.ToolCallPayload{
		Status:    events.ToolStatusStarted,
		Name:      name,
		Arguments: parseToolArgs(args),
	})

	result, err := o.tools.Execute(ctx, name, args)
	if err != nil {
		o.publishToolCall(ctx, events.ToolCallPayload{
			Status: events.ToolStatusFailed,
			Name:   name,
			Error:  err.Error(),
		})
		return "Error: " + err.Error()
	}

	o.publishToolCall(ctx, events.ToolCallPayload{
		Status: events.ToolStatusCompleted,
		Name:   name,
		Result: tasks.Truncate(result, maxEventResultLen),
	})
	return result
}

func (o *Orchestrator) publishToolCall(ctx context.Context, payload events.ToolCallPayload) {
	o.publish(events.NewTypedEventForTask(events.SourceTool, payload, events.TaskIDFromContext(ctx)))
}

func parseToolArgs(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil
	}
	return args
}
