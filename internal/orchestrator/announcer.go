package orchestrator

import (
	"context"
	"fmt"

	"github.com/dohr-michael/crew/internal/events"
	"github.com/dohr-michael/crew/internal/tasks"
)

// Announcements address the synthetic "system" channel so the gateway can
// tell worker reports apart from ordinary chat traffic. The chat id routes
// the report back to the conversation the task came from.
const (
	announceChannel = "system"
	announceSender  = "subagent"
)

// Notifier delivers worker announcements to the surface a task originated
// from. Delivery is best effort: errors are logged by the caller and never
// change task state. Implementations must be safe for concurrent use.
type Notifier interface {
	Publish(ctx context.Context, channel, senderID, chatID, content string) error
}

// BusNotifier publishes announcements as outgoing.message events on the
// shared bus. The gateway hub fans them out to connected clients.
type BusNotifier struct {
	bus *events.Bus
}

func NewBusNotifier(bus *events.Bus) *BusNotifier {
	return &BusNotifier{bus: bus}
}

func (n *BusNotifier) Publish(ctx context.Context, channel, senderID, chatID, content string) error {
	if n.bus == nil {
		return nil
	}
	payload := events.OutgoingMessagePayload{
		Channel:  channel,
		SenderID: senderID,
		ChatID:   chatID,
		Content:  content,
	}
	n.bus.Publish(events.NewTypedEventForTask(events.SourceOrchestrator, payload, events.TaskIDFromContext(ctx)))
	return nil
}

// terminalAnnouncement renders the report sent exactly once when a task
// reaches a terminal status. The header line is distinct per status so
// downstream consumers can react without parsing the body.
func terminalAnnouncement(t *tasks.Task) string {
	var header, body string
	switch t.Status {
	case tasks.StatusCompleted:
		header = fmt.Sprintf("[Worker '%s' completed successfully]", t.Label)
		body = t.Result
	case tasks.StatusFailed:
		header = fmt.Sprintf("[Worker '%s' failed]", t.Label)
		body = t.Error
	case tasks.StatusCancelled:
		header = fmt.Sprintf("[Worker '%s' cancelled]", t.Label)
		body = t.Error
	default:
		return ""
	}
	return fmt.Sprintf(`%s

Task: %s

Result:
%s

Summarize this naturally for the user. Keep it brief (1-2 sentences). Do not mention technical details like "worker" or task IDs.`, header, t.Description, body)
}

// progressAnnouncement renders the automated update sent every third
// iteration while a task is still running.
func progressAnnouncement(t *tasks.Task, iteration, maxIterations int, lastTool string) string {
	action := ""
	if lastTool != "" {
		action = fmt.Sprintf(", last tool: %s", lastTool)
	}
	return fmt.Sprintf(`[Worker '%s' progress update]

Working on task... (iteration %d/%d%s)

This is an automated progress update. The worker is still running and will announce when complete.`, t.Label, iteration, maxIterations, action)
}
