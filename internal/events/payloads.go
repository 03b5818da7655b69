package events

import (
	"encoding/json"
	"time"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
}

// =============================================================================
// TASK LIFECYCLE EVENTS
// =============================================================================

type TaskSpawnedPayload struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Profile     string `json:"profile,omitempty"`
	Origin      string `json:"origin,omitempty"` // "channel:chat_id"
	GroupID     string `json:"group_id,omitempty"`
}

func (TaskSpawnedPayload) EventType() EventType { return EventTaskSpawned }

type TaskProgressPayload struct {
	Label         string `json:"label"`
	Iteration     int    `json:"iteration"`
	MaxIterations int    `json:"max_iterations"`
}

func (TaskProgressPayload) EventType() EventType { return EventTaskProgress }

type TaskCompletedPayload struct {
	Label      string        `json:"label"`
	Result     string        `json:"result,omitempty"`
	Iterations int           `json:"iterations"`
	Duration   time.Duration `json:"duration"`
}

func (TaskCompletedPayload) EventType() EventType { return EventTaskCompleted }

type TaskFailedPayload struct {
	Label      string        `json:"label"`
	Error      string        `json:"error"`
	Iterations int           `json:"iterations"`
	Duration   time.Duration `json:"duration"`
}

func (TaskFailedPayload) EventType() EventType { return EventTaskFailed }

type TaskCancelledPayload struct {
	Label      string        `json:"label"`
	Iterations int           `json:"iterations"`
	Duration   time.Duration `json:"duration"`
}

func (TaskCancelledPayload) EventType() EventType { return EventTaskCancelled }

// =============================================================================
// TOOL EVENTS
// =============================================================================

type ToolStatus string

const (
	ToolStatusStarted   ToolStatus = "started"
	ToolStatusCompleted ToolStatus = "completed"
	ToolStatusFailed    ToolStatus = "failed"
)

type ToolCallPayload struct {
	Status    ToolStatus     `json:"status"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    string         `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func (ToolCallPayload) EventType() EventType { return EventTaskToolCall }

// =============================================================================
// COORDINATOR EVENTS
// =============================================================================

type GroupCreatedPayload struct {
	GroupID string   `json:"group_id"`
	TaskIDs []string `json:"task_ids"`
}

func (GroupCreatedPayload) EventType() EventType { return EventGroupCreated }

type GroupDonePayload struct {
	GroupID  string            `json:"group_id"`
	Statuses map[string]string `json:"statuses"`
	TimedOut bool              `json:"timed_out,omitempty"`
}

func (GroupDonePayload) EventType() EventType { return EventGroupDone }

type ChainStepPayload struct {
	Step   int    `json:"step"`
	Total  int    `json:"total"`
	Status string `json:"status"`
}

func (ChainStepPayload) EventType() EventType { return EventChainStep }

// =============================================================================
// OUTGOING NOTIFICATIONS
// =============================================================================

type OutgoingMessagePayload struct {
	Channel  string `json:"channel"`
	SenderID string `json:"sender_id"`
	ChatID   string `json:"chat_id"`
	Content  string `json:"content"`
}

func (OutgoingMessagePayload) EventType() EventType { return EventOutgoingMessage }

// =============================================================================
// INTERNAL EVENTS
// =============================================================================

type ModelCallPayload struct {
	Phase        string        `json:"phase"`
	Model        string        `json:"model"`
	Provider     string        `json:"provider,omitempty"`
	MessageCount int           `json:"message_count,omitempty"`
	TokensInput  int           `json:"tokens_input,omitempty"`
	TokensOutput int           `json:"tokens_output,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	Error        string        `json:"error,omitempty"`
}

func (ModelCallPayload) EventType() EventType { return EventModelCall }

// =============================================================================
// TYPED EVENT CONSTRUCTORS
// =============================================================================

func NewTypedEvent(source EventSource, payload EventPayload) Event {
	return Event{
		ID:        generateEventID(),
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

func NewTypedEventForTask(source EventSource, payload EventPayload, taskID string) Event {
	return Event{
		ID:        generateEventID(),
		TaskID:    taskID,
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

func toMap(v any) map[string]any {
	var result map[string]any
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// =============================================================================
// TYPED PAYLOAD EXTRACTORS
// =============================================================================

func ExtractPayload[T EventPayload](e Event) (T, bool) {
	var result T
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	return result, true
}

func GetTaskSpawnedPayload(e Event) (TaskSpawnedPayload, bool) {
	return ExtractPayload[TaskSpawnedPayload](e)
}

func GetTaskProgressPayload(e Event) (TaskProgressPayload, bool) {
	return ExtractPayload[TaskProgressPayload](e)
}

func GetTaskCompletedPayload(e Event) (TaskCompletedPayload, bool) {
	return ExtractPayload[TaskCompletedPayload](e)
}

func GetTaskFailedPayload(e Event) (TaskFailedPayload, bool) {
	return ExtractPayload[TaskFailedPayload](e)
}

func GetToolCallPayload(e Event) (ToolCallPayload, bool) {
	return ExtractPayload[ToolCallPayload](e)
}

func GetOutgoingMessagePayload(e Event) (OutgoingMessagePayload, bool) {
	return ExtractPayload[OutgoingMessagePayload](e)
}

func GetModelCallPayload(e Event) (ModelCallPayload, bool) {
	return ExtractPayload[ModelCallPayload](e)
}
