// Package tasks provides in-memory task state for background worker execution.
package tasks

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal returns true once the task can no longer change state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Origin identifies the conversation a task was spawned from, so results can
// be routed back to it.
type Origin struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
}

// String renders the origin as "channel:chat_id".
func (o Origin) String() string {
	return o.Channel + ":" + o.ChatID
}

// Profile carries optional per-task model parameters and workspace overrides.
type Profile struct {
	Name        string   `json:"name,omitempty" yaml:"-"`
	Model       string   `json:"model,omitempty" yaml:"model"`
	Temperature *float32 `json:"temperature,omitempty" yaml:"temperature"`
	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens"`
	Workspace   string   `json:"workspace,omitempty" yaml:"workspace"`
	Prompt      string   `json:"prompt,omitempty" yaml:"prompt"`
	Tools       []string `json:"tools,omitempty" yaml:"tools"`
}

// Task represents one background unit of work.
type Task struct {
	ID             string     `json:"id"`
	Label          string     `json:"label"`
	Description    string     `json:"description"`
	Status         Status     `json:"status"`
	Iteration      int        `json:"iteration"`
	CreatedAt      time.Time  `json:"created_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Result         string     `json:"result,omitempty"`
	Error          string     `json:"error,omitempty"`
	Origin         Origin     `json:"origin"`
	Profile        *Profile   `json:"profile,omitempty"`
}

// Clone returns a deep copy safe to hand to callers.
func (t *Task) Clone() *Task {
	c := *t
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	if t.Profile != nil {
		p := *t.Profile
		if t.Profile.Temperature != nil {
			temp := *t.Profile.Temperature
			p.Temperature = &temp
		}
		p.Tools = append([]string(nil), t.Profile.Tools...)
		c.Profile = &p
	}
	return &c
}

// GenerateTaskID creates a unique task identifier.
func GenerateTaskID() string {
	u := uuid.New().String()
	return "task_" + strings.ReplaceAll(u[:8], "-", "")
}

// DefaultLabel derives a display label from a task description: the first
// 30 characters, with an ellipsis when truncated.
func DefaultLabel(description string) string {
	const max = 30
	r := []rune(description)
	if len(r) <= max {
		return description
	}
	return string(r[:max]) + "..."
}

// Truncate caps s at n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
