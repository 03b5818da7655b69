package gateway

import (
	"errors"
	"time"

	"github.com/dohr-michael/crew/internal/gateway/ws"
	"github.com/dohr-michael/crew/internal/orchestrator"
	"github.com/dohr-michael/crew/internal/tasks"
)

// ErrAlreadyTerminal is returned when cancelling a task that has
// already reached a terminal status.
var ErrAlreadyTerminal = errors.New("task already terminal")

// Spawner is the orchestrator surface the gateway drives.
// *orchestrator.Orchestrator satisfies it.
type Spawner interface {
	Spawn(req orchestrator.SpawnRequest) (*tasks.Task, error)
	Cancel(id string) bool
}

// TaskHandler bridges HTTP and WebSocket task operations to the
// orchestrator and the registry.
type TaskHandler struct {
	orc      Spawner
	registry *tasks.Registry
	origin   tasks.Origin
}

var _ ws.TaskControl = (*TaskHandler)(nil)

// NewTaskHandler creates a task handler. Tasks spawned through it carry
// the given origin.
func NewTaskHandler(orc Spawner, registry *tasks.Registry, origin tasks.Origin) *TaskHandler {
	return &TaskHandler{orc: orc, registry: registry, origin: origin}
}

// taskSummary is the list projection: enough for a table row without
// dragging full results over the wire.
type taskSummary struct {
	ID             string       `json:"id"`
	Label          string       `json:"label"`
	Status         tasks.Status `json:"status"`
	Iteration      int          `json:"iteration"`
	CreatedAt      time.Time    `json:"created_at"`
	LastActivityAt time.Time    `json:"last_activity_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
}

func summarize(t *tasks.Task) taskSummary {
	return taskSummary{
		ID:             t.ID,
		Label:          t.Label,
		Status:         t.Status,
		Iteration:      t.Iteration,
		CreatedAt:      t.CreatedAt,
		LastActivityAt: t.LastActivityAt,
		CompletedAt:    t.CompletedAt,
	}
}

// Spawn registers a new task and returns its id.
func (h *TaskHandler) Spawn(description, label, profile string) (string, error) {
	t, err := h.orc.Spawn(orchestrator.SpawnRequest{
		Description: description,
		Label:       label,
		Profile:     profile,
		Origin:      h.origin,
	})
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

// Cancel stops a running task. Unknown ids surface tasks.ErrNotFound,
// already finished ones ErrAlreadyTerminal.
func (h *TaskHandler) Cancel(id string) error {
	t, err := h.registry.Get(id)
	if err != nil {
		return err
	}
	if t.Status.Terminal() {
		return ErrAlreadyTerminal
	}
	if !h.orc.Cancel(id) {
		// Lost the race against the worker finishing.
		return ErrAlreadyTerminal
	}
	return nil
}

// Get returns the full task record.
func (h *TaskHandler) Get(id string) (*tasks.Task, error) {
	return h.registry.Get(id)
}

// List returns task summaries, running tasks only unless includeDone
// is set.
func (h *TaskHandler) List(includeDone bool) (any, error) {
	all := h.registry.List()
	summaries := make([]taskSummary, 0, len(all))
	for _, t := range all {
		if !includeDone && t.Status.Terminal() {
			continue
		}
		summaries = append(summaries, summarize(t))
	}
	return summaries, nil
}
