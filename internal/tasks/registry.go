package tasks

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a task ID is not in the registry.
var ErrNotFound = errors.New("task not found")

// Registry is the in-memory authority for task state. All mutation goes
// through it; callers receive clones and never share memory with the
// registry.
type Registry struct {
	mu        sync.RWMutex
	tasks     map[string]*Task
	retention time.Duration
}

// NewRegistry creates a registry that retains terminal tasks for the given
// duration. Running tasks are never pruned.
func NewRegistry(retention time.Duration) *Registry {
	return &Registry{
		tasks:     make(map[string]*Task),
		retention: retention,
	}
}

// Create registers a new running task and returns a clone of it.
// An empty label falls back to a truncated description prefix.
func (r *Registry) Create(description, label string, origin Origin, profile *Profile) *Task {
	if label == "" {
		label = DefaultLabel(description)
	}
	now := time.Now()
	t := &Task{
		ID:             GenerateTaskID(),
		Label:          label,
		Description:    description,
		Status:         StatusRunning,
		CreatedAt:      now,
		LastActivityAt: now,
		Origin:         origin,
		Profile:        profile,
	}

	r.mu.Lock()
	r.tasks[t.ID] = t
	r.mu.Unlock()

	return t.Clone()
}

// Get returns a clone of the task with the given ID.
func (r *Registry) Get(id string) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t.Clone(), nil
}

// List prunes expired terminal tasks, then returns clones of the remainder
// ordered by creation time.
func (r *Registry) List() []*Task {
	r.Prune()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Touch records loop progress: iteration counter and last-activity time.
// Unknown IDs are a logged no-op.
func (r *Registry) Touch(id string, iteration int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		slog.Debug("touch on unknown task", "task_id", id)
		return
	}
	t.Iteration = iteration
	t.LastActivityAt = time.Now()
}

// Finalize transitions a running task to a terminal status, recording the
// result or error. It reports whether the transition happened; a task that
// is already terminal is left untouched and Finalize returns false, so the
// first terminal writer wins.
func (r *Registry) Finalize(id string, status Status, result, errMsg string) bool {
	if !status.Terminal() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		slog.Debug("finalize on unknown task", "task_id", id)
		return false
	}
	if t.Status.Terminal() {
		return false
	}

	now := time.Now()
	t.Status = status
	t.CompletedAt = &now
	t.LastActivityAt = now
	if status == StatusCompleted {
		t.Result = result
		t.Error = ""
	} else {
		t.Result = ""
		t.Error = errMsg
	}
	return true
}

// MarkCancelled optimistically finalizes a task as cancelled so reads
// observe the cancellation before the worker goroutine winds down.
func (r *Registry) MarkCancelled(id string) bool {
	return r.Finalize(id, StatusCancelled, "", "Task was cancelled.")
}

// Prune removes terminal tasks whose completion is older than the
// retention window and returns how many were removed.
func (r *Registry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.retention)
	removed := 0
	for id, t := range r.tasks {
		if !t.Status.Terminal() || t.CompletedAt == nil {
			continue
		}
		if t.CompletedAt.Before(cutoff) {
			delete(r.tasks, id)
			removed++
		}
	}
	return removed
}

// RunningCount returns the number of tasks still executing.
func (r *Registry) RunningCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, t := range r.tasks {
		if t.Status == StatusRunning {
			n++
		}
	}
	return n
}
