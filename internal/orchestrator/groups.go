package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dohr-michael/crew/internal/events"
	"github.com/dohr-michael/crew/internal/tasks"
)

// TaskSpec describes one member of a parallel group or chain.
type TaskSpec struct {
	Description string
	Label       string
	Profile     string
}

// CreateGroup spawns one worker per spec under a shared group id and
// returns the task ids in spec order. The id must be unused: on conflict
// nothing is spawned and the error wraps ErrGroupExists.
func (o *Orchestrator) CreateGroup(groupID string, specs []TaskSpec, origin tasks.Origin) ([]string, error) {
	if o.ctx == nil {
		return nil, ErrNotStarted
	}
	if groupID == "" {
		return nil, fmt.Errorf("group id required")
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("group %s: no tasks given", groupID)
	}
	for _, spec := range specs {
		if _, err := o.resolveProfile(spec.Profile, nil); err != nil {
			return nil, err
		}
	}

	o.mu.Lock()
	if _, exists := o.groups[groupID]; exists {
		o.mu.Unlock()
		return nil, fmt.Errorf("group %s: %w", groupID, ErrGroupExists)
	}
	o.groups[groupID] = nil // reserve before spawning
	o.mu.Unlock()

	ids := make([]string, 0, len(specs))
	for _, spec := range specs {
		t, err := o.Spawn(SpawnRequest{
			Description: spec.Description,
			Label:       spec.Label,
			Profile:     spec.Profile,
			Origin:      origin,
			GroupID:     groupID,
		})
		if err != nil {
			o.setGroup(groupID, ids)
			return ids, fmt.Errorf("group %s: spawn member %d: %w", groupID, len(ids)+1, err)
		}
		ids = append(ids, t.ID)
	}
	o.setGroup(groupID, ids)

	o.publish(events.NewTypedEvent(events.SourceOrchestrator, events.GroupCreatedPayload{
		GroupID: groupID,
		TaskIDs: ids,
	}))
	slog.Info("parallel group created", "group_id", groupID, "tasks", len(ids))
	return ids, nil
}

func (o *Orchestrator) setGroup(groupID string, ids []string) {
	o.mu.Lock()
	o.groups[groupID] = ids
	o.mu.Unlock()
}

// GroupTasks returns the member task ids of a group.
func (o *Orchestrator) GroupTasks(groupID string) ([]string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids, ok := o.groups[groupID]
	return slices.Clone(ids), ok
}

// AwaitGroup blocks until every member of the group reaches a terminal
// status or the timeout expires. On timeout the stragglers are cancelled
// and the error wraps ErrWaitTimeout. The returned map holds the state of
// every member either way.
func (o *Orchestrator) AwaitGroup(ctx context.Context, groupID string, timeout time.Duration) (map[string]*tasks.Task, error) {
	o.mu.Lock()
	ids, ok := o.groups[groupID]
	o.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("group %s: %w", groupID, ErrGroupNotFound)
	}

	waitErr := o.pollUntil(ctx, timeout, func() bool {
		return o.waitSatisfied(ids, WaitModeAll)
	})

	timedOut := errors.Is(waitErr, ErrWaitTimeout)
	if waitErr != nil && !timedOut {
		return o.states(ids), fmt.Errorf("group %s: %w", groupID, waitErr)
	}
	if timedOut {
		for _, id := range ids {
			if t, err := o.registry.Get(id); err == nil && !t.Status.Terminal() {
				o.Cancel(id)
			}
		}
	}

	states := o.states(ids)
	o.publish(events.NewTypedEvent(events.SourceOrchestrator, events.GroupDonePayload{
		GroupID:  groupID,
		Statuses: statusMap(states),
		TimedOut: timedOut,
	}))

	if timedOut {
		return states, fmt.Errorf("group %s: %w", groupID, ErrWaitTimeout)
	}
	return states, nil
}

func statusMap(states map[string]*tasks.Task) map[string]string {
	out := make(map[string]string, len(states))
	for id, t := range states {
		out[id] = string(t.Status)
	}
	return out
}
