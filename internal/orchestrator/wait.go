package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/dohr-michael/crew/internal/tasks"
)

// Wait modes accepted by WaitAll.
const (
	WaitModeAll = "all"
	WaitModeAny = "any"
)

// AwaitTask blocks until the task reaches a terminal status or the
// timeout expires. The current state is returned either way; on timeout
// the error wraps ErrWaitTimeout and the task keeps running.
func (o *Orchestrator) AwaitTask(ctx context.Context, id string, timeout time.Duration) (*tasks.Task, error) {
	if _, err := o.registry.Get(id); err != nil {
		return nil, err
	}

	waitErr := o.pollUntil(ctx, timeout, func() bool {
		t, err := o.registry.Get(id)
		return err == nil && t.Status.Terminal()
	})

	t, err := o.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if waitErr != nil {
		return t, fmt.Errorf("await task %s: %w", id, waitErr)
	}
	return t, nil
}

// WaitAll blocks until the listed tasks satisfy the wait mode: "all"
// waits for every task to reach a terminal status, "any" returns as soon
// as one has. The mode is validated before any blocking happens. Unknown
// ids are dropped; the returned map holds the current state of every
// known id, running entries included. Tasks still running when WaitAll
// returns are left alone.
func (o *Orchestrator) WaitAll(ctx context.Context, ids []string, mode string, timeout time.Duration) (map[string]*tasks.Task, error) {
	if mode != WaitModeAll && mode != WaitModeAny {
		return nil, fmt.Errorf("mode %q: %w", mode, ErrInvalidMode)
	}

	known := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := o.registry.Get(id); err == nil {
			known = append(known, id)
		}
	}
	if len(known) == 0 {
		return map[string]*tasks.Task{}, nil
	}

	waitErr := o.pollUntil(ctx, timeout, func() bool {
		return o.waitSatisfied(known, mode)
	})

	states := o.states(known)
	if waitErr != nil {
		return states, fmt.Errorf("wait %s: %w", mode, waitErr)
	}
	return states, nil
}

// waitSatisfied checks the wait condition. Ids pruned from the registry
// mid-wait count as terminal so a wait can never hang on them.
func (o *Orchestrator) waitSatisfied(ids []string, mode string) bool {
	terminal := 0
	for _, id := range ids {
		t, err := o.registry.Get(id)
		if err != nil || t.Status.Terminal() {
			terminal++
		}
	}
	if mode == WaitModeAny {
		return terminal > 0
	}
	return terminal == len(ids)
}

// states snapshots the current state of every id still known to the registry.
func (o *Orchestrator) states(ids []string) map[string]*tasks.Task {
	out := make(map[string]*tasks.Task, len(ids))
	for _, id := range ids {
		if t, err := o.registry.Get(id); err == nil {
			out[id] = t
		}
	}
	return out
}

// pollUntil polls cond at the orchestrator cadence until it holds, the
// timeout expires (ErrWaitTimeout) or ctx is done. A timeout <= 0 means
// no deadline.
func (o *Orchestrator) pollUntil(ctx context.Context, timeout time.Duration, cond func() bool) error {
	if cond() {
		return nil
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return ErrWaitTimeout
		case <-ticker.C:
			if cond() {
				return nil
			}
		}
	}
}
