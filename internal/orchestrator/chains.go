package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/dohr-michael/crew/internal/events"
	"github.com/dohr-michael/crew/internal/tasks"
)

// chainResultHeader joins a step's result onto the next description.
const chainResultHeader = "\n\nPrevious task result:\n"

// RunChain executes specs strictly one after another: spawn a step, wait
// for its terminal state, then move on. When useResult is set, each
// step's result is appended to the next description. A step ending in any
// status other than completed halts the chain; the remaining specs are
// never spawned and the states gathered so far are returned.
//
// A step hitting stepTimeout also halts the chain. The timed out worker
// is left running and its state is included as the last entry.
func (o *Orchestrator) RunChain(ctx context.Context, specs []TaskSpec, useResult bool, origin tasks.Origin, stepTimeout time.Duration) ([]*tasks.Task, error) {
	if o.ctx == nil {
		return nil, ErrNotStarted
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("chain: no steps given")
	}
	for _, spec := range specs {
		if _, err := o.resolveProfile(spec.Profile, nil); err != nil {
			return nil, err
		}
	}

	ran := make([]*tasks.Task, 0, len(specs))
	prevResult := ""
	for i, spec := range specs {
		description := spec.Description
		if useResult && i > 0 && prevResult != "" {
			description += chainResultHeader + prevResult
		}

		t, err := o.Spawn(SpawnRequest{
			Description: description,
			Label:       spec.Label,
			Profile:     spec.Profile,
			Origin:      origin,
		})
		if err != nil {
			return ran, fmt.Errorf("chain step %d: %w", i+1, err)
		}

		state, err := o.AwaitTask(ctx, t.ID, stepTimeout)
		if state != nil {
			ran = append(ran, state)
		}
		o.publishChainStep(t.ID, i+1, len(specs), state)
		if err != nil {
			return ran, fmt.Errorf("chain step %d: %w", i+1, err)
		}
		if state.Status != tasks.StatusCompleted {
			return ran, nil
		}
		prevResult = state.Result
	}
	return ran, nil
}

func (o *Orchestrator) publishChainStep(taskID string, step, total int, state *tasks.Task) {
	status := "unknown"
	if state != nil {
		status = string(state.Status)
	}
	o.publish(events.NewTypedEventForTask(events.SourceOrchestrator, events.ChainStepPayload{
		Step:   step,
		Total:  total,
		Status: status,
	}, taskID))
}
