package models

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/crew/internal/events"
)

// ModelSource resolves a provider name to a usable chat model.
type ModelSource interface {
	Resolve(ctx context.Context, name string) (model.ToolCallingChatModel, ProviderInfo, error)
}

// Params carries per-call overrides resolved from a worker profile.
type Params struct {
	Provider    string // registry provider name; empty selects the default
	Temperature *float32
	MaxTokens   int
}

// Chat runs completions against a model source and publishes model call
// events for the usage ledger and live monitors.
type Chat struct {
	source ModelSource
	bus    *events.Bus
}

// NewChat creates a Chat over the given model source.
func NewChat(source ModelSource, bus *events.Bus) *Chat {
	return &Chat{source: source, bus: bus}
}

// Generate runs one completion over the conversation with the given tools
// bound. The task ID, when present on the context, is attached to the
// published events.
func (c *Chat) Generate(ctx context.Context, msgs []*schema.Message, tools []*schema.ToolInfo, p Params) (*schema.Message, error) {
	m, info, err := c.source.Resolve(ctx, p.Provider)
	if err != nil {
		return nil, err
	}

	if len(tools) > 0 {
		m, err = m.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("bind tools: %w", err)
		}
	}

	var opts []model.Option
	if p.Temperature != nil {
		opts = append(opts, model.WithTemperature(*p.Temperature))
	}
	if p.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(p.MaxTokens))
	}

	started := time.Now()
	c.publish(ctx, events.ModelCallPayload{
		Phase:        "started",
		Model:        info.Model,
		Provider:     info.Name,
		MessageCount: len(msgs),
	})

	out, err := m.Generate(ctx, msgs, opts...)
	if err != nil {
		err = HandleError(err)
		c.publish(ctx, events.ModelCallPayload{
			Phase:        "failed",
			Model:        info.Model,
			Provider:     info.Name,
			MessageCount: len(msgs),
			Duration:     time.Since(started),
			Error:        err.Error(),
		})
		return nil, err
	}

	payload := events.ModelCallPayload{
		Phase:        "completed",
		Model:        info.Model,
		Provider:     info.Name,
		MessageCount: len(msgs),
		Duration:     time.Since(started),
	}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		payload.TokensInput = out.ResponseMeta.Usage.PromptTokens
		payload.TokensOutput = out.ResponseMeta.Usage.CompletionTokens
	}
	c.publish(ctx, payload)

	return out, nil
}

func (c *Chat) publish(ctx context.Context, payload events.ModelCallPayload) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.NewTypedEventForTask(events.SourceModel, payload, events.TaskIDFromContext(ctx)))
}

var _ ModelSource = (*Registry)(nil)
