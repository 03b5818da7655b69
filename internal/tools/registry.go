package tools

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Registry is a name-indexed set of tools. Register everything during
// setup; lookups afterwards are read-only, so a registry is safe to share
// across workers without locking.
type Registry struct {
	tools     map[string]tool.InvokableTool
	manifests map[string]*Manifest
	specs     map[string]*ToolSpec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:     make(map[string]tool.InvokableTool),
		manifests: make(map[string]*Manifest),
		specs:     make(map[string]*ToolSpec),
	}
}

// Register adds a tool under its name. Duplicates are rejected so a
// misconfigured setup fails at startup rather than at dispatch time.
func (r *Registry) Register(name string, t tool.InvokableTool, manifest *Manifest) error {
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	r.manifests[name] = manifest
	for i := range manifest.Tools {
		if manifest.Tools[i].Name == name {
			r.specs[name] = &manifest.Tools[i]
			break
		}
	}
	return nil
}

// Tool returns the tool registered under name, or nil.
func (r *Registry) Tool(name string) tool.InvokableTool {
	return r.tools[name]
}

// Manifest returns the manifest a tool was registered with, or nil.
func (r *Registry) Manifest(name string) *Manifest {
	return r.manifests[name]
}

// Spec returns the spec for a tool name, or nil.
func (r *Registry) Spec(name string) *ToolSpec {
	return r.specs[name]
}

// ToolNames returns all registered names, sorted.
func (r *Registry) ToolNames() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ToolsByNames returns the tools matching the given names. Unknown names
// are skipped.
func (r *Registry) ToolsByNames(names []string) []tool.InvokableTool {
	result := make([]tool.InvokableTool, 0, len(names))
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			result = append(result, t)
		}
	}
	return result
}

// Definitions returns the model-facing schemas for the named tools. A nil
// names slice selects every registered tool; an empty one selects none.
// Unknown names are skipped.
func (r *Registry) Definitions(ctx context.Context, names []string) []*schema.ToolInfo {
	if names == nil {
		names = r.ToolNames()
	}
	defs := make([]*schema.ToolInfo, 0, len(names))
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			continue
		}
		info, err := t.Info(ctx)
		if err != nil {
			slog.Warn("tool info failed", "tool", name, "error", err)
			continue
		}
		defs = append(defs, info)
	}
	return defs
}

// Execute dispatches a call to the named tool.
func (r *Registry) Execute(ctx context.Context, name, arguments string) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("tool %q not found", name)
	}
	return t.InvokableRun(ctx, arguments)
}
