// Package tools provides the native tools workers and the primary agent
// surface can call: shell exec, workspace file access, web search and
// fetch, plus the agent-management tools that drive the orchestrator.
package tools

// Manifest describes a tool bundle: metadata plus the specs of the tools
// it exposes.
type Manifest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Tools       []ToolSpec `json:"tools"`
}

// ToolSpec describes a single callable tool interface.
type ToolSpec struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Parameters  map[string]ParamSpec `json:"parameters,omitempty"`
}

// ParamSpec describes a single tool parameter.
type ParamSpec struct {
	Type        string               `json:"type"` // "string", "number", "boolean", "integer", "array", "object"
	Description string               `json:"description"`
	Required    bool                 `json:"required,omitempty"`
	Enum        []string             `json:"enum,omitempty"`
	Items       *ParamSpec           `json:"items,omitempty"`      // element schema when Type is "array"
	Properties  map[string]ParamSpec `json:"properties,omitempty"` // field schemas when Type is "object"
}
