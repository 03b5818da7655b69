// Package mcp exposes registry tools over the Model Context Protocol.
package mcp

import (
	"sort"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dohr-michael/crew/internal/tools"
)

// toolSpecToMCPTool converts a tools.ToolSpec to an mcp.Tool with JSON Schema.
func toolSpecToMCPTool(spec *tools.ToolSpec) *mcpsdk.Tool {
	props, required := propertiesToSchema(spec.Parameters)

	inputSchema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		inputSchema["required"] = required
	}

	return &mcpsdk.Tool{
		Name:        spec.Name,
		Description: spec.Description,
		InputSchema: inputSchema,
	}
}

// propertiesToSchema converts a parameter map to JSON Schema properties
// plus the sorted list of required names.
func propertiesToSchema(params map[string]tools.ParamSpec) (map[string]any, []string) {
	props := make(map[string]any, len(params))
	var required []string

	for name, p := range params {
		props[name] = paramToSchema(p)
		if p.Required {
			required = append(required, name)
		}
	}

	sort.Strings(required)
	return props, required
}

// paramToSchema converts one parameter, recursing into array items and
// object properties.
func paramToSchema(p tools.ParamSpec) map[string]any {
	prop := map[string]any{
		"type": p.Type,
	}
	if p.Description != "" {
		prop["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		prop["enum"] = p.Enum
	}
	if p.Items != nil {
		prop["items"] = paramToSchema(*p.Items)
	}
	if len(p.Properties) > 0 {
		nested, required := propertiesToSchema(p.Properties)
		prop["properties"] = nested
		if len(required) > 0 {
			prop["required"] = required
		}
	}
	return prop
}
