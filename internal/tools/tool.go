// Package tools defines the callable tool specs exposed to the model:
// weather lookup, memory add/search, and artifact operations. Adapters
// never catch-and-swallow; errors propagate to the engine, which turns
// them into output-error parts visible to the renderer.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Tool is one callable tool spec: a typed input schema plus an execute
// step performing at most one external call.
type Tool struct {
	Name        string
	Description string
	// InputSchema is a JSON Schema object describing the expected input.
	InputSchema map[string]any
	// Execute runs the tool. The returned value is serialized as the
	// tool output; a returned error becomes the part's errorText.
	Execute func(ctx context.Context, input json.RawMessage) (any, error)
}

// Registry holds the tools available to a chat run, keyed by name.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds a registry from the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name] = t
	}
	return r
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names lists registered tool names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the registered tools ordered by name.
func (r *Registry) All() []Tool {
	names := r.Names()
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name])
	}
	return out
}

// Execute dispatches a call to the named tool.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (any, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return t.Execute(ctx, input)
}

func schemaObject(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
