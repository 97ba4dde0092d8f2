package agentloop

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/droidpilot/droidpilot/llm"
)

// ParamType is the JSON-schema type of a tool parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
)

// ParamSpec describes one tool parameter.
type ParamSpec struct {
	Type        ParamType `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Min         *float64  `json:"minimum,omitempty"`
	Max         *float64  `json:"maximum,omitempty"`
}

// Handler executes one tool call. Arguments are validated against the
// ToolSpec before invocation. The returned string is the result payload
// shown to the model.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// ToolSpec is the full description of one tool: schema for the model,
// timeout and handler for the executor. Immutable after registration.
type ToolSpec struct {
	Name        string
	Description string
	Params      map[string]ParamSpec
	Timeout     time.Duration // per-call bound; zero uses the executor default
	Handler     Handler
}

// Definition renders the tool as a serializable definition for the
// model client.
func (s ToolSpec) Definition() llm.ToolDefinition {
	properties := make(map[string]any, len(s.Params))
	var required []string
	for name, p := range s.Params {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Min != nil {
			prop["minimum"] = *p.Min
		}
		if p.Max != nil {
			prop["maximum"] = *p.Max
		}
		properties[name] = prop
		if p.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	params := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		params["required"] = required
	}
	return llm.ToolDefinition{
		Name:        s.Name,
		Description: s.Description,
		Parameters:  params,
	}
}

// Registry is the static tool catalog. All registration happens at process
// start; Freeze makes it read-only so the model's view of available tools
// cannot change mid-task.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]ToolSpec
	frozen bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]ToolSpec)}
}

// Register adds a tool. It fails with DuplicateToolError on a name
// collision and FrozenRegistryError after Freeze.
func (r *Registry) Register(spec ToolSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return &FrozenRegistryError{Name: spec.Name}
	}
	if _, exists := r.tools[spec.Name]; exists {
		return &DuplicateToolError{Name: spec.Name}
	}
	r.tools[spec.Name] = spec
	return nil
}

// MustRegister registers a tool and panics on failure. Catalog wiring at
// process start is the only intended caller.
func (r *Registry) MustRegister(spec ToolSpec) {
	if err := r.Register(spec); err != nil {
		panic(err)
	}
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Resolve looks up a tool by name, failing with UnknownToolError.
func (r *Registry) Resolve(name string) (ToolSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.tools[name]
	if !ok {
		return ToolSpec{}, &UnknownToolError{Name: name}
	}
	return spec, nil
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Definitions returns serializable schemas for every tool, sorted by name
// so the model sees a stable catalog.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llm.ToolDefinition, 0, len(r.tools))
	for _, spec := range r.tools {
		defs = append(defs, spec.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
