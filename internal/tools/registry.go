// Package tools holds the functions agents may call and the registry that
// dispatches model tool calls to them.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/pessini/superpod-blog/internal/adapter/llm"
)

// ExecutorFunc runs a tool with the raw JSON arguments chosen by the model
// and returns the text handed back to it.
type ExecutorFunc func(ctx context.Context, args json.RawMessage) (string, error)

// Tool is a callable function exposed to models.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON schema object.
	Parameters map[string]any
	Exec       ExecutorFunc
}

// Definition converts the tool into the chat completion wire form.
func (t Tool) Definition() llm.Tool {
	params := t.Parameters
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return llm.Tool{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		},
	}
}

// Registry stores tools keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a new tool.
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if tool.Exec == nil {
		return fmt.Errorf("executor is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("executor already registered for %s", tool.Name)
	}
	r.tools[tool.Name] = tool
	return nil
}

// MustRegister adds a tool or panics.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names lists registered tools in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the wire definitions of the named tools, in order.
func (r *Registry) Definitions(names []string) ([]llm.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llm.Tool, 0, len(names))
	for _, n := range names {
		t, ok := r.tools[n]
		if !ok {
			return nil, fmt.Errorf("no executor registered for %s", n)
		}
		defs = append(defs, t.Definition())
	}
	return defs, nil
}

// Execute runs the executor for the tool name.
func (r *Registry) Execute(ctx context.Context, toolName string, args json.RawMessage) (string, error) {
	if toolName == "" {
		return "", fmt.Errorf("tool name is required")
	}
	t, ok := r.Get(toolName)
	if !ok {
		return "", fmt.Errorf("no executor registered for %s", toolName)
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	return t.Exec(ctx, args)
}
