// Package tool defines the engine's invocation boundary: named tools that
// take a parameter mapping and asynchronously produce a result or fail. The
// Registry is the Invoker handed to the engine.
package tool

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/dwasnwk/oktyv/errors"
)

// Tool is an external, opaque unit of work invoked by name with a parameter
// mapping. Implementations must be safe for concurrent invocation; the
// engine will call Invoke from many goroutines.
type Tool interface {
	// Name returns the unique tool name, e.g. "http.request".
	Name() string
	// IsAvailable reports whether the tool is ready to handle invocations.
	IsAvailable(ctx context.Context) bool
	// Invoke executes the tool with resolved parameters.
	Invoke(ctx context.Context, params map[string]any) (any, error)
}

// Registry provides named tool lookup and dispatch.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry, replacing any previous tool with the
// same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns sorted names of all registered tools.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke dispatches to the named tool. It satisfies the engine's Invoker
// interface.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]any) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, apperrors.ToolNotFound(name)
	}
	if !t.IsAvailable(ctx) {
		return nil, apperrors.ServiceUnavailable(name)
	}
	return t.Invoke(ctx, params)
}
