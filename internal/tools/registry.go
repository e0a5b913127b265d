package tools

import (
	"fmt"
	"sync"

	"github.com/clayworks/clay/internal/provider"
)

// Registry holds the tools available to agents. Registration happens
// at startup; lookups are concurrent-safe for the agent pool.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering a duplicate name is an error.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownTool)
	}
	return t, nil
}

// Specs returns the schemas of all registered tools in registration order.
func (r *Registry) Specs() []provider.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]provider.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec())
	}
	return specs
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Default builds a registry with the full builtin tool set rooted at
// workDir.
func Default(workDir string) *Registry {
	r := NewRegistry()
	for _, t := range []Tool{
		NewReadFile(workDir),
		NewWriteFile(workDir),
		NewEditFile(workDir),
		NewBash(workDir),
		NewGlob(workDir),
		NewGrep(workDir),
		NewListDir(workDir),
	} {
		// Builtin names are unique; a conflict here is a programming error.
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// ReadOnly builds a registry with only non-mutating tools, for agents
// that gather information but must not change the workspace.
func ReadOnly(workDir string) *Registry {
	r := NewRegistry()
	for _, t := range []Tool{
		NewReadFile(workDir),
		NewGlob(workDir),
		NewGrep(workDir),
		NewListDir(workDir),
	} {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}
