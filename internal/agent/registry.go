package agent

import (
	"fmt"
	"time"

	"github.com/clayworks/clay/internal/provider"
	"github.com/clayworks/clay/internal/tools"
	"github.com/clayworks/clay/internal/trace"
	"github.com/clayworks/clay/pkg/models"
)

// Predicate decides whether an agent variant handles a task kind.
type Predicate func(kind models.TaskKind) bool

// Factory builds the agent for a matched task kind.
type Factory func(deps Deps) *Agent

// Deps carries the shared dependencies agent factories build from.
type Deps struct {
	// Providers maps provider names to backends.
	Providers map[string]provider.Provider
	// Tracer records run events; may be nil.
	Tracer *trace.Recorder
	// WorkDir is the directory tools operate in.
	WorkDir string
	// ToolTimeout is the per-invocation tool deadline.
	ToolTimeout time.Duration
	// MaxIterations caps model calls per task.
	MaxIterations int
	// RetryAttempts is the transient provider error retry count.
	RetryAttempts int
	// RetryBackoff is the initial retry backoff.
	RetryBackoff time.Duration
}

type registryEntry struct {
	match Predicate
	build Factory
}

// Registry maps task kinds to agent variants through an ordered list
// of (predicate, factory) pairs. The first matching predicate wins, so
// a catch-all entry belongs last.
type Registry struct {
	deps    Deps
	entries []registryEntry
}

// NewRegistry creates an empty registry with the given dependencies.
func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps}
}

// Register appends a (predicate, factory) pair.
func (r *Registry) Register(match Predicate, build Factory) {
	r.entries = append(r.entries, registryEntry{match: match, build: build})
}

// For returns an agent for the given task kind.
func (r *Registry) For(kind models.TaskKind) (*Agent, error) {
	for _, entry := range r.entries {
		if entry.match(kind) {
			return entry.build(r.deps), nil
		}
	}
	return nil, fmt.Errorf("no agent registered for task kind %q", kind)
}

// KindIs builds a predicate matching exactly one kind.
func KindIs(kind models.TaskKind) Predicate {
	return func(k models.TaskKind) bool { return k == kind }
}

// DefaultRegistry builds the standard variant set: coding agents get
// the full tool surface, research agents a read-only one, and a
// catch-all general agent handles everything else.
func DefaultRegistry(deps Deps) *Registry {
	r := NewRegistry(deps)

	r.Register(KindIs(models.KindCoding), func(d Deps) *Agent {
		return variant(d, systemPromptCoding, tools.Default(d.WorkDir))
	})
	r.Register(KindIs(models.KindResearch), func(d Deps) *Agent {
		return variant(d, systemPromptResearch, tools.ReadOnly(d.WorkDir))
	})
	r.Register(KindIs(models.KindCreative), func(d Deps) *Agent {
		return variant(d, systemPromptCreative, tools.ReadOnly(d.WorkDir))
	})
	r.Register(func(models.TaskKind) bool { return true }, func(d Deps) *Agent {
		return variant(d, systemPromptGeneral, tools.Default(d.WorkDir))
	})

	return r
}

func variant(d Deps, system string, registry *tools.Registry) *Agent {
	return New(Config{
		Providers:     d.Providers,
		Invoker:       tools.NewInvoker(registry, d.ToolTimeout),
		Tracer:        d.Tracer,
		System:        system,
		MaxIterations: d.MaxIterations,
		RetryAttempts: d.RetryAttempts,
		RetryBackoff:  d.RetryBackoff,
	})
}
