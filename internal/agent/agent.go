// Package agent implements the model call and tool execution cycle
// that carries out a single task.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/clayworks/clay/internal/provider"
	"github.com/clayworks/clay/internal/tools"
	"github.com/clayworks/clay/internal/trace"
	"github.com/clayworks/clay/pkg/models"
)

// ErrIterationLimit is returned when a task exhausts its model call
// budget without finishing.
var ErrIterationLimit = errors.New("iteration limit exceeded")

// Task is one unit of work handed to an agent.
type Task struct {
	// NodeID identifies the graph node this task belongs to. Empty for
	// single-task runs.
	NodeID string
	// Description is what the agent is asked to do.
	Description string
	// Kind is the task kind this agent was selected for.
	Kind models.TaskKind
	// Binding is the model the router chose for this task.
	Binding models.ModelBinding
}

// Config contains the settings for an Agent.
type Config struct {
	// Providers maps provider names to backends.
	Providers map[string]provider.Provider
	// Invoker runs the agent's tool calls.
	Invoker *tools.Invoker
	// Tracer records run events; may be nil.
	Tracer *trace.Recorder
	// System is the system prompt for this agent variant.
	System string
	// MaxIterations caps model calls per task.
	MaxIterations int
	// RetryAttempts is how many times a transient provider error is retried.
	RetryAttempts int
	// RetryBackoff is the initial backoff before the first retry; it
	// doubles on each subsequent attempt.
	RetryBackoff time.Duration
}

// Agent executes tasks by alternating model calls with tool execution
// until the model ends its turn.
type Agent struct {
	providers     map[string]provider.Provider
	invoker       *tools.Invoker
	tracer        *trace.Recorder
	system        string
	maxIterations int
	retryAttempts int
	retryBackoff  time.Duration
}

// New creates an Agent from the given config.
func New(cfg Config) *Agent {
	maxIter := cfg.MaxIterations
	if maxIter == 0 {
		maxIter = 20
	}
	backoff := cfg.RetryBackoff
	if backoff == 0 {
		backoff = 500 * time.Millisecond
	}
	return &Agent{
		providers:     cfg.Providers,
		invoker:       cfg.Invoker,
		tracer:        cfg.Tracer,
		system:        cfg.System,
		maxIterations: maxIter,
		retryAttempts: cfg.RetryAttempts,
		retryBackoff:  backoff,
	}
}

// RunTask executes one task to completion. The returned result is
// always non-nil and carries whatever tokens, output, and tool calls
// accumulated before the run ended. The error is non-nil when the run
// did not finish cleanly: iteration limit, unknown tool, tool timeout,
// a permanent provider error, or cancellation.
func (a *Agent) RunTask(ctx context.Context, task Task) (*models.AgentResult, error) {
	start := time.Now()
	result := &models.AgentResult{}

	backend, ok := a.providers[task.Binding.Provider]
	if !ok {
		return a.fail(result, start, fmt.Errorf("no backend for provider %q", task.Binding.Provider))
	}

	specs := a.invoker.Registry().Specs()
	messages := []provider.Message{
		provider.TextMessage(provider.RoleUser, task.Description),
	}

	for result.Iterations < a.maxIterations {
		if err := ctx.Err(); err != nil {
			return a.fail(result, start, err)
		}
		result.Iterations++

		completion, err := a.complete(ctx, backend, provider.Request{
			Model:       task.Binding.Model,
			System:      a.system,
			Temperature: task.Binding.Temperature,
			MaxTokens:   task.Binding.MaxTokens,
			Messages:    messages,
			Tools:       specs,
		})
		if err != nil {
			return a.fail(result, start, err)
		}
		result.TokensIn += completion.TokensIn
		result.TokensOut += completion.TokensOut

		var assistantBlocks []provider.Block
		var toolResultBlocks []provider.Block
		var textOutput string

		for _, block := range completion.Blocks {
			switch block.Type {
			case provider.BlockText:
				textOutput += block.Text
				assistantBlocks = append(assistantBlocks, block)

			case provider.BlockToolUse:
				assistantBlocks = append(assistantBlocks, block)

				record, invErr := a.invoke(ctx, task.NodeID, result, block.ToolName, block.ToolInput)
				if errors.Is(invErr, tools.ErrToolTimeout) {
					// One retry per timed-out call. Each attempt is its
					// own audit record; a second timeout is fatal.
					log.Printf("[agent] tool %s timed out, retrying once", block.ToolName)
					record, invErr = a.invoke(ctx, task.NodeID, result, block.ToolName, block.ToolInput)
				}
				if invErr != nil {
					return a.fail(result, start, invErr)
				}

				toolResultBlocks = append(toolResultBlocks, provider.Block{
					Type:    provider.BlockToolResult,
					ToolID:  block.ToolID,
					Text:    record.Output,
					IsError: record.Outcome != models.ToolSuccess,
				})
			}
		}

		switch completion.StopReason {
		case provider.StopEndTurn:
			result.Status = models.ResultComplete
			result.Output = textOutput
			result.Duration = time.Since(start)
			return result, nil
		case provider.StopMaxTokens:
			// The answer was cut off; report partial output rather than
			// pretending the task finished.
			result.Status = models.ResultNeedsMoreWork
			result.Output = textOutput
			result.Duration = time.Since(start)
			return result, nil
		}

		messages = append(messages, provider.Message{Role: provider.RoleAssistant, Blocks: assistantBlocks})
		if len(toolResultBlocks) > 0 {
			messages = append(messages, provider.Message{Role: provider.RoleUser, Blocks: toolResultBlocks})
		}
	}

	return a.fail(result, start, fmt.Errorf("%w after %d model calls", ErrIterationLimit, result.Iterations))
}

// invoke runs one tool call through the invoker, appending its audit
// record to the result and tracing it.
func (a *Agent) invoke(ctx context.Context, nodeID string, result *models.AgentResult, name string, args json.RawMessage) (models.ToolInvocation, error) {
	record, err := a.invoker.Invoke(ctx, name, args)
	result.ToolCalls = append(result.ToolCalls, record)
	a.tracer.Record(trace.Event{
		Component: "agent",
		Op:        "tool_call",
		NodeID:    nodeID,
		Detail:    fmt.Sprintf("%s: %s", record.Tool, record.Outcome),
		Duration:  record.Duration,
	})
	return record, err
}

// complete performs one model call, retrying transient provider errors
// with exponential backoff.
func (a *Agent) complete(ctx context.Context, backend provider.Provider, req provider.Request) (*provider.Completion, error) {
	backoff := a.retryBackoff
	for attempt := 0; ; attempt++ {
		completion, err := backend.Complete(ctx, req)
		if err == nil {
			return completion, nil
		}

		var perr *provider.Error
		if !errors.As(err, &perr) || !perr.Transient || attempt >= a.retryAttempts {
			return nil, err
		}

		log.Printf("[agent] transient provider error (attempt %d/%d), retrying in %s: %v",
			attempt+1, a.retryAttempts, backoff, err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
}

// fail finalizes the result for an unclean run end.
func (a *Agent) fail(result *models.AgentResult, start time.Time, err error) (*models.AgentResult, error) {
	result.Status = models.ResultFailed
	result.Error = err.Error()
	result.Duration = time.Since(start)
	return result, err
}
