package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/clayworks/clay/pkg/models"
)

// Invoker runs tool calls on behalf of agents. Every invocation gets a
// deadline; the invoker never retries on its own, so each call maps to
// exactly one audit record. Retry policy lives in the agent loop.
type Invoker struct {
	registry *Registry
	timeout  time.Duration
}

// NewInvoker creates an Invoker over the given registry. timeout is
// the per-invocation deadline.
func NewInvoker(registry *Registry, timeout time.Duration) *Invoker {
	return &Invoker{registry: registry, timeout: timeout}
}

// Registry returns the underlying registry.
func (i *Invoker) Registry() *Registry {
	return i.registry
}

// Invoke validates and executes one tool call, returning its audit
// record. The returned error is non-nil for conditions the agent must
// act on: an unknown tool, a timeout, or cancellation. Ordinary tool
// failures are reported in the record's Outcome and fed back to the
// model.
func (i *Invoker) Invoke(ctx context.Context, name string, args json.RawMessage) (models.ToolInvocation, error) {
	inv := models.ToolInvocation{Tool: name, Arguments: args}
	start := time.Now()

	tool, err := i.registry.Get(name)
	if err != nil {
		inv.Outcome = models.ToolFailure
		inv.Output = err.Error()
		inv.Duration = time.Since(start)
		return inv, err
	}

	if err := tool.Validate(args); err != nil {
		inv.Outcome = models.ToolFailure
		inv.Output = fmt.Sprintf("invalid arguments: %v", err)
		inv.Duration = time.Since(start)
		return inv, nil
	}

	output, err := i.runOnce(ctx, tool, args)
	inv.Duration = time.Since(start)

	switch {
	case err == nil:
		inv.Outcome = models.ToolSuccess
		inv.Output = output
		return inv, nil
	case ctx.Err() != nil:
		// The run itself was cancelled; propagate, don't blame the tool.
		inv.Outcome = models.ToolFailure
		inv.Output = ctx.Err().Error()
		return inv, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		inv.Outcome = models.ToolTimedOut
		inv.Output = fmt.Sprintf("timed out after %s", i.timeout)
		return inv, fmt.Errorf("%s: %w", name, ErrToolTimeout)
	default:
		inv.Outcome = models.ToolFailure
		inv.Output = err.Error()
		return inv, nil
	}
}

// runOnce executes the tool under the invoker's deadline. The tool runs
// in its own goroutine so even a tool that ignores ctx cannot block the
// agent past the deadline.
func (i *Invoker) runOnce(ctx context.Context, tool Tool, args json.RawMessage) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	type result struct {
		output string
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		output, err := tool.Execute(callCtx, args)
		ch <- result{output, err}
	}()

	select {
	case r := <-ch:
		return r.output, r.err
	case <-callCtx.Done():
		return "", callCtx.Err()
	}
}
