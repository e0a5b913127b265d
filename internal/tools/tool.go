// Package tools implements the tool surface agents use to act on the
// world: filesystem access, shell execution, and search.
package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/clayworks/clay/internal/provider"
)

// ErrUnknownTool is returned when an agent requests a tool that is not
// registered.
var ErrUnknownTool = errors.New("unknown tool")

// ErrToolTimeout is returned when a tool invocation exceeds its
// deadline on the final attempt.
var ErrToolTimeout = errors.New("tool timed out")

// Tool is a single capability an agent can invoke. Validation and
// execution are separate steps: arguments are checked before any side
// effect happens, so a malformed call never partially executes.
type Tool interface {
	// Name returns the tool identifier used in model tool calls.
	Name() string
	// Spec returns the schema advertised to the model.
	Spec() provider.ToolSpec
	// Validate checks the raw JSON arguments without executing.
	Validate(args json.RawMessage) error
	// Execute runs the tool. It must respect ctx cancellation.
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}
