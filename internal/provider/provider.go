// Package provider abstracts model backends behind a single completion
// interface so the agent loop stays provider-agnostic.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType identifies the kind of a content block.
type BlockType string

const (
	// BlockText is plain text content.
	BlockText BlockType = "text"
	// BlockToolUse is a tool invocation requested by the model.
	BlockToolUse BlockType = "tool_use"
	// BlockToolResult carries the outcome of a tool invocation back to
	// the model.
	BlockToolResult BlockType = "tool_result"
)

// Block is one content block within a message or completion.
type Block struct {
	Type BlockType `json:"type"`
	// Text is set for BlockText.
	Text string `json:"text,omitempty"`
	// ToolID correlates a tool_use block with its tool_result.
	ToolID string `json:"tool_id,omitempty"`
	// ToolName is the tool being invoked (tool_use only).
	ToolName string `json:"tool_name,omitempty"`
	// ToolInput is the raw JSON arguments (tool_use only).
	ToolInput json.RawMessage `json:"tool_input,omitempty"`
	// IsError marks a tool_result as a failure.
	IsError bool `json:"is_error,omitempty"`
}

// Message is one turn in the conversation sent to the model.
type Message struct {
	Role   Role    `json:"role"`
	Blocks []Block `json:"blocks"`
}

// TextMessage builds a single-text-block message.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Blocks: []Block{{Type: BlockText, Text: text}}}
}

// ToolSpec describes a tool the model may call.
type ToolSpec struct {
	Name        string
	Description string
	// InputSchema holds the JSON Schema properties for the tool's
	// arguments.
	InputSchema map[string]any
	// Required lists the mandatory argument names.
	Required []string
}

// Request is a single completion request.
type Request struct {
	Model       string
	System      string
	Temperature float64
	MaxTokens   int
	Messages    []Message
	Tools       []ToolSpec
}

// StopReason reports why the model stopped generating.
type StopReason string

const (
	// StopEndTurn means the model finished its answer.
	StopEndTurn StopReason = "end_turn"
	// StopToolUse means the model paused to invoke tools.
	StopToolUse StopReason = "tool_use"
	// StopMaxTokens means generation hit the token limit.
	StopMaxTokens StopReason = "max_tokens"
)

// Completion is the model's response to a Request.
type Completion struct {
	Blocks     []Block
	StopReason StopReason
	TokensIn   int64
	TokensOut  int64
}

// Text concatenates all text blocks of the completion.
func (c *Completion) Text() string {
	var out string
	for _, b := range c.Blocks {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// ToolUses returns the tool_use blocks of the completion, in order.
func (c *Completion) ToolUses() []Block {
	var uses []Block
	for _, b := range c.Blocks {
		if b.Type == BlockToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

// Provider is a model backend.
type Provider interface {
	// Name returns the provider identifier (e.g. "anthropic").
	Name() string
	// Complete performs one completion call. It blocks until the model
	// responds or ctx is done.
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// Error wraps a provider failure with retry classification. Transient
// errors (rate limits, overload, 5xx) may be retried; permanent ones
// (bad request, auth) fail the task immediately.
type Error struct {
	Provider  string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("provider %s: %s error: %v", e.Provider, kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
