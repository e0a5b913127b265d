// Package history provides the conversation history store.
// The core consumes it read-only: recent turns are supplied to the
// classifier as context. Writing turns is the caller's concern.
package history

import (
	"context"
	"time"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	// RoleUser marks a turn written by the user.
	RoleUser Role = "user"
	// RoleAssistant marks a turn produced by the system.
	RoleAssistant Role = "assistant"
)

// Turn is a single conversation turn.
type Turn struct {
	// Role is who produced the turn.
	Role Role `json:"role"`
	// Content is the turn's text.
	Content string `json:"content"`
	// CreatedAt is when the turn was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// Store supplies recent conversation turns.
type Store interface {
	// Recent returns up to n turns, oldest first.
	Recent(ctx context.Context, n int) ([]Turn, error)
	// Append records a new turn.
	Append(ctx context.Context, turn Turn) error
}
