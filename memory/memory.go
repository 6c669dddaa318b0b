// Package memory persists chat history per session, behind a Store
// seam so deployments can choose an in-process LRU or Redis.
package memory

import (
	"context"

	"github.com/go-openapi/strfmt"
)

// Entry is one persisted chat turn.
type Entry struct {
	RunID     string          `json:"run_id,omitempty"`
	Role      string          `json:"role"`
	Sender    string          `json:"sender,omitempty"`
	Content   string          `json:"content"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Store keeps per-session conversation history in insertion order.
type Store interface {
	Append(ctx context.Context, sessionID string, entry Entry) error
	// History returns the most recent entries, oldest first. A
	// non-positive limit returns everything.
	History(ctx context.Context, sessionID string, limit int) ([]Entry, error)
	Clear(ctx context.Context, sessionID string) error
}
