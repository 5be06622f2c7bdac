package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when an operation references an unknown session.
var ErrNotFound = errors.New("session not found")

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in a session's turn log.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Session is a named conversation context. The system prompt is session-level
// configuration and never appears in the turn log.
type Session struct {
	ID           string `json:"session_id"`
	Name         string `json:"name"`
	CreatedAt    string `json:"created_at"`
	SystemPrompt string `json:"-"`
}

// Store owns all session state. Implementations must be safe for concurrent
// use; run-level serialization (read log, infer, append) is handled by the
// relay's per-session lock, not here.
type Store interface {
	// Create allocates a session with a fresh id and a "Chat N" default name.
	Create(ctx context.Context) (*Session, error)
	// Ensure returns the session with the given id, lazily creating it. The
	// streaming path uses this to tolerate client-minted identifiers.
	Ensure(ctx context.Context, id string) (*Session, error)
	// List returns all sessions in creation order.
	List(ctx context.Context) ([]*Session, error)
	// Rename fails with ErrNotFound for unknown ids.
	Rename(ctx context.Context, id string, name string) error
	// Delete is idempotent; deleting an unknown id is a no-op.
	Delete(ctx context.Context, id string) error
	// Reset clears the turn log and the stored system prompt.
	Reset(ctx context.Context, id string) error
	// Messages returns the turn log, failing with ErrNotFound for unknown ids.
	Messages(ctx context.Context, id string) ([]Message, error)
	// Import replaces the turn log wholesale, stamping messages that lack a
	// timestamp. Returns the number of messages stored.
	Import(ctx context.Context, id string, msgs []Message) (int, error)
	// Append adds one message to the turn log, stamping it if needed.
	Append(ctx context.Context, id string, msg Message) error
	SystemPrompt(ctx context.Context, id string) (string, error)
	SetSystemPrompt(ctx context.Context, id string, prompt string) error
}

func now() string {
	return time.Now().Format(time.RFC3339Nano)
}

func stamped(msg Message) Message {
	if msg.Timestamp == "" {
		msg.Timestamp = now()
	}
	return msg
}
