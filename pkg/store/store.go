// Package store persists form-filling sessions and their state history
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dan-solli/formflow/pkg/form"
)

// Sentinel errors returned by SessionStore implementations
var (
	// ErrSessionNotFound is returned for operations referencing an unknown session id
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidConfig is returned when required identifiers are empty
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Session holds the identity and bookkeeping of one form-filling conversation.
// A session is created once for a (user, client, schema) triple and never
// changes schema afterwards.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ClientID   string    `json:"client_id"`
	FormSchema string    `json:"form_schema"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// ChatMessage is one logged exchange line within a session.
type ChatMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore is the persistence boundary for sessions and their append-only
// FormState history. Implementations must be safe for concurrent use across
// sessions; per-session write ordering is the engine's responsibility.
type SessionStore interface {
	// CreateSession registers a new session and returns its id.
	// Fails with ErrInvalidConfig when any identifier is empty.
	CreateSession(ctx context.Context, userID, clientID, formSchema string) (string, error)

	// GetSession returns session metadata, or ErrSessionNotFound.
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// SaveState appends a new state version to the session's history.
	// Fails with ErrSessionNotFound for unknown sessions.
	SaveState(ctx context.Context, sessionID string, state *form.State) error

	// LatestState returns the most recent state, or (nil, nil) for a session
	// that exists but has no recorded state yet.
	LatestState(ctx context.Context, sessionID string) (*form.State, error)

	// StateHistory returns all stored states, oldest first.
	StateHistory(ctx context.Context, sessionID string) ([]*form.State, error)

	// SaveMessage appends a chat message to the session log.
	SaveMessage(ctx context.Context, sessionID, role, content string) error

	// Messages returns the chat log, oldest first.
	Messages(ctx context.Context, sessionID string) ([]ChatMessage, error)

	// CloseSession marks a session inactive. State history is retained.
	CloseSession(ctx context.Context, sessionID string) error

	// DeleteSession removes a session and all its states and messages.
	DeleteSession(ctx context.Context, sessionID string) error

	// Close releases store resources.
	Close() error
}
