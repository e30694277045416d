package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dan-solli/formflow/pkg/form"
)

// MemoryStore is an in-memory SessionStore for tests and short-lived runs.
// It implements the same append-only semantics as SQLiteStore without
// durability.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	states   map[string][]*form.State
	messages map[string][]ChatMessage
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		states:   make(map[string][]*form.State),
		messages: make(map[string][]ChatMessage),
	}
}

// CreateSession registers a new session and returns its generated id.
func (m *MemoryStore) CreateSession(ctx context.Context, userID, clientID, formSchema string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user id cannot be empty", ErrInvalidConfig)
	}
	if clientID == "" {
		return "", fmt.Errorf("%w: client id cannot be empty", ErrInvalidConfig)
	}
	if formSchema == "" {
		return "", fmt.Errorf("%w: form schema name cannot be empty", ErrInvalidConfig)
	}

	now := time.Now().UTC()
	session := &Session{
		ID:         uuid.New().String(),
		UserID:     userID,
		ClientID:   clientID,
		FormSchema: formSchema,
		Active:     true,
		CreatedAt:  now,
		LastActive: now,
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	return session.ID, nil
}

// GetSession retrieves session metadata by id.
func (m *MemoryStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	copied := *session
	return &copied, nil
}

// SaveState appends a new state version to the session's history.
func (m *MemoryStore) SaveState(ctx context.Context, sessionID string, state *form.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	if state.CreatedAt.IsZero() {
		state.CreatedAt = time.Now().UTC()
	}

	m.states[sessionID] = append(m.states[sessionID], state.Clone())
	session.LastActive = time.Now().UTC()
	return nil
}

// LatestState returns the most recent state, or (nil, nil) for a fresh session.
func (m *MemoryStore) LatestState(ctx context.Context, sessionID string) (*form.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	history := m.states[sessionID]
	if len(history) == 0 {
		return nil, nil
	}
	return history[len(history)-1].Clone(), nil
}

// StateHistory returns all stored states, oldest first.
func (m *MemoryStore) StateHistory(ctx context.Context, sessionID string) ([]*form.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	history := m.states[sessionID]
	copied := make([]*form.State, len(history))
	for i, state := range history {
		copied[i] = state.Clone()
	}
	return copied, nil
}

// SaveMessage appends a chat message to the session log.
func (m *MemoryStore) SaveMessage(ctx context.Context, sessionID, role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	m.messages[sessionID] = append(m.messages[sessionID], ChatMessage{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// Messages returns the chat log, oldest first.
func (m *MemoryStore) Messages(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	messages := m.messages[sessionID]
	copied := make([]ChatMessage, len(messages))
	copy(copied, messages)
	return copied, nil
}

// CloseSession marks a session inactive.
func (m *MemoryStore) CloseSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	session.Active = false
	return nil
}

// DeleteSession removes a session and all associated data.
func (m *MemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	delete(m.sessions, sessionID)
	delete(m.states, sessionID)
	delete(m.messages, sessionID)
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// Compile-time interface check
var _ SessionStore = (*MemoryStore)(nil)
