package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/dan-solli/formflow/pkg/form"
)

// SQLiteStore implements SessionStore using SQLite as the backend.
type SQLiteStore struct {
	db    *sql.DB
	cache *stateCache
}

// NewSQLiteStore creates a new SQLite-backed session store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
// Creates tables and indexes if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db, cache: newStateCache()}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		form_schema TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		last_active DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS form_states (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		state_data TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_form_states_session ON form_states(session_id);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateSession registers a new session and returns its generated id.
func (s *SQLiteStore) CreateSession(ctx context.Context, userID, clientID, formSchema string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user id cannot be empty", ErrInvalidConfig)
	}
	if clientID == "" {
		return "", fmt.Errorf("%w: client id cannot be empty", ErrInvalidConfig)
	}
	if formSchema == "" {
		return "", fmt.Errorf("%w: form schema name cannot be empty", ErrInvalidConfig)
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, client_id, form_schema, active, created_at, last_active)
		 VALUES (?, ?, ?, ?, 1, ?, ?)`,
		id, userID, clientID, formSchema, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	return id, nil
}

// GetSession retrieves session metadata by id.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	var active int

	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, client_id, form_schema, active, created_at, last_active
		 FROM sessions WHERE id = ?`, sessionID).Scan(
		&session.ID,
		&session.UserID,
		&session.ClientID,
		&session.FormSchema,
		&active,
		&session.CreatedAt,
		&session.LastActive,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session.Active = active != 0
	return &session, nil
}

// SaveState appends a new state version to the session's history and updates
// the latest-state cache.
func (s *SQLiteStore) SaveState(ctx context.Context, sessionID string, state *form.State) error {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return err
	}

	if state.CreatedAt.IsZero() {
		state.CreatedAt = time.Now().UTC()
	}

	stateData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO form_states (session_id, state_data, progress, created_at)
		 VALUES (?, ?, ?, ?)`,
		sessionID, string(stateData), state.Progress, state.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE sessions SET last_active = ? WHERE id = ?",
		time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}

	s.cache.put(sessionID, state)
	return nil
}

// LatestState returns the session's most recent state, or (nil, nil) when the
// session exists but has no recorded state. Served from the cache when warm.
func (s *SQLiteStore) LatestState(ctx context.Context, sessionID string) (*form.State, error) {
	if state := s.cache.get(sessionID); state != nil {
		return state, nil
	}

	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	var stateData string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_data FROM form_states
		 WHERE session_id = ? ORDER BY id DESC LIMIT 1`, sessionID).Scan(&stateData)

	if err == sql.ErrNoRows {
		return nil, nil // Fresh session, no state yet
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest state: %w", err)
	}

	var state form.State
	if err := json.Unmarshal([]byte(stateData), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	s.cache.put(sessionID, &state)
	return &state, nil
}

// StateHistory returns all stored states for a session, oldest first.
func (s *SQLiteStore) StateHistory(ctx context.Context, sessionID string) ([]*form.State, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT state_data FROM form_states
		 WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query state history: %w", err)
	}
	defer rows.Close()

	var history []*form.State
	for rows.Next() {
		var stateData string
		if err := rows.Scan(&stateData); err != nil {
			return nil, fmt.Errorf("failed to scan state: %w", err)
		}

		var state form.State
		if err := json.Unmarshal([]byte(stateData), &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state: %w", err)
		}
		history = append(history, &state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating states: %w", err)
	}

	return history, nil
}

// SaveMessage appends a chat message to the session log.
func (s *SQLiteStore) SaveMessage(ctx context.Context, sessionID, role, content string) error {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (session_id, role, content, created_at)
		 VALUES (?, ?, ?, ?)`,
		sessionID, role, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

// Messages returns the session's chat log, oldest first.
func (s *SQLiteStore) Messages(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM chat_messages
		 WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var msg ChatMessage
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// CloseSession marks a session inactive. State history is retained.
func (s *SQLiteStore) CloseSession(ctx context.Context, sessionID string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET active = 0 WHERE id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	s.cache.drop(sessionID)
	return nil
}

// DeleteSession removes a session and all associated states and messages.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Children first, then the session row
	if _, err := tx.ExecContext(ctx, "DELETE FROM chat_messages WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM form_states WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete states: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	s.cache.drop(sessionID)
	return nil
}

// SessionCount returns the number of sessions in the store.
func (s *SQLiteStore) SessionCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// StateCount returns the total number of stored state versions.
func (s *SQLiteStore) StateCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM form_states").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count states: %w", err)
	}
	return count, nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Compile-time interface check
var _ SessionStore = (*SQLiteStore)(nil)
