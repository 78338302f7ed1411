// Package store provides SQLite-backed persistence for tasks and
// conversations. Every operation acquires its statement-scoped
// connection from the pool and releases it before returning; nothing
// holds a connection across calls.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the shared SQLite handle. TaskStore and ConversationStore
// are thin views over the same database.
type DB struct {
	db *sql.DB
}

// Open creates the data directory if needed, opens SQLite with WAL mode,
// and runs migrations.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "quill.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &DB{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *DB) Close() error {
	return s.db.Close()
}

// Tasks returns the task store view.
func (s *DB) Tasks() *TaskStore {
	return &TaskStore{db: s.db}
}

// Conversations returns the conversation store view.
func (s *DB) Conversations() *ConversationStore {
	return &ConversationStore{db: s.db}
}

func (s *DB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			id          TEXT PRIMARY KEY,
			owner_id    TEXT NOT NULL,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed')),
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_owner_status ON tasks(owner_id, status);

		CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL,
			title      TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_conversations_owner ON conversations(owner_id, updated_at);

		CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			seq             INTEGER NOT NULL,
			role            TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
			content         TEXT NOT NULL,
			created_at      TEXT NOT NULL,
			UNIQUE (conversation_id, seq)
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);

		CREATE TABLE IF NOT EXISTS tool_calls (
			id          TEXT PRIMARY KEY,
			message_id  TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			tool_name   TEXT NOT NULL,
			parameters  TEXT NOT NULL DEFAULT '{}',
			result      TEXT NOT NULL DEFAULT '{}',
			executed_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tool_calls_message ON tool_calls(message_id);
	`
	_, err := s.db.Exec(schema)
	return err
}
