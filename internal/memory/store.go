// Package memory persists conversation turns per session and derives the
// recent-context block fed into the RAG pipeline for follow-up questions.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/smartxdr/core/internal/cache"
)

const (
	// recentTurns is how many turns of history feed into a query.
	recentTurns = 6
	// keepTurns caps stored history per session; older turns are pruned.
	keepTurns = 50
	// maxTurnChars truncates one turn's content inside the history block.
	maxTurnChars = 500
)

const schema = `
CREATE TABLE IF NOT EXISTS conversation_turns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    role TEXT NOT NULL CHECK(role IN ('user','assistant')),
    content TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON conversation_turns(session_id, id);
`

// Store is a SQLite-backed conversation memory.
type Store struct {
	db *sql.DB
}

// Open creates or opens the conversation database at the given path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating memory directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening conversation db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging conversation db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating conversation db: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenMemory creates an in-memory store, useful for testing.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory conversation db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating conversation db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// AddTurn records one turn of a conversation and prunes history beyond
// the per-session cap.
func (s *Store) AddTurn(ctx context.Context, sessionID, role, content string) error {
	if sessionID == "" {
		return nil
	}
	if role != "user" && role != "assistant" {
		return fmt.Errorf("invalid role %q", role)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_turns (session_id, role, content) VALUES (?, ?, ?)`,
		sessionID, role, content); err != nil {
		return fmt.Errorf("recording turn: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_turns WHERE session_id = ? AND id NOT IN (
			SELECT id FROM conversation_turns WHERE session_id = ? ORDER BY id DESC LIMIT ?)`,
		sessionID, sessionID, keepTurns)
	if err != nil {
		return fmt.Errorf("pruning turns: %w", err)
	}
	return nil
}

// RecentContext returns the formatted tail of the session's history and
// the infrastructure entities mentioned in it. An unknown session yields
// empty history and no error.
func (s *Store) RecentContext(ctx context.Context, sessionID string) (string, []string, error) {
	if sessionID == "" {
		return "", nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM conversation_turns
		 WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, recentTurns)
	if err != nil {
		return "", nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	defer rows.Close()

	type turn struct{ role, content string }
	var turns []turn
	for rows.Next() {
		var t turn
		if err := rows.Scan(&t.role, &t.content); err != nil {
			return "", nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return "", nil, fmt.Errorf("reading turns: %w", err)
	}
	if len(turns) == 0 {
		return "", nil, nil
	}

	// Rows come newest-first; render oldest-first.
	var b strings.Builder
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		label := "User"
		if t.role == "assistant" {
			label = "Assistant"
		}
		content := t.content
		if len(content) > maxTurnChars {
			content = content[:maxTurnChars] + "..."
		}
		fmt.Fprintf(&b, "%s: %s\n", label, content)
	}

	history := b.String()
	return history, cache.InfraEntities(history), nil
}
