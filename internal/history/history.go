// Package history records completed exchanges in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alanmeadows/termbridge/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	source      TEXT NOT NULL,
	cmd         TEXT NOT NULL,
	cwd         TEXT NOT NULL DEFAULT '',
	result_cwd  TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL,
	output      TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exchanges_started ON exchanges(started_at);
`

// Entry is one stored exchange.
type Entry struct {
	ID        int64
	Source    string
	Cmd       string
	Cwd       string
	ResultCwd string
	Kind      string
	// Output holds the agent output, or the failure message when the agent
	// was not reached.
	Output    string
	StartedAt time.Time
	Duration  time.Duration
}

// Store is a history database. It implements session.Recorder.
type Store struct {
	db   *sql.DB
	path string
}

// DefaultPath returns $XDG_DATA_HOME/termbridge/history.db, falling back to
// ~/.local/share.
func DefaultPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			return ""
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "termbridge", "history.db")
}

// Open creates or opens the history database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history path is empty; set $HOME, $XDG_DATA_HOME or history.path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	// One writer at a time; the shell and note runs share the file.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Record stores e.
func (s *Store) Record(ctx context.Context, e session.Exchange) error {
	output := e.Outcome.Output
	if !e.Outcome.Reached() {
		output = e.Outcome.Message
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchanges (source, cmd, cwd, result_cwd, kind, output, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Source, e.Request.Cmd, e.Request.Cwd, e.Outcome.Cwd, e.Outcome.Kind.String(),
		output, e.StartedAt.UTC(), e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("recording exchange: %w", err)
	}
	slog.Debug("recorded exchange", "source", e.Source, "kind", e.Outcome.Kind)
	return nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, source, cmd, cwd, result_cwd, kind, output, started_at, duration_ms
		FROM exchanges ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ms int64
		if err := rows.Scan(&e.ID, &e.Source, &e.Cmd, &e.Cwd, &e.ResultCwd, &e.Kind, &e.Output, &e.StartedAt, &ms); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
