// Package store persists users, conversation threads, and messages in
// SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database connection.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens a SQLite database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &Store{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Today returns the current calendar date (local server date) as
// YYYY-MM-DD. Quota resets key off this value.
func Today() string {
	return time.Now().Format("2006-01-02")
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalUsers    int
	TotalThreads  int
	TotalMessages int
	AnalysesToday int
}

// GetStats returns aggregate counts for the status command.
func (s *Store) GetStats() (*Stats, error) {
	st := &Stats{}
	queries := []struct {
		dst   *int
		query string
		args  []any
	}{
		{&st.TotalUsers, "SELECT COUNT(*) FROM users", nil},
		{&st.TotalThreads, "SELECT COUNT(*) FROM threads", nil},
		{&st.TotalMessages, "SELECT COUNT(*) FROM messages", nil},
		// created_at is stored in UTC, so compare against the UTC date.
		{&st.AnalysesToday, "SELECT COUNT(*) FROM messages WHERE date(created_at) = date('now')", nil},
	}
	for _, q := range queries {
		if err := s.conn.QueryRow(q.query, q.args...).Scan(q.dst); err != nil {
			return nil, err
		}
	}
	return st, nil
}
