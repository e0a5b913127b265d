package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a Store backed by an SQLite database.
type SQLiteStore struct {
	conn *sql.DB
	path string
}

// Open opens (creating if needed) an SQLite history store at the given
// path. WAL mode is enabled for concurrent reads.
func Open(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)
	`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create turns table: %w", err)
	}

	return &SQLiteStore{conn: conn, path: path}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Recent returns up to n turns, oldest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Turn, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT role, content, created_at FROM (
			SELECT id, role, content, created_at
			FROM turns ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var createdAt string
		if err := rows.Scan(&t.Role, &t.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			t.CreatedAt = parsed
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Append records a new turn.
func (s *SQLiteStore) Append(ctx context.Context, turn Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	_, err := s.conn.ExecContext(ctx,
		"INSERT INTO turns (role, content, created_at) VALUES (?, ?, ?)",
		turn.Role, turn.Content, turn.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}
