// Package state persists orchestration runs and their task nodes to
// SQLite so past runs can be inspected after the process exits.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/clayworks/clay/pkg/models"
)

// DB wraps an SQLite connection with run persistence operations.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens an SQLite database at the given path, creating parent
// directories if needed. WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Runs},
		{2, migrationV2Nodes},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Runs = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	request TEXT NOT NULL,
	tier TEXT NOT NULL,
	kind TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'running',
	summary TEXT,
	tokens_in INTEGER NOT NULL DEFAULT 0,
	tokens_out INTEGER NOT NULL DEFAULT 0,
	started_at DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

const migrationV2Nodes = `
CREATE TABLE IF NOT EXISTS nodes (
	run_id TEXT NOT NULL REFERENCES runs(id),
	node_id TEXT NOT NULL,
	description TEXT NOT NULL,
	status TEXT NOT NULL,
	priority INTEGER NOT NULL DEFAULT 0,
	skip_cause TEXT,
	error TEXT,
	output TEXT,
	tokens_in INTEGER NOT NULL DEFAULT 0,
	tokens_out INTEGER NOT NULL DEFAULT 0,
	iterations INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, node_id)
);

CREATE INDEX IF NOT EXISTS idx_nodes_run_id ON nodes(run_id);
`

// Run is one persisted orchestration run.
type Run struct {
	ID         string
	Request    string
	Tier       models.ComplexityTier
	Kind       models.TaskKind
	Status     string
	Summary    string
	TokensIn   int64
	TokensOut  int64
	StartedAt  time.Time
	FinishedAt time.Time
}

// NodeRecord is one persisted task node within a run.
type NodeRecord struct {
	RunID       string
	NodeID      string
	Description string
	Status      models.NodeStatus
	Priority    int
	SkipCause   string
	Error       string
	Output      string
	TokensIn    int64
	TokensOut   int64
	Iterations  int
	Duration    time.Duration
}

// CreateRun records the start of a run.
func (db *DB) CreateRun(ctx context.Context, id, request string, profile models.TaskProfile) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO runs (id, request, tier, kind, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, request, string(profile.Tier), string(profile.Kind), time.Now().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records the final state of a run.
func (db *DB) FinishRun(ctx context.Context, id string, status models.RunStatus, summary string, tokensIn, tokensOut int64) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, summary = ?, tokens_in = ?, tokens_out = ?, finished_at = ?
		WHERE id = ?
	`, string(status), summary, tokensIn, tokensOut, time.Now().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// SaveNode upserts the terminal state of one task node.
func (db *DB) SaveNode(ctx context.Context, runID string, node *models.TaskNode) error {
	rec := NodeRecord{
		RunID:       runID,
		NodeID:      node.ID,
		Description: node.Description,
		Status:      node.Status,
		Priority:    node.Priority,
		SkipCause:   node.SkipCause,
	}
	if node.Result != nil {
		rec.Error = node.Result.Error
		rec.Output = node.Result.Output
		rec.TokensIn = node.Result.TokensIn
		rec.TokensOut = node.Result.TokensOut
		rec.Iterations = node.Result.Iterations
		rec.Duration = node.Result.Duration
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO nodes (run_id, node_id, description, status, priority, skip_cause,
			error, output, tokens_in, tokens_out, iterations, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, node_id) DO UPDATE SET
			status = excluded.status,
			skip_cause = excluded.skip_cause,
			error = excluded.error,
			output = excluded.output,
			tokens_in = excluded.tokens_in,
			tokens_out = excluded.tokens_out,
			iterations = excluded.iterations,
			duration_ms = excluded.duration_ms
	`, rec.RunID, rec.NodeID, rec.Description, string(rec.Status), rec.Priority, rec.SkipCause,
		rec.Error, rec.Output, rec.TokensIn, rec.TokensOut, rec.Iterations, rec.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("save node %s: %w", node.ID, err)
	}
	return nil
}

// GetRun returns a run and its nodes.
func (db *DB) GetRun(ctx context.Context, id string) (*Run, []NodeRecord, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, request, tier, kind, status, COALESCE(summary, ''),
			tokens_in, tokens_out, started_at, COALESCE(finished_at, '')
		FROM runs WHERE id = ?
	`, id)

	var run Run
	var startedAt, finishedAt string
	err := row.Scan(&run.ID, &run.Request, &run.Tier, &run.Kind, &run.Status, &run.Summary,
		&run.TokensIn, &run.TokensOut, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if finishedAt != "" {
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT run_id, node_id, description, status, priority, COALESCE(skip_cause, ''),
			COALESCE(error, ''), COALESCE(output, ''), tokens_in, tokens_out, iterations, duration_ms
		FROM nodes WHERE run_id = ? ORDER BY node_id
	`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []NodeRecord
	for rows.Next() {
		var rec NodeRecord
		var durationMS int64
		err := rows.Scan(&rec.RunID, &rec.NodeID, &rec.Description, &rec.Status, &rec.Priority,
			&rec.SkipCause, &rec.Error, &rec.Output, &rec.TokensIn, &rec.TokensOut,
			&rec.Iterations, &durationMS)
		if err != nil {
			return nil, nil, fmt.Errorf("scan node: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		nodes = append(nodes, rec)
	}
	return &run, nodes, rows.Err()
}

// RecentRuns returns the most recent runs, newest first.
func (db *DB) RecentRuns(ctx context.Context, n int) ([]Run, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, request, tier, kind, status, COALESCE(summary, ''),
			tokens_in, tokens_out, started_at, COALESCE(finished_at, '')
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var startedAt, finishedAt string
		err := rows.Scan(&run.ID, &run.Request, &run.Tier, &run.Kind, &run.Status, &run.Summary,
			&run.TokensIn, &run.TokensOut, &startedAt, &finishedAt)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		if finishedAt != "" {
			run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
