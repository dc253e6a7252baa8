// Package storage implements the engine's persistence on SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jmlow/goalflow/internal/domain"
)

type Storage struct {
	db   *sql.DB
	path string
}

// Verify Storage implements domain.Store
var _ domain.Store = (*Storage)(nil)

// New opens (creating if needed) the workflow database under dataDir.
func New(dataDir string) (*Storage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "goalflow.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000&_fk=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Storage{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS graphs (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		objective TEXT NOT NULL,
		status TEXT NOT NULL,
		templates_json TEXT NOT NULL,
		schedule TEXT,
		schedule_active INTEGER NOT NULL DEFAULT 0,
		clarification TEXT,
		prompt_tokens INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		total_tokens INTEGER NOT NULL DEFAULT 0,
		planning_cost REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_graphs_status ON graphs(status);
	CREATE INDEX IF NOT EXISTS idx_graphs_updated ON graphs(updated_at DESC);

	CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		graph_id TEXT,
		request TEXT NOT NULL,
		intent TEXT,
		status TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		total_tasks INTEGER NOT NULL DEFAULT 0,
		completed_tasks INTEGER NOT NULL DEFAULT 0,
		failed_tasks INTEGER NOT NULL DEFAULT 0,
		waiting_tasks INTEGER NOT NULL DEFAULT 0,
		final_result TEXT,
		synthesis TEXT,
		suspended_reason TEXT,
		suspended_at DATETIME,
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_retry_at DATETIME,
		prompt_tokens INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		total_tokens INTEGER NOT NULL DEFAULT 0,
		cost REAL NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_executions_graph ON executions(graph_id);
	CREATE INDEX IF NOT EXISTS idx_executions_status ON executions(status);
	CREATE INDEX IF NOT EXISTS idx_executions_started ON executions(started_at DESC);

	CREATE TABLE IF NOT EXISTS sub_steps (
		id TEXT PRIMARY KEY,
		execution_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		description TEXT NOT NULL,
		thought TEXT,
		action TEXT NOT NULL,
		target TEXT NOT NULL,
		params_json TEXT,
		expected TEXT,
		depends_on_json TEXT,
		status TEXT NOT NULL,
		started_at DATETIME,
		completed_at DATETIME,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		result TEXT,
		error TEXT,
		prompt_tokens INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		total_tokens INTEGER NOT NULL DEFAULT 0,
		cost REAL NOT NULL DEFAULT 0,
		stats_json TEXT,
		FOREIGN KEY (execution_id) REFERENCES executions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_sub_steps_execution ON sub_steps(execution_id, idx);
	CREATE INDEX IF NOT EXISTS idx_sub_steps_status ON sub_steps(execution_id, status);

	CREATE TABLE IF NOT EXISTS stop_requests (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL,
		scope_id TEXT NOT NULL,
		status TEXT NOT NULL,
		requested_at DATETIME NOT NULL,
		handled_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_stop_requests_scope ON stop_requests(scope, scope_id, status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Ping verifies the connection is alive.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Storage) Path() string {
	return s.path
}
