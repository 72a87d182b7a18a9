// Package store persists projects, chunks, fact sheets, jobs and
// verification results in a single SQLite database under the data dir.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const dbFile = "veridica.db"

// Store owns the SQLite database. Safe for concurrent readers; the
// orchestrator is the single writer for pipeline-derived state.
type Store struct {
	db      *sql.DB
	dataDir string
}

// Open opens or creates the database at dataDir/veridica.db and ensures
// the schema exists.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dataDir: dataDir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ProjectDir returns the on-disk directory holding a project's source
// files (uploaded PDFs), creating it if needed.
func (s *Store) ProjectDir(projectID string) (string, error) {
	dir := filepath.Join(s.dataDir, "projects", projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating project directory: %w", err)
	}
	return dir, nil
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			project_id TEXT NOT NULL REFERENCES projects(id),
			id TEXT NOT NULL,
			doc_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			text TEXT NOT NULL,
			source_kind TEXT NOT NULL,
			source_file TEXT,
			page INTEGER,
			url TEXT,
			section TEXT,
			PRIMARY KEY (project_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_project ON chunks(project_id, doc_id, seq)`,
		`CREATE TABLE IF NOT EXISTS factsheets (
			project_id TEXT PRIMARY KEY REFERENCES projects(id),
			payload TEXT NOT NULL,
			provider TEXT,
			model TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			job_id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id),
			idempotency_key TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			stage TEXT NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			stage_detail TEXT NOT NULL DEFAULT '',
			has_factsheet INTEGER NOT NULL DEFAULT 0,
			has_audit INTEGER NOT NULL DEFAULT 0,
			has_content INTEGER NOT NULL DEFAULT 0,
			params TEXT NOT NULL DEFAULT '{}',
			error_message TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_idempotency ON jobs(idempotency_key, status)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_project ON jobs(project_id, status)`,
		`CREATE TABLE IF NOT EXISTS stage_outputs (
			job_id TEXT NOT NULL REFERENCES jobs(job_id),
			stage TEXT NOT NULL,
			payload TEXT NOT NULL,
			completed_at TEXT NOT NULL,
			PRIMARY KEY (job_id, stage)
		)`,
		`CREATE TABLE IF NOT EXISTS verification_results (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id TEXT NOT NULL,
			claim_id TEXT NOT NULL,
			claim_text TEXT NOT NULL,
			pass TEXT NOT NULL,
			verdict TEXT NOT NULL,
			matched_chunk_ids TEXT,
			rationale TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_job ON verification_results(job_id, pass)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// CreateProject registers a project id. Idempotent.
func (s *Store) CreateProject(id, name string) error {
	_, err := s.db.Exec(
		`INSERT INTO projects (id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, name, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating project: %w", err)
	}
	return nil
}

// ProjectExists reports whether a project id is registered.
func (s *Store) ProjectExists(id string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM projects WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying project: %w", err)
	}
	return true, nil
}
