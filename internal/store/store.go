// Package store provides SQLite persistence for sdlc-lens.
//
// The database runs in embedded mode (ncruces/go-sqlite3, FTS5 enabled)
// with WAL journaling so readers observe either the pre-sync or post-sync
// document set, never a partial batch.
//
// Layout:
//   - projects: registered sources and their sync state
//   - documents: one row per (project, file path)
//   - documents_fts: external-content FTS5 index over title and content
//
// All timestamps are stored as UTC RFC 3339 text.
package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection pool.
type Store struct {
	db     *sqlx.DB
	path   string
	logger *log.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the database at path and initialises
// the schema. The caller must call Close.
//
// Example:
//
//	st, err := store.Open("data/db/sdlc_lens.db", nil)
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection. Immediate
	// transactions take the write lock up front so concurrent writers
	// wait on busy_timeout instead of failing on lock upgrade.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(wal)&_txlock=immediate", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		db:     db,
		path:   path,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}

	if err := s.InitSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database is closed")
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Close checkpoints the WAL and closes the pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.db = nil
	return nil
}

// InitSchema creates tables, indexes and the search index. It is
// idempotent.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		source_type TEXT NOT NULL DEFAULT 'local',
		sdlc_path TEXT,
		repo_url TEXT,
		repo_branch TEXT NOT NULL DEFAULT 'main',
		repo_path TEXT NOT NULL DEFAULT 'sdlc-studio',
		access_token TEXT,
		sync_status TEXT NOT NULL DEFAULT 'never_synced',
		sync_error TEXT,
		last_synced_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL,
		doc_type TEXT NOT NULL,
		doc_id TEXT NOT NULL,
		title TEXT NOT NULL,
		status TEXT,
		owner TEXT,
		priority TEXT,
		story_points INTEGER,
		epic TEXT,
		story TEXT,
		metadata TEXT,  -- JSON object of residual frontmatter
		content TEXT NOT NULL,
		file_path TEXT NOT NULL,
		file_hash TEXT NOT NULL,
		synced_at TEXT NOT NULL,
		UNIQUE (project_id, file_path),
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project_id);
	CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(project_id, doc_type);
	CREATE INDEX IF NOT EXISTS idx_documents_doc_id ON documents(project_id, doc_type, doc_id);
	CREATE INDEX IF NOT EXISTS idx_documents_epic ON documents(epic);
	CREATE INDEX IF NOT EXISTS idx_documents_story ON documents(story);

	CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
		title, content,
		content=documents, content_rowid=id,
		tokenize="unicode61 tokenchars '_'"
	);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// timeLayout is RFC 3339 with fixed-width nanoseconds so stored values
// sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime renders t as stored text.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime reads stored text; malformed values yield the zero time.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
