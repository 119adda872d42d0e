// Package store persists claims, evidence sources and processing logs in sqlite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/veracity/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// Corpus is the read side of the evidence corpus used by retrieval
type Corpus interface {
	ListSources(ctx context.Context, topic string, limit int) ([]model.EvidenceSource, error)
	GetSource(ctx context.Context, id string) (*model.EvidenceSource, error)
}

// DB is the sqlite-backed store
type DB struct {
	conn *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS claims (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	text              TEXT NOT NULL,
	source_url        TEXT NOT NULL DEFAULT '',
	classification    TEXT NOT NULL DEFAULT 'Unverified',
	reliability_score REAL NOT NULL DEFAULT 0,
	evidence          TEXT NOT NULL DEFAULT '[]',
	created_at        TEXT NOT NULL,
	processed_at      TEXT
);

CREATE TABLE IF NOT EXISTS fact_sources (
	id                 TEXT PRIMARY KEY,
	title              TEXT NOT NULL,
	content            TEXT NOT NULL,
	source_name        TEXT NOT NULL DEFAULT '',
	source_url         TEXT NOT NULL DEFAULT '',
	topic              TEXT NOT NULL DEFAULT '',
	is_verified        INTEGER NOT NULL DEFAULT 0,
	reliability_rating REAL NOT NULL DEFAULT 0.5,
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fact_sources_topic ON fact_sources(topic);

CREATE TABLE IF NOT EXISTS processing_logs (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	claim_id           INTEGER,
	operation          TEXT NOT NULL,
	status             TEXT NOT NULL,
	details            TEXT NOT NULL DEFAULT '{}',
	processing_time_ms INTEGER NOT NULL DEFAULT 0,
	created_at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_processing_logs_claim ON processing_logs(claim_id);
`

// Open opens (and creates if needed) the database at path.
// The path ":memory:" opens a private in-memory database.
func Open(path string) (*DB, error) {
	dsn := path
	inMemory := path == ":memory:"
	if !inMemory {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		dsn = path + "?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=on"
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if inMemory {
		// Every connection to :memory: is a separate database
		conn.SetMaxOpenConns(1)
	}

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database
func (db *DB) Close() error {
	return db.conn.Close()
}

// timeLayout has fixed-width fractions so stored timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
