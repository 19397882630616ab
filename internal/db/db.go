package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB holding the neuron metadata tables.
type DB struct {
	*sql.DB
	path string
}

// Open creates or opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	d := &DB{DB: sqlDB, path: path}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// OpenMemory creates an in-memory SQLite database (useful for testing).
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)

	d := &DB{DB: sqlDB, path: ":memory:"}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// Path returns the file the database was opened from, or ":memory:".
func (d *DB) Path() string {
	return d.path
}

// migrate runs all schema migrations.
func (d *DB) migrate() error {
	_, err := d.Exec(schema)
	return err
}

// schema contains the full database schema. New tables are added here.
//
// explanation_embedding holds either a JSON array of numbers (TEXT) or
// little-endian half-precision floats (BLOB).
const schema = `
CREATE TABLE IF NOT EXISTS neurons (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    layer_index INTEGER NOT NULL,
    neuron_index INTEGER NOT NULL,
    explanation_text TEXT NOT NULL DEFAULT '',
    explanation_embedding,
    explanation_ev_correlation_score REAL NOT NULL DEFAULT 0,
    explanation_rsquared_score REAL NOT NULL DEFAULT 0,
    explanation_absolute_dev_explained_score REAL NOT NULL DEFAULT 0,
    activation_mean REAL NOT NULL DEFAULT 0,
    activation_variance REAL NOT NULL DEFAULT 0,
    activation_skewness REAL NOT NULL DEFAULT 0,
    activation_kurtosis REAL NOT NULL DEFAULT 0,
    explanation_topic_id INTEGER NOT NULL DEFAULT -1,
    UNIQUE(layer_index, neuron_index)
);

CREATE INDEX IF NOT EXISTS idx_neurons_topic ON neurons(explanation_topic_id);

CREATE TABLE IF NOT EXISTS activations (
    id TEXT PRIMARY KEY,
    neuron_id INTEGER NOT NULL REFERENCES neurons(id) ON DELETE CASCADE,
    category TEXT NOT NULL CHECK(category IN ('top','random')),
    tokens TEXT NOT NULL DEFAULT '[]',
    activation_values TEXT NOT NULL DEFAULT '[]',
    position INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_activations_neuron ON activations(neuron_id, category, position);

CREATE TABLE IF NOT EXISTS topics (
    id INTEGER PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    top_words TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS audit_entries (
    id TEXT PRIMARY KEY,
    timestamp DATETIME NOT NULL DEFAULT (datetime('now')),
    request_id INTEGER NOT NULL,
    outcome TEXT NOT NULL CHECK(outcome IN ('ready','error','superseded')),
    prompt TEXT NOT NULL DEFAULT '',
    node_type TEXT NOT NULL DEFAULT '',
    nodes INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    mismatched INTEGER NOT NULL DEFAULT 0,
    unsupported INTEGER NOT NULL DEFAULT 0,
    error TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_entries(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_outcome ON audit_entries(outcome);
`
