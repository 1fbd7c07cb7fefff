package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for a generation's catalog.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) a catalog database at dbPath. It uses
// a rollback journal so a closed catalog is a single file.
func NewStore(dbPath string) (*Store, error) {
	return open(dbPath + "?_journal_mode=DELETE&_foreign_keys=ON&_busy_timeout=30000")
}

// OpenReadOnly opens an existing catalog without write access.
func OpenReadOnly(dbPath string) (*Store, error) {
	return open("file:" + dbPath + "?mode=ro&_foreign_keys=ON&_busy_timeout=30000")
}

func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates all catalog tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  role            TEXT PRIMARY KEY,
  path            TEXT NOT NULL,
  content_hash    TEXT NOT NULL,
  total_lines     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
  file_role       TEXT NOT NULL REFERENCES files(role),
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  detail          TEXT NOT NULL DEFAULT '',
  start_line      INTEGER NOT NULL,
  end_line        INTEGER NOT NULL,
  hash            TEXT NOT NULL,
  PRIMARY KEY (file_role, name)
);

CREATE TABLE IF NOT EXISTS bundles (
  query_name      TEXT PRIMARY KEY,
  path            TEXT NOT NULL,
  fingerprint     TEXT NOT NULL,
  warning_count   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS bundle_refs (
  query_name      TEXT NOT NULL REFERENCES bundles(query_name),
  ref_kind        TEXT NOT NULL,
  ref_name        TEXT NOT NULL,
  file_role       TEXT NOT NULL,
  ordinal         INTEGER NOT NULL,
  PRIMARY KEY (query_name, ref_kind, file_role, ref_name)
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);
CREATE INDEX IF NOT EXISTS idx_bundle_refs_target ON bundle_refs(file_role, ref_name);
`

// GetMetadata returns the value stored under key, or "" when unset.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores value under key, replacing any previous value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}
