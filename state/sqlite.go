package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS exported_messages (
	key           TEXT PRIMARY KEY,
	document_path TEXT NOT NULL,
	exported_at   TIMESTAMP NOT NULL
);
INSERT INTO schema_version (version) VALUES (1);
`,
	},
}

// SQLiteTracker keeps the exported-message index in a SQLite database.
type SQLiteTracker struct {
	*MemoryTracker
	db      *sqlx.DB
	persist bool
}

type exportedRow struct {
	Key          string `db:"key"`
	DocumentPath string `db:"document_path"`
}

func NewSQLiteTracker(stateDir string, persist bool) (*SQLiteTracker, error) {
	if strings.TrimSpace(stateDir) == "" {
		return nil, fmt.Errorf("state directory is empty")
	}

	tracker := &SQLiteTracker{MemoryTracker: NewMemoryTracker(), persist: persist}
	dbPath := filepath.Join(stateDir, "exported.db")

	if !persist {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return tracker, nil
		}
	}

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	tracker.db = db
	if err := tracker.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if err := tracker.load(); err != nil {
		db.Close()
		return nil, err
	}

	return tracker, nil
}

func (s *SQLiteTracker) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

func (s *SQLiteTracker) load() error {
	var rows []exportedRow
	if err := s.db.Select(&rows, "SELECT key, document_path FROM exported_messages"); err != nil {
		return fmt.Errorf("load exported messages: %w", err)
	}

	s.mu.Lock()
	for _, row := range rows {
		s.exported[row.Key] = row.DocumentPath
	}
	s.mu.Unlock()
	return nil
}

func (s *SQLiteTracker) MarkExported(key, documentPath string) error {
	if key == "" {
		return nil
	}
	if err := s.MemoryTracker.MarkExported(key, documentPath); err != nil {
		return err
	}
	if !s.persist || s.db == nil {
		return nil
	}

	const query = `
		INSERT INTO exported_messages (key, document_path, exported_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			document_path = excluded.document_path,
			exported_at = excluded.exported_at`

	if _, err := s.db.Exec(query, key, documentPath, time.Now().UTC()); err != nil {
		return fmt.Errorf("store exported message %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteTracker) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
