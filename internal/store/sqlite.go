// ABOUTME: SQLite backend for the task store using modernc.org/sqlite
// ABOUTME: Creates the schema on open and serializes writers through one connection

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS tasks (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		title          TEXT NOT NULL CHECK (length(trim(title)) > 0),
		is_complete    INTEGER NOT NULL DEFAULT 0,
		creator_id     TEXT NOT NULL,
		creator_name   TEXT NOT NULL,
		creator_avatar TEXT,
		created_at     TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_creator ON tasks(creator_id);
`

// SQLiteStore implements Store on an SQLite database file.
type SQLiteStore struct {
	*sqlStore
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path with the pure-Go
// modernc driver. Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return openSQLite("sqlite", path)
}

func openSQLite(driver, path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store", "driver", driver)

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection keeps :memory: databases shared and avoids SQLITE_BUSY between writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{sqlStore: &sqlStore{
		db:      db,
		dialect: dialect{name: driver, schema: sqliteSchema},
		logger:  logger,
	}}

	if err := s.createSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}
