// ABOUTME: Backend selection for the task store by driver name
// ABOUTME: Maps database config onto SQLite, cgo SQLite, or Postgres

package store

import (
	"context"
	"fmt"
)

// Open returns the backend named by driver. path is used by the SQLite
// drivers and dsn by postgres.
func Open(ctx context.Context, driver, path, dsn string) (Store, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLiteStore(path)
	case "sqlite3":
		return NewSQLiteCGOStore(path)
	case "postgres", "pgx":
		return NewPostgresStore(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}
