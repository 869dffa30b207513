// ABOUTME: Postgres backend for the task store using the pgx database/sql driver
// ABOUTME: Shares queries with the SQLite backend, with numbered placeholders

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS tasks (
		id             BIGSERIAL PRIMARY KEY,
		title          TEXT NOT NULL CHECK (length(trim(title)) > 0),
		is_complete    BOOLEAN NOT NULL DEFAULT FALSE,
		creator_id     TEXT NOT NULL,
		creator_name   TEXT NOT NULL,
		creator_avatar TEXT,
		created_at     TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_creator ON tasks(creator_id);
`

// PostgresStore implements Store on Postgres.
type PostgresStore struct {
	*sqlStore
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn, verifies the connection and creates the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	logger := slog.Default().With("component", "store", "driver", "pgx")

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{sqlStore: &sqlStore{
		db:      db,
		dialect: dialect{name: "postgres", schema: postgresSchema, numbered: true},
		logger:  logger,
	}}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("Postgres store initialized")
	return s, nil
}
