// ABOUTME: database/sql implementation of Store shared by the SQLite and Postgres backends
// ABOUTME: Dialects differ only in schema and placeholder syntax

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/2389/tasksync/internal/model"
)

// dialect captures what differs between SQL backends.
type dialect struct {
	name   string
	schema string
	// numbered placeholders ($1, $2) instead of ?
	numbered bool
}

// sqlStore implements Store over database/sql.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

const taskColumns = "id, title, is_complete, creator_id, creator_name, creator_avatar, created_at"

func (s *sqlStore) q(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) createSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.dialect.schema)
	return err
}

// InsertTask stores a new task and returns it with its assigned id.
func (s *sqlStore) InsertTask(ctx context.Context, actorID string, t model.Task) (model.Task, error) {
	t, err := validateInsert(actorID, t)
	if err != nil {
		return model.Task{}, err
	}
	t.CreatedAt = time.Now().UTC()
	t.IsComplete = false

	query := s.q(`
		INSERT INTO tasks (title, is_complete, creator_id, creator_name, creator_avatar, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err = s.db.QueryRowContext(ctx, query,
		t.Title, t.IsComplete, t.CreatorID, t.CreatorName, nullAvatar(t.CreatorAvatar),
		t.CreatedAt.Format(time.RFC3339Nano),
	).Scan(&t.ID)
	if err != nil {
		return model.Task{}, fmt.Errorf("inserting task: %w", err)
	}

	s.logger.Debug("inserted task", "id", t.ID, "creator", t.CreatorID)
	return t, nil
}

// UpdateTask applies patch when actorID owns the task.
func (s *sqlStore) UpdateTask(ctx context.Context, actorID string, id int64, patch model.TaskPatch) (model.Task, error) {
	patch, err := validatePatch(patch)
	if err != nil {
		return model.Task{}, err
	}

	var updated model.Task
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkOwner(actorID, current); err != nil {
			return err
		}
		updated = patch.Apply(current)
		_, err = tx.ExecContext(ctx, s.q(`UPDATE tasks SET title = ?, is_complete = ? WHERE id = ?`),
			updated.Title, updated.IsComplete, id)
		if err != nil {
			return fmt.Errorf("updating task: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}

	s.logger.Debug("updated task", "id", id, "actor", actorID)
	return updated, nil
}

// DeleteTask removes the task when actorID owns it and returns the removed row.
func (s *sqlStore) DeleteTask(ctx context.Context, actorID string, id int64) (model.Task, error) {
	var old model.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkOwner(actorID, current); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, s.q(`DELETE FROM tasks WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("deleting task: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if rows == 0 {
			return ErrNotFound
		}
		old = current
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}

	s.logger.Debug("deleted task", "id", id, "actor", actorID)
	return old, nil
}

// GetTask returns a single task.
// Returns ErrNotFound if the task doesn't exist.
func (s *sqlStore) GetTask(ctx context.Context, id int64) (model.Task, error) {
	return s.getTask(ctx, s.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *sqlStore) getTask(ctx context.Context, q queryer, id int64) (model.Task, error) {
	row := q.QueryRowContext(ctx, s.q(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`), id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, ErrNotFound
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("querying task: %w", err)
	}
	return t, nil
}

// ListTasks returns all tasks ordered by id.
func (s *sqlStore) ListTasks(ctx context.Context) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

// Ping checks the database connection.
func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (model.Task, error) {
	var (
		t         model.Task
		avatar    sql.NullString
		createdAt string
	)
	if err := row.Scan(&t.ID, &t.Title, &t.IsComplete, &t.CreatorID, &t.CreatorName, &avatar, &createdAt); err != nil {
		return model.Task{}, err
	}
	if avatar.Valid {
		a := avatar.String
		t.CreatorAvatar = &a
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		t.CreatedAt = ts
	}
	return t, nil
}

func nullAvatar(avatar *string) any {
	if avatar == nil || *avatar == "" {
		return nil
	}
	return *avatar
}
