// ABOUTME: Store interface for the shared task list plus its sentinel errors
// ABOUTME: Row policy checks live behind this interface in every backend

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/tasksync/internal/model"
)

// ErrNotFound is returned when a requested task does not exist
var ErrNotFound = errors.New("not found")

// ErrInvalidTask is returned when a task fails validation before it is written
var ErrInvalidTask = errors.New("invalid task")

// Store is the durable record store behind the REST API.
type Store interface {
	// InsertTask stores t as a new record created by actorID and returns it
	// with its assigned id and timestamp. t.ID is ignored.
	InsertTask(ctx context.Context, actorID string, t model.Task) (model.Task, error)

	// UpdateTask applies patch to the record if actorID created it.
	UpdateTask(ctx context.Context, actorID string, id int64, patch model.TaskPatch) (model.Task, error)

	// DeleteTask removes the record if actorID created it and returns the
	// removed row.
	DeleteTask(ctx context.Context, actorID string, id int64) (model.Task, error)

	// GetTask returns one record.
	GetTask(ctx context.Context, id int64) (model.Task, error)

	// ListTasks returns every record ordered by id ascending.
	ListTasks(ctx context.Context) ([]model.Task, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// validateInsert normalizes t for insertion on behalf of actorID.
func validateInsert(actorID string, t model.Task) (model.Task, error) {
	t.Title = model.NormalizeTitle(t.Title)
	if t.Title == "" {
		return t, fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if t.CreatorID == "" || t.CreatorName == "" {
		return t, fmt.Errorf("%w: creator_id and creator_name are required", ErrInvalidTask)
	}
	if t.CreatorID != actorID {
		return t, fmt.Errorf("%w: creator_id must match the caller", model.ErrPolicyViolation)
	}
	return t, nil
}

// validatePatch normalizes patch and rejects one that changes nothing or
// blanks the title.
func validatePatch(patch model.TaskPatch) (model.TaskPatch, error) {
	if patch.Empty() {
		return patch, fmt.Errorf("%w: empty patch", ErrInvalidTask)
	}
	if patch.Title != nil {
		title := model.NormalizeTitle(*patch.Title)
		if title == "" {
			return patch, fmt.Errorf("%w: title is required", ErrInvalidTask)
		}
		patch.Title = &title
	}
	return patch, nil
}

// checkOwner enforces the row policy for update and delete.
func checkOwner(actorID string, t model.Task) error {
	if actorID == "" || t.CreatorID != actorID {
		return fmt.Errorf("%w: task %d belongs to another user", model.ErrPolicyViolation, t.ID)
	}
	return nil
}
