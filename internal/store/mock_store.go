// ABOUTME: Mock Store implementation for testing
// ABOUTME: Applies the same row policy as the SQL backends without a database

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/2389/tasksync/internal/model"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu     sync.RWMutex
	tasks  map[int64]model.Task
	nextID int64

	// PingErr, when set, is returned by Ping.
	PingErr error
}

var _ Store = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{tasks: make(map[int64]model.Task)}
}

// InsertTask stores a new task.
func (m *MockStore) InsertTask(ctx context.Context, actorID string, t model.Task) (model.Task, error) {
	t, err := validateInsert(actorID, t)
	if err != nil {
		return model.Task{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	t.ID = m.nextID
	t.IsComplete = false
	t.CreatedAt = time.Now().UTC()
	m.tasks[t.ID] = t
	return t, nil
}

// UpdateTask applies a patch.
func (m *MockStore) UpdateTask(ctx context.Context, actorID string, id int64, patch model.TaskPatch) (model.Task, error) {
	patch, err := validatePatch(patch)
	if err != nil {
		return model.Task{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.tasks[id]
	if !ok {
		return model.Task{}, ErrNotFound
	}
	if err := checkOwner(actorID, current); err != nil {
		return model.Task{}, err
	}
	updated := patch.Apply(current)
	m.tasks[id] = updated
	return updated, nil
}

// DeleteTask removes a task.
func (m *MockStore) DeleteTask(ctx context.Context, actorID string, id int64) (model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.tasks[id]
	if !ok {
		return model.Task{}, ErrNotFound
	}
	if err := checkOwner(actorID, current); err != nil {
		return model.Task{}, err
	}
	delete(m.tasks, id)
	return current, nil
}

// GetTask returns a task by id.
func (m *MockStore) GetTask(ctx context.Context, id int64) (model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return model.Task{}, ErrNotFound
	}
	return t, nil
}

// ListTasks returns all tasks ordered by id.
func (m *MockStore) ListTasks(ctx context.Context) ([]model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tasks := make([]model.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

// Ping returns PingErr.
func (m *MockStore) Ping(ctx context.Context) error {
	return m.PingErr
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}
