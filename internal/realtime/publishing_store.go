// ABOUTME: Store decorator that emits a wire event after every committed mutation
// ABOUTME: Stands in for database change capture on the tasks table

package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/2389/tasksync/internal/model"
	"github.com/2389/tasksync/internal/store"
)

// PublishingStore wraps a store.Store and publishes Insert, Update and Delete
// events for channel after each successful mutation. Reads pass through.
// Mutations are serialized with their publish, so events leave in commit order.
type PublishingStore struct {
	store.Store
	mu      sync.Mutex // held across commit and publish
	pub     Publisher
	channel string
	logger  *slog.Logger
}

var _ store.Store = (*PublishingStore)(nil)

// NewPublishingStore decorates s. An empty channel defaults to model.TasksChannel.
func NewPublishingStore(s store.Store, pub Publisher, channel string, logger *slog.Logger) *PublishingStore {
	if logger == nil {
		logger = slog.Default()
	}
	if channel == "" {
		channel = model.TasksChannel
	}
	return &PublishingStore{
		Store:   s,
		pub:     pub,
		channel: channel,
		logger:  logger.With("component", "publishing_store"),
	}
}

// InsertTask inserts and publishes an Insert event.
func (p *PublishingStore) InsertTask(ctx context.Context, actorID string, t model.Task) (model.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	created, err := p.Store.InsertTask(ctx, actorID, t)
	if err != nil {
		return model.Task{}, err
	}
	p.emit(ctx, model.InsertEvent(created))
	return created, nil
}

// UpdateTask updates and publishes an Update event.
func (p *PublishingStore) UpdateTask(ctx context.Context, actorID string, id int64, patch model.TaskPatch) (model.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	updated, err := p.Store.UpdateTask(ctx, actorID, id, patch)
	if err != nil {
		return model.Task{}, err
	}
	p.emit(ctx, model.UpdateEvent(updated))
	return updated, nil
}

// DeleteTask deletes and publishes a Delete event carrying the old row.
func (p *PublishingStore) DeleteTask(ctx context.Context, actorID string, id int64) (model.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	old, err := p.Store.DeleteTask(ctx, actorID, id)
	if err != nil {
		return model.Task{}, err
	}
	p.emit(ctx, model.DeleteEvent(old.ID, &old))
	return old, nil
}

// emit publishes ev. The mutation is already committed, so a publish failure
// is logged and left for the next client resync to repair.
func (p *PublishingStore) emit(ctx context.Context, ev model.ChangeEvent) {
	wire, err := model.NewWireEvent(p.channel, ev)
	if err != nil {
		p.logger.Error("encoding change event", "event", ev.String(), "error", err)
		return
	}
	// detach from the request so a client disconnect does not cancel fan-out
	if err := p.pub.Publish(context.WithoutCancel(ctx), wire); err != nil {
		p.logger.Error("publishing change event", "event", ev.String(), "error", err)
		return
	}
	p.logger.Debug("published change event", "event", ev.String(), "event_id", wire.ID)
}
