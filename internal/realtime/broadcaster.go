// ABOUTME: In-memory fan-out of wire events to per-channel subscribers
// ABOUTME: Slow subscribers are evicted so their clients reconnect and resync

package realtime

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/tasksync/internal/metrics"
	"github.com/2389/tasksync/internal/model"
)

// DefaultBufferSize is the per-subscriber channel buffer.
const DefaultBufferSize = 64

// Publisher delivers a wire event to every subscriber of its channel.
type Publisher interface {
	Publish(ctx context.Context, ev model.WireEvent) error
}

// EventBroadcaster provides in-memory pub/sub for wire events keyed by channel.
type EventBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan model.WireEvent // channel -> subID -> ch
	bufferSize  int
	closed      bool
	logger      *slog.Logger
}

var _ Publisher = (*EventBroadcaster)(nil)

// NewEventBroadcaster creates a broadcaster. Pass nil logger for default and
// a non-positive bufferSize for DefaultBufferSize.
func NewEventBroadcaster(bufferSize int, logger *slog.Logger) *EventBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &EventBroadcaster{
		subscribers: make(map[string]map[string]chan model.WireEvent),
		bufferSize:  bufferSize,
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers for events on channel. The returned channel is closed
// when the subscriber is evicted, unsubscribed, or the broadcaster closes.
// The subscription is cleaned up automatically when ctx is cancelled.
func (b *EventBroadcaster) Subscribe(ctx context.Context, channel string) (<-chan model.WireEvent, string) {
	subID := uuid.New().String()
	ch := make(chan model.WireEvent, b.bufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	if _, ok := b.subscribers[channel]; !ok {
		b.subscribers[channel] = make(map[string]chan model.WireEvent)
	}
	b.subscribers[channel][subID] = ch
	b.mu.Unlock()

	metrics.Subscribers.Inc()
	b.logger.Debug("subscriber added", "channel", channel, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(channel, subID)
	}()

	return ch, subID
}

// Publish sends ev to all subscribers of ev.Channel without blocking. A
// subscriber whose buffer is full is evicted.
func (b *EventBroadcaster) Publish(_ context.Context, ev model.WireEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[ev.Channel]
	for subID, ch := range subs {
		select {
		case ch <- ev:
		default:
			b.removeLocked(ev.Channel, subID)
			metrics.SubscribersEvicted.WithLabelValues(ev.Channel).Inc()
			b.logger.Warn("evicted slow subscriber",
				"channel", ev.Channel,
				"sub_id", subID,
				"event_id", ev.ID)
		}
	}

	if !ev.IsSystem() {
		metrics.EventsPublished.WithLabelValues(ev.Channel, ev.Type).Inc()
	}
	return nil
}

// Unsubscribe removes a subscription and closes its channel.
func (b *EventBroadcaster) Unsubscribe(channel, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.removeLocked(channel, subID) {
		b.logger.Debug("subscriber removed", "channel", channel, "sub_id", subID)
	}
}

// SubscriberCount returns the number of subscribers on channel.
func (b *EventBroadcaster) SubscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[channel])
}

// SubscriberIDs returns the ids subscribed to channel, sorted.
func (b *EventBroadcaster) SubscriberIDs(channel string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.subscribers[channel]))
	for id := range b.subscribers[channel] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// removeLocked must be called with mu held.
func (b *EventBroadcaster) removeLocked(channel, subID string) bool {
	subs, ok := b.subscribers[channel]
	if !ok {
		return false
	}
	ch, exists := subs[subID]
	if !exists {
		return false
	}

	delete(subs, subID)
	close(ch)
	metrics.Subscribers.Dec()

	if len(subs) == 0 {
		delete(b.subscribers, channel)
	}
	return true
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *EventBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for channel, subs := range b.subscribers {
		for subID := range subs {
			b.removeLocked(channel, subID)
		}
	}
	b.closed = true

	b.logger.Debug("broadcaster closed")
}
