// ABOUTME: Bounded, TTL-based window of recently seen event ids.
// ABOUTME: Feed subscribers use it to drop exact re-deliveries of the same envelope.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type seenEntry struct {
	id     string
	seenAt time.Time
}

// Window tracks event ids seen within the last ttl, holding at most maxSize
// ids. The oldest id is forgotten first when the window is full. Expired ids
// are pruned lazily on every Seen call, so no background goroutine is needed.
type Window struct {
	mu      sync.Mutex
	ids     map[string]*list.Element
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// Option configures a Window.
type Option func(*Window)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Window) { w.now = now }
}

// NewWindow creates a window. A non-positive maxSize defaults to 1024.
func NewWindow(ttl time.Duration, maxSize int, opts ...Option) *Window {
	if maxSize <= 0 {
		maxSize = 1024
	}
	w := &Window{
		ids:     make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Seen reports whether id was already recorded inside the ttl, recording it
// if not. An empty id is never considered a duplicate.
func (w *Window) Seen(id string) bool {
	if id == "" {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.pruneLocked(now)

	if elem, ok := w.ids[id]; ok {
		elem.Value.(*seenEntry).seenAt = now
		w.order.MoveToBack(elem)
		return true
	}

	if w.order.Len() >= w.maxSize {
		w.removeLocked(w.order.Front())
	}
	w.ids[id] = w.order.PushBack(&seenEntry{id: id, seenAt: now})
	return false
}

// Forget removes every remembered id. Subscribers call it after a resync,
// since the fresh snapshot supersedes anything seen before.
func (w *Window) Forget() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ids = make(map[string]*list.Element)
	w.order.Init()
}

// Len returns the number of ids currently remembered.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.order.Len()
}

// pruneLocked drops entries older than ttl. Entries are ordered by last
// sighting, so pruning stops at the first fresh one.
func (w *Window) pruneLocked(now time.Time) {
	for front := w.order.Front(); front != nil; front = w.order.Front() {
		if now.Sub(front.Value.(*seenEntry).seenAt) < w.ttl {
			return
		}
		w.removeLocked(front)
	}
}

func (w *Window) removeLocked(elem *list.Element) {
	if elem == nil {
		return
	}
	w.order.Remove(elem)
	delete(w.ids, elem.Value.(*seenEntry).id)
}
