// ABOUTME: Event-loop owner of local state, wiring the change feed, resync, and snapshots
// ABOUTME: All state mutations run on one goroutine; readers get immutable snapshots

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2389/tasksync/internal/identity"
	"github.com/2389/tasksync/internal/metrics"
	"github.com/2389/tasksync/internal/model"
)

// ErrClosed is returned when the engine has been closed.
var ErrClosed = errors.New("engine closed")

// RecordStore is the remote record store. Errors wrapping
// model.ErrPolicyViolation are reported as ErrAuthorizationDenied and
// errors wrapping model.ErrUnauthorized as ErrUnauthenticated; anything
// else is a transport failure.
type RecordStore interface {
	Insert(ctx context.Context, t model.Task) (model.Task, error)
	Update(ctx context.Context, id int64, patch model.TaskPatch) error
	Delete(ctx context.Context, id int64) error
	QueryAll(ctx context.Context) ([]model.Task, error)
}

// Session yields the acting principal.
type Session interface {
	Current() (identity.Principal, bool)
}

// Feed is the change feed. Subscribe must call onConnect after every
// (re)connection before delivering further events, and must treat an
// onConnect error as a failed connection. The returned func unsubscribes.
type Feed interface {
	Listen(channel string, onEvent func(model.ChangeEvent), onConnect func(ctx context.Context, reconnected bool) error) (unsubscribe func())
}

// Snapshot is an immutable view of local state.
type Snapshot struct {
	Tasks    []model.Task
	Version  uint64
	Synced   bool
	LastSync time.Time
}

// Config wires an Engine.
type Config struct {
	Store   RecordStore
	Session Session
	Feed    Feed
	Channel string
	Logger  *slog.Logger
}

// resyncBuffer collects the changes applied while a resync query is
// outstanding, so they can be replayed over the queried set.
type resyncBuffer struct {
	entries []bufferedChange
}

type bufferedChange struct {
	ev         model.ChangeEvent
	optimistic bool
}

// remember appends a change to every resync in flight. Loop goroutine only.
func (e *Engine) remember(ev model.ChangeEvent, optimistic bool) {
	for buf := range e.pending {
		buf.entries = append(buf.entries, bufferedChange{ev: ev, optimistic: optimistic})
	}
}

// Engine is the client-side sync engine.
type Engine struct {
	store   RecordStore
	session Session
	feed    Feed
	channel string
	logger  *slog.Logger

	ops   chan func(*State)
	quit  chan struct{}
	done  chan struct{}
	state *State // owned by the loop goroutine

	// resyncs in flight, each collecting the events applied since its query
	// started; loop goroutine only
	pending map[*resyncBuffer]struct{}

	snapshot atomic.Pointer[Snapshot]
	version  uint64 // loop goroutine only
	synced   bool
	lastSync time.Time

	syncedOnce sync.Once
	syncedCh   chan struct{}

	watchMu  sync.Mutex
	watchers map[int]chan struct{}
	watchID  int

	mu          sync.Mutex
	started     bool
	closed      bool
	unsubscribe func()
}

// New creates an engine and starts its event loop. Call Start to subscribe
// to the change feed.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	channel := cfg.Channel
	if channel == "" {
		channel = model.TasksChannel
	}

	e := &Engine{
		store:    cfg.Store,
		session:  cfg.Session,
		feed:     cfg.Feed,
		channel:  channel,
		logger:   logger.With("component", "engine", "channel", channel),
		ops:      make(chan func(*State)),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		state:    NewState(),
		pending:  make(map[*resyncBuffer]struct{}),
		syncedCh: make(chan struct{}),
		watchers: make(map[int]chan struct{}),
	}
	e.snapshot.Store(&Snapshot{Tasks: []model.Task{}})

	go e.loop()
	return e
}

func (e *Engine) loop() {
	defer close(e.done)
	for {
		select {
		case op := <-e.ops:
			op(e.state)
		case <-e.quit:
			return
		}
	}
}

// do runs fn on the loop goroutine and waits for it to finish.
func (e *Engine) do(ctx context.Context, fn func(*State)) error {
	finished := make(chan struct{})
	op := func(s *State) {
		defer close(finished)
		fn(s)
	}
	select {
	case e.ops <- op:
	case <-e.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// publish stores a new snapshot and signals watchers. Loop goroutine only.
func (e *Engine) publish() {
	e.version++
	records := e.state.Records()
	e.snapshot.Store(&Snapshot{
		Tasks:    records,
		Version:  e.version,
		Synced:   e.synced,
		LastSync: e.lastSync,
	})
	metrics.LocalRecords.Set(float64(len(records)))

	e.watchMu.Lock()
	for _, ch := range e.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	e.watchMu.Unlock()
}

// Start subscribes to the change feed. Every connection, including the
// first, triggers a full resync before further events are applied.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.started {
		return nil
	}
	e.started = true
	e.unsubscribe = e.feed.Listen(e.channel, e.handleEvent, e.handleConnect)
	e.logger.Info("engine started")
	return nil
}

// Close unsubscribes from the feed and stops the loop. Safe to call more
// than once.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	unsubscribe := e.unsubscribe
	e.mu.Unlock()

	// no feed callback can run after this returns
	if unsubscribe != nil {
		unsubscribe()
	}
	close(e.quit)
	<-e.done

	e.watchMu.Lock()
	for id, ch := range e.watchers {
		close(ch)
		delete(e.watchers, id)
	}
	e.watchMu.Unlock()

	e.logger.Info("engine closed")
}

func (e *Engine) handleEvent(ev model.ChangeEvent) {
	err := e.do(context.Background(), func(s *State) {
		outcome := s.ApplyChangeEvent(ev)
		e.remember(ev, false)
		metrics.ReconcileOutcomes.WithLabelValues(string(ev.Kind), outcome.String()).Inc()
		e.logger.Debug("applied change event", "event", ev.String(), "outcome", outcome.String())
		if outcome.Changed() {
			e.publish()
		}
	})
	if err != nil {
		e.logger.Debug("dropping change event", "event", ev.String(), "error", err)
	}
}

func (e *Engine) handleConnect(ctx context.Context, reconnected bool) error {
	e.logger.Info("feed connected, resyncing", "reconnected", reconnected)
	return e.Resync(ctx)
}

// Resync reloads the full record set from the store and replaces local state.
// Change events applied while the query is outstanding may be newer than the
// queried set, so they are replayed on top of it.
func (e *Engine) Resync(ctx context.Context) error {
	buf := &resyncBuffer{}
	if err := e.do(ctx, func(*State) { e.pending[buf] = struct{}{} }); err != nil {
		return err
	}
	replayed := false
	defer func() {
		if !replayed {
			_ = e.do(context.Background(), func(*State) { delete(e.pending, buf) })
		}
	}()

	tasks, err := e.store.QueryAll(ctx)
	if err != nil {
		metrics.Resyncs.WithLabelValues("error").Inc()
		e.logger.Warn("resync query failed", "error", err)
		return fmt.Errorf("resync: %w", err)
	}

	err = e.do(ctx, func(s *State) {
		delete(e.pending, buf)
		replayed = true
		s.Resync(tasks)
		for _, c := range buf.entries {
			if c.optimistic {
				s.ApplyOptimisticInsert(c.ev.Record)
			} else {
				s.ApplyChangeEvent(c.ev)
			}
		}
		e.synced = true
		e.lastSync = time.Now()
		e.publish()
	})
	if err != nil {
		return err
	}

	metrics.Resyncs.WithLabelValues("ok").Inc()
	e.syncedOnce.Do(func() { close(e.syncedCh) })
	e.logger.Debug("resync complete", "records", len(tasks), "replayed", len(buf.entries))
	return nil
}

// WaitSynced blocks until the first resync has completed.
func (e *Engine) WaitSynced(ctx context.Context) error {
	select {
	case <-e.syncedCh:
		return nil
	case <-e.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the latest published view. Never nil.
func (e *Engine) Snapshot() *Snapshot {
	return e.snapshot.Load()
}

// Records returns the current records in ascending id order.
func (e *Engine) Records() []model.Task {
	return e.snapshot.Load().Tasks
}

// Watch returns a channel signalled after every change to local state, and
// a func to stop watching. Signals coalesce; read Snapshot after each one.
// The channel is closed when the engine closes.
func (e *Engine) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	e.watchMu.Lock()
	id := e.watchID
	e.watchID++
	e.watchers[id] = ch
	e.watchMu.Unlock()

	return ch, func() {
		e.watchMu.Lock()
		defer e.watchMu.Unlock()
		if _, ok := e.watchers[id]; ok {
			delete(e.watchers, id)
			close(ch)
		}
	}
}

// Principal returns the acting principal.
func (e *Engine) Principal() (identity.Principal, bool) {
	return e.session.Current()
}

// CanModify reports whether the current principal may update or delete t.
func (e *Engine) CanModify(t model.Task) bool {
	p, ok := e.session.Current()
	if !ok {
		return false
	}
	return CanModify(p.ID, t)
}
