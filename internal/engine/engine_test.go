// ABOUTME: Tests for the engine event loop and mutation commands against in-memory fakes
// ABOUTME: Covers commands, feed interleavings, error classification, resync on connect, and watchers

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tasksync/internal/identity"
	"github.com/2389/tasksync/internal/model"
	"github.com/2389/tasksync/internal/store"
)

// fakeSession is a fixed principal, or signed out when nil.
type fakeSession struct {
	mu sync.Mutex
	p  *identity.Principal
}

func (s *fakeSession) Current() (identity.Principal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.p == nil {
		return identity.Principal{}, false
	}
	return *s.p, true
}

// fakeStore adapts store.MockStore to RecordStore for one actor.
type fakeStore struct {
	backend *store.MockStore
	actor   string

	mu         sync.Mutex
	err        error // returned by every call when set
	queryCalls int
	calls      int

	// afterInsert runs once the record is committed, before Insert returns.
	afterInsert func(model.Task)
	// afterQuery runs once the set is read, before QueryAll returns.
	afterQuery func()
}

func (f *fakeStore) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeStore) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeStore) Insert(ctx context.Context, t model.Task) (model.Task, error) {
	if err := f.fail(); err != nil {
		return model.Task{}, err
	}
	created, err := f.backend.InsertTask(ctx, f.actor, t)
	if err == nil && f.afterInsert != nil {
		f.afterInsert(created)
	}
	return created, err
}

func (f *fakeStore) Update(ctx context.Context, id int64, patch model.TaskPatch) error {
	if err := f.fail(); err != nil {
		return err
	}
	_, err := f.backend.UpdateTask(ctx, f.actor, id, patch)
	return err
}

func (f *fakeStore) Delete(ctx context.Context, id int64) error {
	if err := f.fail(); err != nil {
		return err
	}
	_, err := f.backend.DeleteTask(ctx, f.actor, id)
	return err
}

func (f *fakeStore) QueryAll(ctx context.Context) ([]model.Task, error) {
	f.mu.Lock()
	f.queryCalls++
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	tasks, err := f.backend.ListTasks(ctx)
	if err == nil && f.afterQuery != nil {
		f.afterQuery()
	}
	return tasks, err
}

// fakeFeed lets the test drive callbacks from its own goroutine, which keeps
// them serialized the way a real subscription does.
type fakeFeed struct {
	mu           sync.Mutex
	onEvent      func(model.ChangeEvent)
	onConnect    func(context.Context, bool) error
	unsubscribed bool
}

func (f *fakeFeed) Listen(channel string, onEvent func(model.ChangeEvent), onConnect func(context.Context, bool) error) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onEvent = onEvent
	f.onConnect = onConnect
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubscribed = true
	}
}

func (f *fakeFeed) connect(t *testing.T, reconnected bool) error {
	t.Helper()
	f.mu.Lock()
	fn := f.onConnect
	f.mu.Unlock()
	require.NotNil(t, fn, "engine not started")
	return fn(context.Background(), reconnected)
}

func (f *fakeFeed) emit(t *testing.T, ev model.ChangeEvent) {
	t.Helper()
	f.mu.Lock()
	fn := f.onEvent
	f.mu.Unlock()
	require.NotNil(t, fn, "engine not started")
	fn(ev)
}

type harness struct {
	engine  *Engine
	store   *fakeStore
	backend *store.MockStore
	feed    *fakeFeed
	session *fakeSession
}

func newHarness(t *testing.T, principal *identity.Principal) *harness {
	t.Helper()
	backend := store.NewMockStore()
	actor := ""
	if principal != nil {
		actor = principal.ID
	}
	h := &harness{
		store:   &fakeStore{backend: backend, actor: actor},
		backend: backend,
		feed:    &fakeFeed{},
		session: &fakeSession{p: principal},
	}
	h.engine = New(Config{Store: h.store, Session: h.session, Feed: h.feed})
	require.NoError(t, h.engine.Start())
	t.Cleanup(h.engine.Close)
	return h
}

func u1() *identity.Principal {
	return &identity.Principal{ID: "u1", Email: "u1@example.com", FullName: "Ann", AvatarURL: "https://example.com/a.png"}
}

// seed inserts a record directly in the backend on behalf of creator.
func (h *harness) seed(t *testing.T, title, creator string) model.Task {
	t.Helper()
	rec, err := h.backend.InsertTask(context.Background(), creator, model.Task{Title: title, CreatorID: creator, CreatorName: creator})
	require.NoError(t, err)
	return rec
}

func TestCreate_InsertsOwnedRecord(t *testing.T) {
	h := newHarness(t, u1())
	require.NoError(t, h.feed.connect(t, false))

	created, err := h.engine.Create(context.Background(), "  Buy milk ")
	require.NoError(t, err)

	assert.Equal(t, "Buy milk", created.Title)
	assert.False(t, created.IsComplete)
	assert.Equal(t, "u1", created.CreatorID)
	assert.Equal(t, "Ann", created.CreatorName)
	require.NotNil(t, created.CreatorAvatar)
	assert.Equal(t, "https://example.com/a.png", *created.CreatorAvatar)

	records := h.engine.Records()
	require.Len(t, records, 1)
	assert.True(t, created.Equal(records[0]), "optimistic insert uses the server-assigned record")

	// the feed's Insert for the same id collapses onto it
	h.feed.emit(t, model.InsertEvent(created))
	assert.Len(t, h.engine.Records(), 1)
}

func TestDeleteEvent_DeliveredTwice(t *testing.T) {
	h := newHarness(t, u1())
	for i := 0; i < 4; i++ {
		h.seed(t, fmt.Sprintf("t%d", i+1), "u1")
	}
	require.NoError(t, h.feed.connect(t, false))
	require.Len(t, h.engine.Records(), 4)

	h.feed.emit(t, model.DeleteEvent(3, nil))
	assert.Equal(t, []int64{1, 2, 4}, ids(h.engine.Records()))

	h.feed.emit(t, model.DeleteEvent(3, nil))
	assert.Equal(t, []int64{1, 2, 4}, ids(h.engine.Records()))
}

func TestToggle_WaitsForUpdateEvent(t *testing.T) {
	h := newHarness(t, u1())
	for i := 0; i < 5; i++ {
		h.seed(t, fmt.Sprintf("t%d", i+1), "u1")
	}
	require.NoError(t, h.feed.connect(t, false))

	require.NoError(t, h.engine.ToggleComplete(context.Background(), 5, false))

	rec, _ := findTask(h.engine.Records(), 5)
	assert.False(t, rec.IsComplete, "toggle does not mutate local state")

	updated, err := h.backend.GetTask(context.Background(), 5)
	require.NoError(t, err)
	require.True(t, updated.IsComplete)

	h.feed.emit(t, model.UpdateEvent(updated))
	rec, ok := findTask(h.engine.Records(), 5)
	require.True(t, ok)
	assert.True(t, rec.IsComplete)
}

func TestReconnect_ResyncRepairsMissedChanges(t *testing.T) {
	h := newHarness(t, u1())
	a := h.seed(t, "a", "u1")
	b := h.seed(t, "b", "u1")
	require.NoError(t, h.feed.connect(t, false))
	require.Equal(t, []int64{a.ID, b.ID}, ids(h.engine.Records()))

	// while disconnected: one delete and one insert are never delivered
	_, err := h.backend.DeleteTask(context.Background(), "u1", a.ID)
	require.NoError(t, err)
	c := h.seed(t, "c", "u2")

	require.NoError(t, h.feed.connect(t, true))

	want, err := h.backend.ListTasks(context.Background())
	require.NoError(t, err)
	assert.True(t, sameRecords(want, h.engine.Records()))
	assert.Equal(t, []int64{b.ID, c.ID}, ids(h.engine.Records()))
	assert.Equal(t, 2, h.store.queryCalls)
}

func TestCreate_Errors(t *testing.T) {
	t.Run("signed out", func(t *testing.T) {
		h := newHarness(t, nil)
		_, err := h.engine.Create(context.Background(), "x")
		assert.ErrorIs(t, err, ErrUnauthenticated)
		assert.Equal(t, 0, h.store.callCount(), "no remote call without a principal")
	})

	t.Run("empty title", func(t *testing.T) {
		h := newHarness(t, u1())
		_, err := h.engine.Create(context.Background(), "   ")
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, 0, h.store.callCount())
	})

	t.Run("transport failure leaves state unchanged", func(t *testing.T) {
		h := newHarness(t, u1())
		require.NoError(t, h.feed.connect(t, false))
		h.store.setErr(errors.New("dial tcp: connection refused"))

		_, err := h.engine.Create(context.Background(), "x")
		assert.ErrorIs(t, err, ErrTransport)
		assert.Empty(t, h.engine.Records())

		var cmdErr *CommandError
		require.ErrorAs(t, err, &cmdErr)
		assert.Equal(t, "create", cmdErr.Op)
		assert.Contains(t, cmdErr.Error(), "connection refused")
	})

	t.Run("credentials rejected", func(t *testing.T) {
		h := newHarness(t, u1())
		h.store.setErr(fmt.Errorf("server said: %w", model.ErrUnauthorized))
		_, err := h.engine.Create(context.Background(), "x")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestDelete_PolicyRejection(t *testing.T) {
	h := newHarness(t, u1())
	other := h.seed(t, "theirs", "u2")
	require.NoError(t, h.feed.connect(t, false))

	err := h.engine.Delete(context.Background(), other.ID)
	assert.ErrorIs(t, err, ErrAuthorizationDenied)
	assert.NotErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, model.ErrPolicyViolation, "cause is preserved")
	assert.Len(t, h.engine.Records(), 1, "delete never mutates local state")
}

func TestDelete_TransportFailure(t *testing.T) {
	h := newHarness(t, u1())
	mine := h.seed(t, "mine", "u1")
	h.store.setErr(errors.New("503 service unavailable"))

	err := h.engine.Delete(context.Background(), mine.ID)
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrAuthorizationDenied)
}

func TestDelete_SuccessWaitsForFeed(t *testing.T) {
	h := newHarness(t, u1())
	mine := h.seed(t, "mine", "u1")
	require.NoError(t, h.feed.connect(t, false))

	require.NoError(t, h.engine.Delete(context.Background(), mine.ID))
	assert.Len(t, h.engine.Records(), 1)

	h.feed.emit(t, model.DeleteEvent(mine.ID, &mine))
	assert.Empty(t, h.engine.Records())
}

func TestUpdate(t *testing.T) {
	h := newHarness(t, u1())
	mine := h.seed(t, "mine", "u1")
	theirs := h.seed(t, "theirs", "u2")
	require.NoError(t, h.feed.connect(t, false))

	err := h.engine.Update(context.Background(), mine.ID, "  ")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, h.store.callCount(), "validation happens before the remote call")

	err = h.engine.Update(context.Background(), theirs.ID, "hijack")
	assert.ErrorIs(t, err, ErrAuthorizationDenied)

	require.NoError(t, h.engine.Update(context.Background(), mine.ID, " renamed "))
	got, err := h.backend.GetTask(context.Background(), mine.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)

	rec, _ := findTask(h.engine.Records(), mine.ID)
	assert.Equal(t, "mine", rec.Title, "update waits for the feed")
}

func TestToggle_PolicyRejection(t *testing.T) {
	h := newHarness(t, u1())
	theirs := h.seed(t, "theirs", "u2")

	err := h.engine.ToggleComplete(context.Background(), theirs.ID, false)
	assert.ErrorIs(t, err, ErrAuthorizationDenied)
	assert.Equal(t, "You can only change tasks you created.", UserMessage(err))
}

func TestUserMessagesAreDistinct(t *testing.T) {
	kinds := []error{ErrUnauthenticated, ErrValidation, ErrAuthorizationDenied, ErrTransport}
	seen := map[string]bool{}
	for _, kind := range kinds {
		msg := UserMessage(&CommandError{Op: "x", Kind: kind})
		assert.NotEmpty(t, msg)
		assert.False(t, seen[msg], "duplicate message %q", msg)
		seen[msg] = true
	}
	assert.Empty(t, UserMessage(nil))
}

func TestEngine_CanModify(t *testing.T) {
	h := newHarness(t, u1())
	assert.True(t, h.engine.CanModify(model.Task{CreatorID: "u1"}))
	assert.False(t, h.engine.CanModify(model.Task{CreatorID: "u2"}))

	signedOut := newHarness(t, nil)
	assert.False(t, signedOut.engine.CanModify(model.Task{CreatorID: "u1"}))
}

func TestEngine_ResyncFailureIsReported(t *testing.T) {
	h := newHarness(t, u1())
	h.store.setErr(errors.New("timeout"))

	err := h.feed.connect(t, false)
	assert.Error(t, err, "connect hook surfaces the failure so the feed reconnects")
	assert.False(t, h.engine.Snapshot().Synced)

	h.store.setErr(nil)
	require.NoError(t, h.feed.connect(t, true))
	assert.True(t, h.engine.Snapshot().Synced)
}

func TestEngine_WaitSynced(t *testing.T) {
	h := newHarness(t, u1())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.engine.WaitSynced(ctx), context.DeadlineExceeded)

	require.NoError(t, h.feed.connect(t, false))
	assert.NoError(t, h.engine.WaitSynced(context.Background()))
}

func TestEngine_WatchSignalsChanges(t *testing.T) {
	h := newHarness(t, u1())
	changes, stop := h.engine.Watch()
	defer stop()

	require.NoError(t, h.feed.connect(t, false))
	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("no signal after resync")
	}
	v := h.engine.Snapshot().Version

	h.feed.emit(t, model.DeleteEvent(99, nil)) // stale: no change, no signal
	select {
	case <-changes:
		t.Fatal("unexpected signal for a no-op event")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, v, h.engine.Snapshot().Version)

	h.feed.emit(t, model.InsertEvent(task(1, "a", "u2")))
	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("no signal after insert")
	}
	assert.Greater(t, h.engine.Snapshot().Version, v)
}

func TestEngine_Close(t *testing.T) {
	h := newHarness(t, u1())
	changes, _ := h.engine.Watch()

	h.engine.Close()
	h.engine.Close()

	assert.True(t, h.feed.unsubscribed)
	_, ok := <-changes
	assert.False(t, ok, "watch channels close with the engine")
	assert.ErrorIs(t, h.engine.Start(), ErrClosed)
	assert.ErrorIs(t, h.engine.WaitSynced(context.Background()), ErrClosed)
	assert.ErrorIs(t, h.engine.Resync(context.Background()), ErrClosed)
}

func TestEngine_ConcurrentEventsAndCreates(t *testing.T) {
	h := newHarness(t, u1())
	require.NoError(t, h.feed.connect(t, false))

	var wg sync.WaitGroup
	created := make(chan model.Task, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := h.engine.Create(context.Background(), fmt.Sprintf("task %d", i))
			if err == nil {
				created <- rec
			}
		}(i)
	}
	wg.Wait()
	close(created)

	// the feed then delivers every Insert, some twice
	for rec := range created {
		h.feed.emit(t, model.InsertEvent(rec))
		if rec.ID%2 == 0 {
			h.feed.emit(t, model.InsertEvent(rec))
		}
	}

	got := ids(h.engine.Records())
	require.Len(t, got, 20)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1], got[i])
	}
}

func TestCreate_DeleteEventBeforeInsertReturns(t *testing.T) {
	h := newHarness(t, u1())
	require.NoError(t, h.feed.connect(t, false))

	// the feed delivers the insert and a delete from another client before
	// the create call returns
	h.store.afterInsert = func(created model.Task) {
		h.feed.emit(t, model.InsertEvent(created))
		_, err := h.backend.DeleteTask(context.Background(), "u1", created.ID)
		require.NoError(t, err)
		h.feed.emit(t, model.DeleteEvent(created.ID, nil))
	}

	_, err := h.engine.Create(context.Background(), "x")
	require.NoError(t, err)

	assert.Empty(t, h.engine.Records(), "a deleted record must not come back")
}

func TestCreate_UpdateEventBeforeInsertReturns(t *testing.T) {
	h := newHarness(t, u1())
	require.NoError(t, h.feed.connect(t, false))

	h.store.afterInsert = func(created model.Task) {
		h.feed.emit(t, model.InsertEvent(created))
		done := true
		updated, err := h.backend.UpdateTask(context.Background(), "u1", created.ID, model.TaskPatch{IsComplete: &done})
		require.NoError(t, err)
		h.feed.emit(t, model.UpdateEvent(updated))
	}

	created, err := h.engine.Create(context.Background(), "x")
	require.NoError(t, err)

	rec, ok := findTask(h.engine.Records(), created.ID)
	require.True(t, ok)
	assert.True(t, rec.IsComplete, "the create response is older than the Update event")
}

func TestResync_KeepsEventsAppliedDuringQuery(t *testing.T) {
	h := newHarness(t, u1())
	gone := h.seed(t, "gone", "u1")
	require.NoError(t, h.feed.connect(t, false))
	require.Equal(t, []int64{gone.ID}, ids(h.engine.Records()))

	// the query has already read the set when these changes are delivered
	var added model.Task
	h.store.afterQuery = func() {
		added = h.seed(t, "added", "u2")
		h.feed.emit(t, model.InsertEvent(added))
		_, err := h.backend.DeleteTask(context.Background(), "u1", gone.ID)
		require.NoError(t, err)
		h.feed.emit(t, model.DeleteEvent(gone.ID, nil))
	}

	require.NoError(t, h.engine.Resync(context.Background()))

	assert.Equal(t, []int64{added.ID}, ids(h.engine.Records()))
	want, err := h.backend.ListTasks(context.Background())
	require.NoError(t, err)
	assert.True(t, sameRecords(want, h.engine.Records()))
}

func TestResync_KeepsCreateAppliedDuringQuery(t *testing.T) {
	h := newHarness(t, u1())
	require.NoError(t, h.feed.connect(t, false))

	var created model.Task
	h.store.afterQuery = func() {
		var err error
		created, err = h.engine.Create(context.Background(), "mine")
		require.NoError(t, err)
	}

	require.NoError(t, h.engine.Resync(context.Background()))

	rec, ok := findTask(h.engine.Records(), created.ID)
	require.True(t, ok, "optimistic insert survives a resync whose query predates it")
	assert.Equal(t, "mine", rec.Title)
}

func TestResync_FailedQueryStopsBuffering(t *testing.T) {
	h := newHarness(t, u1())
	require.NoError(t, h.feed.connect(t, false))

	h.store.setErr(errors.New("connection reset"))
	require.Error(t, h.engine.Resync(context.Background()))
	h.store.setErr(nil)

	require.NoError(t, h.engine.do(context.Background(), func(*State) {
		assert.Empty(t, h.engine.pending)
	}))
}

func findTask(tasks []model.Task, id int64) (model.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}
