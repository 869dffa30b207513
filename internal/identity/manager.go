// ABOUTME: Session manager with an explicit init/subscribe/get/teardown lifecycle
// ABOUTME: Notifies listeners whenever the signed-in principal changes

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrNotInitialized is returned by operations that need Init first.
var ErrNotInitialized = errors.New("session manager not initialized")

// Listener receives the new session after every change; nil means signed out.
type Listener func(*Session)

// Manager tracks the current session.
type Manager struct {
	provider Provider
	logger   *slog.Logger
	now      func() time.Time

	mu          sync.RWMutex
	session     *Session
	initialized bool
	listeners   map[int]Listener
	nextID      int
}

// NewManager creates a manager over provider. Pass nil logger for default.
func NewManager(provider Provider, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		provider:  provider,
		logger:    logger.With("component", "session"),
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
}

// Init loads the stored session. An expired token is treated as signed out.
func (m *Manager) Init(ctx context.Context) error {
	sess, err := m.provider.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if sess != nil && sess.Expired(m.now()) {
		m.logger.Warn("stored token has expired", "principal", sess.Principal.ID)
		sess = nil
	}

	m.mu.Lock()
	m.initialized = true
	m.mu.Unlock()

	m.set(sess)
	return nil
}

// Current returns the signed-in principal.
func (m *Manager) Current() (Principal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return Principal{}, false
	}
	return m.session.Principal, true
}

// Token returns the current bearer token, or "" when signed out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return ""
	}
	return m.session.Token
}

// Session returns a copy of the current session, or nil.
func (m *Manager) Session() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

// Subscribe registers fn for session changes and returns its cancel func.
func (m *Manager) Subscribe(fn Listener) (cancel func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Login persists token and makes it the current session.
func (m *Manager) Login(ctx context.Context, token string) (*Session, error) {
	if !m.isInitialized() {
		return nil, ErrNotInitialized
	}
	sess, err := m.provider.Save(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	m.set(sess)
	m.logger.Info("signed in", "principal", sess.Principal.ID)
	return sess, nil
}

// Logout clears the stored credential and the current session.
func (m *Manager) Logout(ctx context.Context) error {
	if !m.isInitialized() {
		return ErrNotInitialized
	}
	if err := m.provider.Clear(ctx); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	m.set(nil)
	m.logger.Info("signed out")
	return nil
}

// Teardown drops all listeners. The manager may be re-initialized afterwards.
func (m *Manager) Teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = make(map[int]Listener)
	m.initialized = false
}

func (m *Manager) isInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// set swaps the session and notifies listeners outside the lock.
func (m *Manager) set(sess *Session) {
	m.mu.Lock()
	m.session = sess
	listeners := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(sess)
	}
}
