// ABOUTME: Change feed subscriber with automatic resubscription and a per-connection hook
// ABOUTME: Validates frames into ChangeEvents and drops re-delivered envelopes

package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/2389/tasksync/internal/dedupe"
	"github.com/2389/tasksync/internal/metrics"
	"github.com/2389/tasksync/internal/model"
)

// EventHandler receives validated change events.
type EventHandler func(model.ChangeEvent)

// ConnectHandler runs after every successful (re)connection, before any
// further event is delivered. Returning an error drops the connection and
// schedules a reconnect.
type ConnectHandler func(ctx context.Context, reconnected bool) error

// Config configures a Subscriber.
type Config struct {
	Dialer       Dialer
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	// ReadTimeout bounds the wait for any frame, heartbeats included.
	ReadTimeout time.Duration
	DedupeTTL   time.Duration
	DedupeSize  int
	Logger      *slog.Logger
}

// Subscriber creates subscriptions over one Dialer.
type Subscriber struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Subscriber, filling unset durations with defaults.
func New(cfg Config) *Subscriber {
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = 500 * time.Millisecond
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = 30 * time.Second
		if cfg.ReconnectMax < cfg.ReconnectMin {
			cfg.ReconnectMax = cfg.ReconnectMin
		}
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = 5 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{cfg: cfg, logger: logger.With("component", "feed")}
}

// Option configures one subscription.
type Option func(*Subscription)

// OnConnect sets the per-connection hook.
func OnConnect(fn ConnectHandler) Option {
	return func(s *Subscription) { s.onConnect = fn }
}

// Subscription is a live subscription to one channel.
type Subscription struct {
	channel   string
	onEvent   EventHandler
	onConnect ConnectHandler

	sub    *Subscriber
	seen   *dedupe.Window
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Subscribe starts delivering events on channel to onEvent. Delivery and the
// OnConnect hook run on the subscription's own goroutine, one at a time.
func (s *Subscriber) Subscribe(channel string, onEvent EventHandler, opts ...Option) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		channel: channel,
		onEvent: onEvent,
		sub:     s,
		seen:    dedupe.NewWindow(s.cfg.DedupeTTL, s.cfg.DedupeSize),
		logger:  s.logger.With("channel", channel),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(sub)
	}
	go sub.run(ctx)
	return sub
}

// Listen adapts Subscribe to a plain unsubscribe func.
func (s *Subscriber) Listen(channel string, onEvent func(model.ChangeEvent), onConnect func(ctx context.Context, reconnected bool) error) func() {
	return s.Subscribe(channel, onEvent, OnConnect(onConnect)).Unsubscribe
}

// Unsubscribe stops the subscription and waits for its goroutine to exit.
// No callback runs after it returns. It must not be called from a callback.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.logger.Debug("unsubscribed")
	})
}

// Done is closed once the subscription has fully stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)

	attempt := 0
	everConnected := false
	for {
		connected, err := s.session(ctx, everConnected)
		if ctx.Err() != nil {
			return
		}
		if connected {
			everConnected = true
			attempt = 0
		}

		delay := backoff(s.sub.cfg.ReconnectMin, s.sub.cfg.ReconnectMax, attempt)
		attempt++
		metrics.FeedDisconnects.WithLabelValues(s.channel).Inc()
		s.logger.Warn("feed connection lost, reconnecting", "error", err, "retry_in", delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// session runs one connection until it fails. connected reports whether the
// subscribed frame arrived and the connect hook succeeded.
func (s *Subscription) session(ctx context.Context, reconnected bool) (connected bool, err error) {
	conn, err := s.sub.cfg.Dialer.Dial(ctx, s.channel)
	if err != nil {
		return false, err
	}
	defer func() { _ = conn.Close() }()

	for {
		readCtx, cancel := context.WithTimeout(ctx, s.sub.cfg.ReadTimeout)
		frame, err := conn.Read(readCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				err = fmt.Errorf("no frame within %s: %w", s.sub.cfg.ReadTimeout, err)
			}
			return connected, err
		}

		if frame.IsSystem() {
			if frame.Status == model.StatusSubscribed && !connected {
				if err := s.connect(ctx, reconnected); err != nil {
					return false, err
				}
				connected = true
			}
			continue
		}

		if !connected {
			// the resync that follows the subscribed frame covers this
			s.logger.Debug("dropping frame received before subscription", "event_id", frame.ID)
			continue
		}
		s.deliver(frame)
	}
}

func (s *Subscription) connect(ctx context.Context, reconnected bool) error {
	metrics.FeedConnects.WithLabelValues(s.channel, fmt.Sprint(reconnected)).Inc()
	s.logger.Info("feed subscribed", "reconnected", reconnected)

	if s.onConnect == nil {
		return nil
	}
	if err := s.onConnect(ctx, reconnected); err != nil {
		return fmt.Errorf("connect hook: %w", err)
	}
	s.seen.Forget()
	return nil
}

func (s *Subscription) deliver(frame model.WireEvent) {
	if s.seen.Seen(frame.ID) {
		metrics.FeedDuplicates.WithLabelValues(s.channel).Inc()
		s.logger.Debug("dropping re-delivered frame", "event_id", frame.ID)
		return
	}

	ev, err := model.ParseChangeEvent(frame)
	if err != nil {
		metrics.FeedMalformed.WithLabelValues(s.channel).Inc()
		s.logger.Warn("dropping malformed frame", "event_id", frame.ID, "type", frame.Type, "error", err)
		return
	}
	s.onEvent(ev)
}

// backoff returns lo*2^attempt capped at hi, with up to 20% jitter either way.
func backoff(lo, hi time.Duration, attempt int) time.Duration {
	d := lo
	for i := 0; i < attempt && d < hi; i++ {
		d *= 2
	}
	if d > hi {
		d = hi
	}
	jitter := time.Duration(float64(d) * 0.2 * (rand.Float64()*2 - 1))
	return d + jitter
}
