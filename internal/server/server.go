// ABOUTME: Server orchestrator that owns the store, feed broadcaster, and HTTP listener
// ABOUTME: Manages startup over TCP or Tailscale and graceful shutdown

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"tailscale.com/tsnet"

	"github.com/2389/tasksync/internal/auth"
	"github.com/2389/tasksync/internal/config"
	"github.com/2389/tasksync/internal/metrics"
	"github.com/2389/tasksync/internal/model"
	"github.com/2389/tasksync/internal/realtime"
	"github.com/2389/tasksync/internal/store"
)

// Server runs the tasksync backend.
type Server struct {
	config      *config.Config
	backend     store.Store // underlying store, closed on shutdown
	tasks       store.Store // backend wrapped with event publishing
	broadcaster *realtime.EventBroadcaster
	relay       *realtime.RedisRelay
	verifier    *auth.JWTVerifier
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
}

// Option customizes a Server.
type Option func(*options)

type options struct {
	store store.Store
}

// WithStore uses s instead of opening the configured database.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// New creates a Server from cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}

	backend := o.store
	if backend == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		backend, err = store.Open(ctx, cfg.Database.Driver, cfg.Database.Path, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
	}

	broadcaster := realtime.NewEventBroadcaster(cfg.Realtime.SubscriberBuffer, logger)

	var publisher realtime.Publisher = broadcaster
	var relay *realtime.RedisRelay
	if cfg.Realtime.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		relay, err = realtime.NewRedisRelay(ctx, cfg.Realtime.RedisURL, broadcaster, logger)
		cancel()
		if err != nil {
			broadcaster.Close()
			_ = backend.Close()
			return nil, fmt.Errorf("connecting redis relay: %w", err)
		}
		publisher = relay
	}

	s := &Server{
		config:      cfg,
		backend:     backend,
		tasks:       realtime.NewPublishingStore(backend, publisher, model.TasksChannel, logger),
		broadcaster: broadcaster,
		relay:       relay,
		verifier:    verifier,
		logger:      logger.With("component", "server"),
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)

	authed := auth.HTTPAuthMiddleware(s.verifier)
	route := func(pattern, label string, h http.HandlerFunc) {
		mux.Handle(pattern, authed(instrument(label, h)))
	}
	route("GET /rest/v1/tasks", "list", s.handleListTasks)
	route("POST /rest/v1/tasks", "create", s.handleCreateTask)
	route("GET /rest/v1/tasks/{id}", "get", s.handleGetTask)
	route("PATCH /rest/v1/tasks/{id}", "update", s.handleUpdateTask)
	route("DELETE /rest/v1/tasks/{id}", "delete", s.handleDeleteTask)

	feed := realtime.NewHandler(s.broadcaster, realtime.HandlerConfig{
		Heartbeat:      s.config.Realtime.HeartbeatInterval,
		WriteTimeout:   s.config.Realtime.WriteTimeout,
		OriginPatterns: s.config.Realtime.AllowedOrigins,
	}, s.logger)
	mux.Handle("GET /realtime/v1/{channel}", authed(feed))

	if s.config.Metrics.Enabled {
		mux.Handle("GET "+s.config.Metrics.Path, metrics.Handler())
	}
	return mux
}

// setupTCPListener listens on server.http_addr.
func (s *Server) setupTCPListener() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", s.config.Server.HTTPAddr)
		}
		return s.setupTailscaleListener(ctx)
	}
	return s.setupTCPListener()
}

// Run serves until ctx is canceled, then shuts down gracefully.
// Returns nil on a clean shutdown or the first server error.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.setupListener(ctx)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs on an existing listener until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 2)

	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	if s.relay != nil {
		go func() {
			if err := s.relay.Run(relayCtx); err != nil {
				errCh <- fmt.Errorf("redis relay: %w", err)
			}
		}()
	}

	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	stopRelay()
	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context since the serving context is already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and releases resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	// closing the broadcaster ends open feed connections so Shutdown can drain
	s.broadcaster.Close()

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))
	if s.relay != nil {
		errs = appendCloseError(errs, "redis close", s.relay.Close())
	}
	if s.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", s.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "store close", s.backend.Close())

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the process is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the store answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.backend.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d subscribers)", s.broadcaster.SubscriberCount(model.TasksChannel))
}
