// ABOUTME: Builds the client stack: session, REST store, change feed, and engine
// ABOUTME: Shared by the tasksync CLI commands and the live board

package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/2389/tasksync/internal/config"
	"github.com/2389/tasksync/internal/engine"
	"github.com/2389/tasksync/internal/feed"
	"github.com/2389/tasksync/internal/identity"
	"github.com/2389/tasksync/internal/remote"
)

// Options configure New.
type Options struct {
	Config *config.ClientConfig
	// Provider overrides the credential-file provider.
	Provider identity.Provider
	// HTTPClient is used for REST calls and websocket dials.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is a wired tasksync client.
type Client struct {
	Config  *config.ClientConfig
	Session *identity.Manager
	Remote  *remote.Client
	Engine  *engine.Engine

	logger *slog.Logger
}

// New initializes the session and builds the engine. The feed is not
// opened until Start.
func New(ctx context.Context, opts Options) (*Client, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultClient()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	provider := opts.Provider
	if provider == nil {
		path := cfg.Auth.TokenFile
		if path == "" {
			path = config.TokenPath()
		}
		provider = identity.NewTokenProvider(path)
	}

	session := identity.NewManager(provider, logger)
	if err := session.Init(ctx); err != nil {
		return nil, err
	}

	var remoteOpts []remote.Option
	if opts.HTTPClient != nil {
		remoteOpts = append(remoteOpts, remote.WithHTTPClient(opts.HTTPClient))
	}
	rc := remote.NewClient(cfg.Server.URL, session.Token, remoteOpts...)

	subscriber := feed.New(feed.Config{
		Dialer: &feed.WebSocketDialer{
			BaseURL:    cfg.Server.URL,
			Token:      session.Token,
			HTTPClient: opts.HTTPClient,
		},
		ReconnectMin: cfg.Feed.ReconnectMin,
		ReconnectMax: cfg.Feed.ReconnectMax,
		ReadTimeout:  cfg.Feed.ReadTimeout,
		DedupeTTL:    cfg.Feed.DedupeTTL,
		DedupeSize:   cfg.Feed.DedupeSize,
		Logger:       logger,
	})

	eng := engine.New(engine.Config{
		Store:   rc,
		Session: session,
		Feed:    subscriber,
		Channel: cfg.Feed.Channel,
		Logger:  logger,
	})

	return &Client{
		Config:  cfg,
		Session: session,
		Remote:  rc,
		Engine:  eng,
		logger:  logger,
	}, nil
}

// Start opens the change feed.
func (c *Client) Start() error {
	return c.Engine.Start()
}

// StartAndSync opens the change feed and waits for the first resync.
func (c *Client) StartAndSync(ctx context.Context) error {
	if err := c.Engine.Start(); err != nil {
		return err
	}
	if err := c.Engine.WaitSynced(ctx); err != nil {
		return fmt.Errorf("waiting for first sync with %s: %w", c.Config.Server.URL, err)
	}
	return nil
}

// Close stops the engine and the session manager.
func (c *Client) Close() {
	c.Engine.Close()
	c.Session.Teardown()
}
