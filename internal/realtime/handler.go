// ABOUTME: Websocket endpoint streaming a channel's wire events to one subscriber
// ABOUTME: Sends a subscribed frame once registered, heartbeats while idle, and closes on eviction

package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/2389/tasksync/internal/model"
)

// HandlerConfig tunes the websocket endpoint.
type HandlerConfig struct {
	// Heartbeat is the interval between heartbeat frames. Zero disables them.
	Heartbeat time.Duration
	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration
	// OriginPatterns lists allowed browser origins; empty allows same-origin only.
	OriginPatterns []string
}

// Handler serves GET /realtime/v1/{channel}.
type Handler struct {
	broadcaster *EventBroadcaster
	cfg         HandlerConfig
	logger      *slog.Logger
}

// NewHandler creates the websocket handler over broadcaster.
func NewHandler(broadcaster *EventBroadcaster, cfg HandlerConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Handler{
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      logger.With("component", "realtime"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	if channel == "" {
		http.Error(w, "channel is required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.cfg.OriginPatterns})
	if err != nil {
		h.logger.Debug("websocket accept failed", "error", err)
		return
	}

	// subscribers only listen; CloseRead services control frames and cancels
	// ctx when the peer goes away
	ctx := conn.CloseRead(r.Context())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, subID := h.broadcaster.Subscribe(ctx, channel)
	logger := h.logger.With("channel", channel, "sub_id", subID)
	logger.Info("subscriber connected", "remote", r.RemoteAddr)

	if err := h.write(ctx, conn, model.SystemEvent(channel, model.StatusSubscribed)); err != nil {
		logger.Debug("writing subscribed frame failed", "error", err)
		_ = conn.Close(websocket.StatusInternalError, "write_failed")
		return
	}

	var heartbeat <-chan time.Time
	if h.cfg.Heartbeat > 0 {
		ticker := time.NewTicker(h.cfg.Heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("subscriber disconnected")
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-heartbeat:
			if err := h.write(ctx, conn, model.SystemEvent(channel, model.StatusHeartbeat)); err != nil {
				logger.Debug("heartbeat failed", "error", err)
				_ = conn.Close(websocket.StatusGoingAway, "write_failed")
				return
			}
		case ev, ok := <-events:
			if !ok {
				// evicted or shutting down; the client resyncs on reconnect
				logger.Info("subscription ended by server")
				_ = conn.Close(websocket.StatusTryAgainLater, "resubscribe")
				return
			}
			if err := h.write(ctx, conn, ev); err != nil {
				logger.Debug("event write failed", "error", err)
				_ = conn.Close(websocket.StatusGoingAway, "write_failed")
				return
			}
		}
	}
}

func (h *Handler) write(ctx context.Context, conn *websocket.Conn, ev model.WireEvent) error {
	writeCtx, cancel := context.WithTimeout(ctx, h.cfg.WriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, ev)
}
