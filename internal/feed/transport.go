// ABOUTME: Dialer and Conn abstractions for the change feed, plus the websocket implementation
// ABOUTME: Uses coder/websocket with a bearer token header and JSON frames

package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/2389/tasksync/internal/model"
)

// Conn is one live feed connection.
type Conn interface {
	// Read blocks for the next frame.
	Read(ctx context.Context) (model.WireEvent, error)
	Close() error
}

// Dialer opens feed connections.
type Dialer interface {
	Dial(ctx context.Context, channel string) (Conn, error)
}

// WebSocketDialer dials GET {BaseURL}/realtime/v1/{channel}.
type WebSocketDialer struct {
	BaseURL    string
	Token      func() string
	HTTPClient *http.Client
}

var _ Dialer = (*WebSocketDialer)(nil)

// Dial opens a websocket for channel.
func (d *WebSocketDialer) Dial(ctx context.Context, channel string) (Conn, error) {
	u, err := url.Parse(strings.TrimSuffix(d.BaseURL, "/") + "/realtime/v1/" + url.PathEscape(channel))
	if err != nil {
		return nil, fmt.Errorf("building feed url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	header := http.Header{}
	if d.Token != nil {
		if token := d.Token(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	conn, resp, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing feed: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("dialing feed: %w", err)
	}
	// events are small; allow generous titles without unbounded frames
	conn.SetReadLimit(1 << 20)
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) (model.WireEvent, error) {
	var ev model.WireEvent
	if err := wsjson.Read(ctx, c.conn, &ev); err != nil {
		return model.WireEvent{}, err
	}
	return ev, nil
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "unsubscribe")
}
