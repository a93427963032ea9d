package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WS is a Transport backed by gorilla/websocket.
type WS struct {
	cfg    Config
	logger *slog.Logger
}

// NewWS creates a WebSocket transport.
func NewWS(cfg Config, logger *slog.Logger) *WS {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	return &WS{
		cfg:    cfg,
		logger: logger,
	}
}

// Open dials the endpoint and returns a live session.
func (t *WS) Open(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: t.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, url, t.cfg.Header)
	if err != nil {
		return nil, err
	}

	c := &wsConn{
		conn:       conn,
		cfg:        t.cfg,
		logger:     t.logger,
		lastPingAt: time.Now(),
		done:       make(chan struct{}),
	}

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		c.touchPing()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	// Server responds to our keepalive ping
	conn.SetPongHandler(func(string) error {
		c.touchPing()
		return nil
	})

	go c.keepaliveLoop()

	t.logger.Debug("websocket connected", "url", url)

	return c, nil
}

// wsConn implements Conn over a gorilla websocket connection.
type wsConn struct {
	conn   *websocket.Conn
	cfg    Config
	logger *slog.Logger

	// Write serialization
	writeMu sync.Mutex

	// State
	mu         sync.Mutex
	closed     bool
	closeErr   error // reason Receive reports after a local close
	lastPingAt time.Time

	done chan struct{}
}

// Send writes one text frame to the connection.
func (c *wsConn) Send(data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Receive blocks until the next frame arrives.
func (c *wsConn) Receive() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		// Reads racing a local Close report the close reason, not the
		// raw network error
		select {
		case <-c.done:
			return nil, c.closeReason()
		default:
			return nil, err
		}
	}
	return data, nil
}

// Close gracefully closes the connection.
func (c *wsConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)

	// Best effort close frame before tearing down the socket
	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.conn.Close()
}

func (c *wsConn) closeReason() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeErr != nil {
		return c.closeErr
	}
	return ErrClosed
}

func (c *wsConn) touchPing() {
	c.mu.Lock()
	c.lastPingAt = time.Now()
	c.mu.Unlock()
}

// keepaliveLoop pings the server and closes the session when it goes stale.
// Closing unblocks Receive, which lets the owner reconnect.
func (c *wsConn) keepaliveLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}

			c.mu.Lock()
			lastPing := c.lastPingAt
			c.mu.Unlock()

			if time.Since(lastPing) > c.cfg.PingTimeout {
				c.logger.Warn("no ping received, closing stale connection",
					"last_ping", lastPing,
					"timeout", c.cfg.PingTimeout,
				)
				c.mu.Lock()
				c.closeErr = ErrStale
				c.mu.Unlock()
				c.Close()
				return
			}
		}
	}
}
