package transport

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Errors
var (
	ErrClosed = errors.New("connection closed")
	ErrStale  = errors.New("connection stale (no ping)")
)

// Transport opens streaming sessions against an endpoint.
type Transport interface {
	// Open dials the endpoint and returns a live session.
	Open(ctx context.Context, url string) (Conn, error)
}

// Conn is a single live streaming session.
type Conn interface {
	// Send writes one frame. Safe for concurrent use with Receive.
	Send(data []byte) error

	// Receive blocks until the next inbound frame arrives. Returns
	// ErrClosed after Close; any other error means the session is dead.
	Receive() ([]byte, error)

	// Close tears down the session. Idempotent.
	Close() error
}

// Config configures a WebSocket transport.
type Config struct {
	HandshakeTimeout time.Duration // Dial handshake deadline
	WriteTimeout     time.Duration // Write deadline for sends
	PingInterval     time.Duration // How often to send keepalive pings
	PingTimeout      time.Duration // Max time without ping/pong before the session is stale
	Header           http.Header   // Extra headers for the handshake (auth etc.)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     15 * time.Second,
		PingTimeout:      60 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.PingInterval == 0 {
		c.PingInterval = def.PingInterval
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = def.PingTimeout
	}
}
