package connection

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Errors
var (
	ErrConnect        = errors.New("connect failed")
	ErrNotConnected   = errors.New("not connected")
	ErrAlreadyStarted = errors.New("already started")
	ErrAlreadyRunning = errors.New("run loop already active")
	ErrStopped        = errors.New("manager stopped")
)

// Message is one inbound or outbound frame decoded as a JSON document.
// Handlers must treat it as read-only; later callbacks see the same value.
type Message map[string]any

// MessageFunc handles one inbound message.
type MessageFunc func(msg Message)

// ReconnectFunc runs once per successful reconnect.
type ReconnectFunc func()

// State is the manager's connectivity phase. All transitions go through
// the manager, so no two components can disagree about connectivity.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateStopped      State = "stopped"
)

// Strategy attaches endpoint-specific behavior to the manager without
// the manager knowing endpoint details. The most common difference
// between exchange endpoints is how heartbeats keep a long-standing
// connection alive: Deribit, for example, requires a setup message on
// connect and an echo for every test request it sends.
type Strategy interface {
	// OnStart runs after each successful connect, including reconnects.
	// It may send setup messages through the manager.
	OnStart(ctx context.Context, m Manager) error

	// OnMessage runs for every inbound message, before any registered
	// callback. It never suppresses delivery to callbacks.
	OnMessage(ctx context.Context, m Manager, msg Message) error
}

// Notifier receives connect failures, reconnect attempts, dispatch
// errors, and malformed payload reports. Implementations must not panic.
type Notifier interface {
	Report(level slog.Level, msg string, args ...any)
}

// slogNotifier is the default Notifier, backed by a slog.Logger.
type slogNotifier struct {
	logger *slog.Logger
}

func (n slogNotifier) Report(level slog.Level, msg string, args ...any) {
	n.logger.Log(context.Background(), level, msg, args...)
}

// Config configures the connection manager.
type Config struct {
	URL                  string        // Endpoint URL (e.g., wss://www.deribit.com/ws/api/v2)
	ReconnectBaseWait    time.Duration // Base wait time between reconnect attempts
	ReconnectMaxWait     time.Duration // Max wait time between reconnect attempts
	MaxReconnectAttempts int           // 0 = retry until Stop
	SessionMaxAge        time.Duration // Force a clean reconnect after this long; 0 = never
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReconnectBaseWait: 1 * time.Second,
		ReconnectMaxWait:  60 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.ReconnectBaseWait == 0 {
		c.ReconnectBaseWait = def.ReconnectBaseWait
	}
	if c.ReconnectMaxWait == 0 {
		c.ReconnectMaxWait = def.ReconnectMaxWait
	}
}
