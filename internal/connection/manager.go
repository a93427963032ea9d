package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lmartz/streamsock/internal/transport"
)

// Manager maintains one long-lived streaming connection.
type Manager interface {
	// Start opens the connection. On failure the manager stays idle and
	// Start may be called again.
	Start(ctx context.Context) error

	// Run enters the receive loop. Call after Start succeeds, usually in
	// its own goroutine so the caller can keep sending. Run returns nil
	// after Stop; cancelling ctx does not unblock a pending receive, so
	// callers wanting ctx-driven shutdown should call Stop when ctx ends.
	Run(ctx context.Context) error

	// Send writes one message through the live connection. Safe to call
	// concurrently with Run.
	Send(msg Message) error

	// Stop terminates the run loop and releases the connection. Idempotent,
	// valid even if Start was never called.
	Stop() error

	// OnMessage registers a callback invoked for every inbound message,
	// in registration order.
	OnMessage(fn MessageFunc)

	// OnReconnect registers a callback invoked once per successful reconnect.
	OnReconnect(fn ReconnectFunc)

	// State returns the current connectivity phase.
	State() State
}

// manager implements the Manager interface.
type manager struct {
	cfg      Config
	tr       transport.Transport
	strategy Strategy
	logger   *slog.Logger
	notifier Notifier

	// State machine. conn is replaced, never mutated, on reconnect.
	mu       sync.Mutex
	state    State
	conn     transport.Conn
	rotating bool
	running  bool
	stopped  bool

	stopCh chan struct{}

	// Callback registries, copied on iterate so registration during
	// dispatch is safe.
	cbMu         sync.Mutex
	msgCallbacks []MessageFunc
	recCallbacks []ReconnectFunc
}

// Option configures a Manager.
type Option func(*manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *manager) { m.logger = logger }
}

// WithNotifier sets the notifier that receives failure reports.
func WithNotifier(n Notifier) Option {
	return func(m *manager) { m.notifier = n }
}

// WithStrategy sets the endpoint strategy. Nil means no endpoint-specific
// behavior.
func WithStrategy(s Strategy) Option {
	return func(m *manager) { m.strategy = s }
}

// WithMessageCallback registers an initial message callback.
func WithMessageCallback(fn MessageFunc) Option {
	return func(m *manager) { m.msgCallbacks = append(m.msgCallbacks, fn) }
}

// WithReconnectCallback registers an initial reconnect callback.
func WithReconnectCallback(fn ReconnectFunc) Option {
	return func(m *manager) { m.recCallbacks = append(m.recCallbacks, fn) }
}

// New creates a new connection manager.
func New(cfg Config, tr transport.Transport, opts ...Option) Manager {
	cfg.applyDefaults()

	m := &manager{
		cfg:    cfg,
		tr:     tr,
		state:  StateIdle,
		stopCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.notifier == nil {
		m.notifier = slogNotifier{logger: m.logger}
	}

	return m
}

// Start opens the connection and runs the strategy's setup hook.
func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	if m.state != StateIdle {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.state = StateConnecting
	m.mu.Unlock()

	conn, err := m.tr.Open(ctx, m.cfg.URL)
	if err != nil {
		m.mu.Lock()
		if !m.stopped {
			m.state = StateIdle
		}
		m.mu.Unlock()

		m.notifier.Report(slog.LevelError, "connect failed", "url", m.cfg.URL, "error", err)
		return fmt.Errorf("%w: %s: %v", ErrConnect, m.cfg.URL, err)
	}

	if !m.installConn(conn) {
		return ErrStopped
	}

	m.logger.Info("connected", "url", m.cfg.URL)

	m.runStrategyStart(ctx)

	return nil
}

// Run reads inbound frames and dispatches them until Stop. At most one
// Run loop may be active per manager.
func (m *manager) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	conn := m.conn
	state := m.state
	if state != StateConnected || conn == nil {
		m.mu.Unlock()
		return ErrNotConnected
	}
	m.running = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	for {
		select {
		case <-m.stopCh:
			return nil
		default:
		}

		data, err := conn.Receive()
		if err != nil {
			select {
			case <-m.stopCh:
				return nil
			default:
			}

			m.mu.Lock()
			rotating := m.rotating
			m.mu.Unlock()

			if rotating {
				m.logger.Info("session max age reached, reconnecting", "max_age", m.cfg.SessionMaxAge)
			} else {
				m.notifier.Report(slog.LevelWarn, "transport failure", "error", err)
			}

			if err := m.reconnect(ctx); err != nil {
				if err == ErrStopped || ctx.Err() != nil {
					return nil
				}
				return err
			}

			m.mu.Lock()
			conn = m.conn
			m.mu.Unlock()
			continue
		}

		m.dispatch(ctx, data)
	}
}

// Send writes one message through the live connection.
func (m *manager) Send(msg Message) error {
	m.mu.Lock()
	conn := m.conn
	state := m.state
	m.mu.Unlock()

	if state != StateConnected || conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	return conn.Send(data)
}

// Stop terminates the run loop and releases the connection.
func (m *manager) Stop() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	m.state = StateStopped
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	close(m.stopCh)

	if conn != nil {
		conn.Close()
	}

	m.logger.Info("connection manager stopped")
	return nil
}

// OnMessage appends a message callback.
func (m *manager) OnMessage(fn MessageFunc) {
	m.cbMu.Lock()
	m.msgCallbacks = append(m.msgCallbacks, fn)
	m.cbMu.Unlock()
}

// OnReconnect appends a reconnect callback.
func (m *manager) OnReconnect(fn ReconnectFunc) {
	m.cbMu.Lock()
	m.recCallbacks = append(m.recCallbacks, fn)
	m.cbMu.Unlock()
}

// State returns the current connectivity phase.
func (m *manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// installConn adopts a freshly opened session as the live connection.
// Stop may have been requested while the dial was in flight; the session
// must not outlive it, so the stop check and the install are one atomic
// step. Returns false if the handle was refused and closed.
func (m *manager) installConn(conn transport.Conn) bool {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		conn.Close()
		return false
	}
	m.conn = conn
	m.state = StateConnected
	m.rotating = false
	m.mu.Unlock()

	if m.cfg.SessionMaxAge > 0 {
		go m.rotateAfter(conn, m.cfg.SessionMaxAge)
	}
	return true
}

// rotateAfter closes the session once it exceeds its max age, forcing the
// run loop through the reconnect path for a fresh session.
func (m *manager) rotateAfter(conn transport.Conn, age time.Duration) {
	timer := time.NewTimer(age)
	defer timer.Stop()

	select {
	case <-m.stopCh:
		return
	case <-timer.C:
	}

	m.mu.Lock()
	if m.conn != conn || m.state != StateConnected {
		// Session already replaced
		m.mu.Unlock()
		return
	}
	m.rotating = true
	m.mu.Unlock()

	conn.Close()
}

// reconnect reopens the connection with exponential backoff. It returns
// ErrStopped if Stop interrupts the retry loop, and an error only when
// MaxReconnectAttempts is set and exhausted.
func (m *manager) reconnect(ctx context.Context) error {
	m.mu.Lock()
	m.state = StateReconnecting
	old := m.conn
	m.conn = nil
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}

	wait := m.cfg.ReconnectBaseWait
	attempts := 0

	for {
		select {
		case <-m.stopCh:
			return ErrStopped
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		attempts++
		m.logger.Info("attempting reconnection", "url", m.cfg.URL, "attempt", attempts)

		conn, err := m.tr.Open(ctx, m.cfg.URL)
		if err != nil {
			m.notifier.Report(slog.LevelWarn, "reconnection failed",
				"attempt", attempts,
				"error", err,
			)

			if m.cfg.MaxReconnectAttempts > 0 && attempts >= m.cfg.MaxReconnectAttempts {
				m.mu.Lock()
				if !m.stopped {
					m.state = StateIdle
				}
				m.mu.Unlock()
				return fmt.Errorf("reconnect: gave up after %d attempts: %w", attempts, err)
			}

			// Exponential backoff
			wait *= 2
			if wait > m.cfg.ReconnectMaxWait {
				wait = m.cfg.ReconnectMaxWait
			}
			continue
		}

		if !m.installConn(conn) {
			return ErrStopped
		}

		m.logger.Info("reconnected", "url", m.cfg.URL, "attempts", attempts)

		// Per-session setup is gone with the old session, redo it before
		// telling consumers
		m.runStrategyStart(ctx)

		for _, fn := range m.reconnectCallbacks() {
			m.invokeReconnect(fn)
		}

		return nil
	}
}

// dispatch decodes one frame and hands it to the strategy, then to every
// message callback in registration order. Failures are contained here;
// one misbehaving handler must not take down the connection.
func (m *manager) dispatch(ctx context.Context, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		m.notifier.Report(slog.LevelWarn, "malformed payload, skipping", "error", err)
		return
	}

	if m.strategy != nil {
		if err := m.invokeStrategyMessage(ctx, msg); err != nil {
			m.notifier.Report(slog.LevelError, "strategy message hook failed", "error", err)
		}
	}

	for _, fn := range m.messageCallbacks() {
		m.invokeMessage(fn, msg)
	}
}

// runStrategyStart invokes the strategy's setup hook. Failures are
// reported, not propagated; the connection itself is usable.
func (m *manager) runStrategyStart(ctx context.Context) {
	if m.strategy == nil {
		return
	}
	if err := m.invokeStrategyStart(ctx); err != nil {
		m.notifier.Report(slog.LevelError, "strategy start hook failed", "error", err)
	}
}

func (m *manager) invokeStrategyStart(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in strategy start hook: %v", r)
		}
	}()
	return m.strategy.OnStart(ctx, m)
}

func (m *manager) invokeStrategyMessage(ctx context.Context, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in strategy message hook: %v", r)
		}
	}()
	return m.strategy.OnMessage(ctx, m, msg)
}

func (m *manager) invokeMessage(fn MessageFunc, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			m.notifier.Report(slog.LevelError, "message callback panicked", "panic", r)
		}
	}()
	fn(msg)
}

func (m *manager) invokeReconnect(fn ReconnectFunc) {
	defer func() {
		if r := recover(); r != nil {
			m.notifier.Report(slog.LevelError, "reconnect callback panicked", "panic", r)
		}
	}()
	fn()
}

func (m *manager) messageCallbacks() []MessageFunc {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	out := make([]MessageFunc, len(m.msgCallbacks))
	copy(out, m.msgCallbacks)
	return out
}

func (m *manager) reconnectCallbacks() []ReconnectFunc {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	out := make([]ReconnectFunc, len(m.recCallbacks))
	copy(out, m.recCallbacks)
	return out
}
