// Package strategy provides endpoint-specific connection strategies.
//
// Exchanges mostly differ in how heartbeats keep a long-standing
// connection alive, so each endpoint gets its own Strategy implementation
// and the connection manager stays endpoint-agnostic.
package strategy

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lmartz/streamsock/internal/connection"
)

// DefaultHeartbeatInterval is the interval requested from the server, in
// seconds. Deribit rejects anything below 10.
const DefaultHeartbeatInterval = 30

// Heartbeat negotiates Deribit-style heartbeats: it registers a heartbeat
// interval on every connect and answers each test_request the server
// sends. Without the answer the server drops the session.
type Heartbeat struct {
	interval int
	logger   *slog.Logger
}

// NewHeartbeat creates a heartbeat strategy. interval is in seconds;
// values < 1 fall back to DefaultHeartbeatInterval.
func NewHeartbeat(interval int, logger *slog.Logger) *Heartbeat {
	if interval < 1 {
		interval = DefaultHeartbeatInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Heartbeat{
		interval: interval,
		logger:   logger,
	}
}

// OnStart registers the heartbeat with the server. Runs on every connect,
// including reconnects, because the registration dies with the session.
func (s *Heartbeat) OnStart(ctx context.Context, m connection.Manager) error {
	s.logger.Debug("registering heartbeat", "interval", s.interval)

	return m.Send(connection.Message{
		"jsonrpc": "2.0",
		"id":      uuid.NewString(),
		"method":  "public/set_heartbeat",
		"params": map[string]any{
			"interval": s.interval,
		},
	})
}

// OnMessage answers the server's test requests and ignores everything else.
func (s *Heartbeat) OnMessage(ctx context.Context, m connection.Manager, msg connection.Message) error {
	if method, _ := msg["method"].(string); method != "heartbeat" {
		return nil
	}

	params, _ := msg["params"].(map[string]any)
	if typ, _ := params["type"].(string); typ != "test_request" {
		// Plain heartbeat notification, nothing to answer
		return nil
	}

	s.logger.Debug("answering heartbeat test request")

	return m.Send(connection.Message{
		"jsonrpc": "2.0",
		"id":      uuid.NewString(),
		"method":  "public/test",
		"params":  map[string]any{},
	})
}
