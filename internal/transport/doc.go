// Package transport provides the streaming transport consumed by the
// connection manager.
//
// The transport:
//   - Opens a single bidirectional WebSocket session per call
//   - Serializes concurrent writes with per-write deadlines
//   - Answers server pings and sends keepalive pings of its own
//   - Closes stale sessions so the owner can reconnect
package transport
