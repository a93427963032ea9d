// Package connection implements the connection manager.
//
// The connection manager:
//   - Owns exactly one live transport session at a time
//   - Drives the connect/run/reconnect/stop state machine
//   - Reconnects with exponential backoff on transport failure
//   - Dispatches inbound messages to an endpoint strategy, then to
//     registered callbacks, in arrival order
package connection
