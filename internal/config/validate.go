package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Endpoint.URL == "" {
		return errors.New("endpoint.url is required")
	}
	u, err := url.Parse(c.Endpoint.URL)
	if err != nil {
		return fmt.Errorf("endpoint.url is not a valid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("endpoint.url scheme must be ws or wss, got %q", u.Scheme)
	}
	if c.Endpoint.HeartbeatInterval < 0 {
		return errors.New("endpoint.heartbeat_interval must be >= 0")
	}

	if c.Connection.ReconnectBaseWait <= 0 {
		return errors.New("connection.reconnect_base_wait must be > 0")
	}
	if c.Connection.ReconnectMaxWait < c.Connection.ReconnectBaseWait {
		return errors.New("connection.reconnect_max_wait must be >= connection.reconnect_base_wait")
	}
	if c.Connection.MaxReconnectAttempts < 0 {
		return errors.New("connection.max_reconnect_attempts must be >= 0")
	}
	if c.Connection.SessionMaxAge < 0 {
		return errors.New("connection.session_max_age must be >= 0")
	}

	if c.Transport.HandshakeTimeout <= 0 {
		return errors.New("transport.handshake_timeout must be > 0")
	}
	if c.Transport.WriteTimeout <= 0 {
		return errors.New("transport.write_timeout must be > 0")
	}
	if c.Transport.PingInterval <= 0 {
		return errors.New("transport.ping_interval must be > 0")
	}
	if c.Transport.PingTimeout <= 0 {
		return errors.New("transport.ping_timeout must be > 0")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}

	return nil
}
