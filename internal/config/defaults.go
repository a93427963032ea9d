package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultReconnectBaseWait = 1 * time.Second
	DefaultReconnectMaxWait  = 60 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultPingInterval      = 15 * time.Second
	DefaultPingTimeout       = 60 * time.Second
	DefaultLogLevel          = "info"
)

func (c *Config) applyDefaults() {
	if c.Connection.ReconnectBaseWait == 0 {
		c.Connection.ReconnectBaseWait = DefaultReconnectBaseWait
	}
	if c.Connection.ReconnectMaxWait == 0 {
		c.Connection.ReconnectMaxWait = DefaultReconnectMaxWait
	}

	if c.Transport.HandshakeTimeout == 0 {
		c.Transport.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = DefaultWriteTimeout
	}
	if c.Transport.PingInterval == 0 {
		c.Transport.PingInterval = DefaultPingInterval
	}
	if c.Transport.PingTimeout == 0 {
		c.Transport.PingTimeout = DefaultPingTimeout
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}
