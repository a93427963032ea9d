package config

import "time"

// Config is the root configuration for a stream client instance.
type Config struct {
	Endpoint   EndpointConfig   `yaml:"endpoint"`
	Connection ConnectionConfig `yaml:"connection"`
	Transport  TransportConfig  `yaml:"transport"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// EndpointConfig identifies the remote message server.
type EndpointConfig struct {
	URL               string `yaml:"url"`                // WebSocket URL (e.g., wss://www.deribit.com/ws/api/v2)
	HeartbeatInterval int    `yaml:"heartbeat_interval"` // Seconds; 0 disables heartbeat negotiation
}

// ConnectionConfig holds connection manager settings.
type ConnectionConfig struct {
	ReconnectBaseWait    time.Duration `yaml:"reconnect_base_wait"`
	ReconnectMaxWait     time.Duration `yaml:"reconnect_max_wait"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"` // 0 = retry until stopped
	SessionMaxAge        time.Duration `yaml:"session_max_age"`        // 0 = no forced rotation
}

// TransportConfig holds WebSocket transport settings.
type TransportConfig struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
