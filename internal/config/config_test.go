package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
endpoint:
  url: wss://www.deribit.com/ws/api/v2
  heartbeat_interval: 30
connection:
  reconnect_base_wait: 2s
  reconnect_max_wait: 30s
  session_max_age: 24h
transport:
  write_timeout: 3s
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Endpoint.URL != "wss://www.deribit.com/ws/api/v2" {
		t.Errorf("URL = %q", cfg.Endpoint.URL)
	}
	if cfg.Endpoint.HeartbeatInterval != 30 {
		t.Errorf("HeartbeatInterval = %d, want 30", cfg.Endpoint.HeartbeatInterval)
	}
	if cfg.Connection.ReconnectBaseWait != 2*time.Second {
		t.Errorf("ReconnectBaseWait = %v, want 2s", cfg.Connection.ReconnectBaseWait)
	}
	if cfg.Connection.SessionMaxAge != 24*time.Hour {
		t.Errorf("SessionMaxAge = %v, want 24h", cfg.Connection.SessionMaxAge)
	}
	if cfg.Transport.WriteTimeout != 3*time.Second {
		t.Errorf("WriteTimeout = %v, want 3s", cfg.Transport.WriteTimeout)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("STREAM_URL", "wss://test.example.com/ws")

	path := writeConfig(t, `
endpoint:
  url: ${STREAM_URL}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Endpoint.URL != "wss://test.example.com/ws" {
		t.Errorf("URL = %q, want expanded env value", cfg.Endpoint.URL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeConfig(t, "endpoint: [not: valid")
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeConfig(t, `
endpoint:
  url: wss://test.example.com/ws
`)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Connection.ReconnectBaseWait != DefaultReconnectBaseWait {
		t.Errorf("ReconnectBaseWait = %v, want default %v", cfg.Connection.ReconnectBaseWait, DefaultReconnectBaseWait)
	}
	if cfg.Connection.ReconnectMaxWait != DefaultReconnectMaxWait {
		t.Errorf("ReconnectMaxWait = %v, want default %v", cfg.Connection.ReconnectMaxWait, DefaultReconnectMaxWait)
	}
	if cfg.Transport.PingInterval != DefaultPingInterval {
		t.Errorf("PingInterval = %v, want default %v", cfg.Transport.PingInterval, DefaultPingInterval)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Errorf("Level = %q, want default %q", cfg.Logging.Level, DefaultLogLevel)
	}

	// Defaults leave the optional knobs off
	if cfg.Connection.MaxReconnectAttempts != 0 {
		t.Errorf("MaxReconnectAttempts = %d, want 0", cfg.Connection.MaxReconnectAttempts)
	}
	if cfg.Connection.SessionMaxAge != 0 {
		t.Errorf("SessionMaxAge = %v, want 0", cfg.Connection.SessionMaxAge)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `
endpoint:
  url: wss://test.example.com/ws
`)

	if _, err := LoadAndValidate(path); err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Endpoint.URL = "wss://test.example.com/ws"
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing url",
			mutate:  func(c *Config) { c.Endpoint.URL = "" },
			wantErr: "endpoint.url is required",
		},
		{
			name:    "http scheme",
			mutate:  func(c *Config) { c.Endpoint.URL = "https://test.example.com" },
			wantErr: "scheme must be ws or wss",
		},
		{
			name:    "negative heartbeat",
			mutate:  func(c *Config) { c.Endpoint.HeartbeatInterval = -1 },
			wantErr: "heartbeat_interval",
		},
		{
			name:    "max wait below base wait",
			mutate:  func(c *Config) { c.Connection.ReconnectMaxWait = 1 * time.Millisecond },
			wantErr: "reconnect_max_wait",
		},
		{
			name:    "negative attempts",
			mutate:  func(c *Config) { c.Connection.MaxReconnectAttempts = -1 },
			wantErr: "max_reconnect_attempts",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := &Config{}
	cfg.Endpoint.URL = "ws://localhost:8080/stream"
	cfg.Endpoint.HeartbeatInterval = 30
	cfg.Connection.MaxReconnectAttempts = 5
	cfg.Connection.SessionMaxAge = 24 * time.Hour
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}
