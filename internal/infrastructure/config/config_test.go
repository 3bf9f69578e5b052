package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes a temporary config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
gateway:
  device_id: "GW-TEST01"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
transport:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
channel:
  host: "example.supabase.co"
  api_key: "anon-key"
cloud:
  host: "example.supabase.co"
  device_key: "device-key"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gateway.DeviceID != "GW-TEST01" {
		t.Errorf("Gateway.DeviceID = %q, want %q", cfg.Gateway.DeviceID, "GW-TEST01")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.Transport.Broker.Host != "localhost" {
		t.Errorf("Transport.Broker.Host = %q, want %q", cfg.Transport.Broker.Host, "localhost")
	}

	if cfg.Channel.Host != "example.supabase.co" {
		t.Errorf("Channel.Host = %q, want %q", cfg.Channel.Host, "example.supabase.co")
	}
}

func TestLoad_Defaults(t *testing.T) {
	// A minimal file must still yield a fully usable configuration.
	cfg, err := Load(writeConfig(t, "database:\n  path: \"/tmp/test.db\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gateway.MaxSensors != 16 {
		t.Errorf("Gateway.MaxSensors = %d, want 16", cfg.Gateway.MaxSensors)
	}
	if cfg.Gateway.QueueSize != 10 {
		t.Errorf("Gateway.QueueSize = %d, want 10", cfg.Gateway.QueueSize)
	}
	if cfg.Channel.HeartbeatInterval != 30 {
		t.Errorf("Channel.HeartbeatInterval = %d, want 30", cfg.Channel.HeartbeatInterval)
	}
	if cfg.Channel.ReconnectDelay != 5 {
		t.Errorf("Channel.ReconnectDelay = %d, want 5", cfg.Channel.ReconnectDelay)
	}
	if cfg.Transport.FrameQueueSize != 10 {
		t.Errorf("Transport.FrameQueueSize = %d, want 10", cfg.Transport.FrameQueueSize)
	}
	if cfg.Cloud.EventPath == "" {
		t.Error("Cloud.EventPath default is empty")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "database: [not: valid\n"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("GHOSTGW_DATABASE_PATH", "/tmp/override.db")
	t.Setenv("GHOSTGW_CHANNEL_API_KEY", "env-key")

	content := `
database:
  path: "/tmp/file.db"
channel:
  host: "example.supabase.co"
  api_key: "file-key"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.Channel.APIKey != "env-key" {
		t.Errorf("Channel.APIKey = %q, want env override", cfg.Channel.APIKey)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "zero max sensors",
			mutate:  func(c *Config) { c.Gateway.MaxSensors = 0 },
			wantErr: "gateway.max_sensors",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.Transport.QoS = 3 },
			wantErr: "transport.qos",
		},
		{
			name:    "channel host without api key",
			mutate:  func(c *Config) { c.Channel.Host = "example.supabase.co" },
			wantErr: "channel.api_key",
		},
		{
			name:    "cloud host without device key",
			mutate:  func(c *Config) { c.Cloud.Host = "example.supabase.co" },
			wantErr: "cloud.device_key",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Errorf("defaultConfig().Validate() error = %v", err)
	}
}
