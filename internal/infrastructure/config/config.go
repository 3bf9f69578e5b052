package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Ghost Gateway.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Database  DatabaseConfig  `yaml:"database"`
	Transport TransportConfig `yaml:"transport"`
	Channel   ChannelConfig   `yaml:"channel"`
	Cloud     CloudConfig     `yaml:"cloud"`
	API       APIConfig       `yaml:"api"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GatewayConfig contains identity and policy settings for this gateway.
type GatewayConfig struct {
	// DeviceID is the stable identifier used in cloud events. If empty,
	// one is generated on first boot and persisted.
	DeviceID string `yaml:"device_id"`

	// DeviceType is reported in outbound events. Default: "GATEWAY".
	DeviceType string `yaml:"device_type"`

	// MaxSensors is the fixed capacity of the sensor registry.
	MaxSensors int `yaml:"max_sensors"`

	// QueueSize is the capacity of the controller message queue.
	QueueSize int `yaml:"queue_size"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// TransportConfig contains settings for the wireless link adapter.
// The sensor radio network is bridged onto an MQTT broker; the gateway
// sees it as an opaque frame transport.
type TransportConfig struct {
	Broker    TransportBrokerConfig    `yaml:"broker"`
	Auth      TransportAuthConfig      `yaml:"auth"`
	QoS       int                      `yaml:"qos"`
	Reconnect TransportReconnectConfig `yaml:"reconnect"`

	// FrameQueueSize is the capacity of the raw-frame queue between the
	// receive callback and the decode worker.
	FrameQueueSize int `yaml:"frame_queue_size"`
}

// TransportBrokerConfig contains broker connection details.
type TransportBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// TransportAuthConfig contains broker authentication credentials.
type TransportAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TransportReconnectConfig contains reconnection settings.
type TransportReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// ChannelConfig contains settings for the realtime pub/sub channel client.
type ChannelConfig struct {
	// Host is the realtime endpoint host (no scheme), e.g.
	// "example.supabase.co".
	Host string `yaml:"host"`

	// APIKey is the anonymous JWT presented in the websocket URL.
	APIKey string `yaml:"api_key"`

	// HeartbeatInterval is the heartbeat period in seconds. Default: 30.
	HeartbeatInterval int `yaml:"heartbeat_interval"`

	// ReconnectDelay is the fixed delay between reconnect attempts in
	// seconds. Default: 5.
	ReconnectDelay int `yaml:"reconnect_delay"`
}

// CloudConfig contains settings for the event HTTP client.
type CloudConfig struct {
	// Host is the cloud endpoint host, e.g. "example.supabase.co".
	Host string `yaml:"host"`

	// EventPath is the path events are POSTed to.
	EventPath string `yaml:"event_path"`

	// TokenPath is the path for pairing link-code requests.
	TokenPath string `yaml:"token_path"`

	// DeviceKey authenticates this gateway to the event endpoint.
	DeviceKey string `yaml:"device_key"`

	// ConnectTimeout is the TLS connection-establish timeout in seconds.
	ConnectTimeout int `yaml:"connect_timeout"`

	// DispatchInterval is how often the event dispatcher retries pending
	// events, in seconds.
	DispatchInterval int `yaml:"dispatch_interval"`
}

// APIConfig contains local HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains optional telemetry sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GHOSTGW_SECTION_KEY
// For example: GHOSTGW_DATABASE_PATH, GHOSTGW_CHANNEL_API_KEY
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			DeviceType: "GATEWAY",
			MaxSensors: 16,
			QueueSize:  10,
		},
		Database: DatabaseConfig{
			Path:        "./data/ghostgw.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Transport: TransportConfig{
			Broker: TransportBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ghostgw",
			},
			QoS: 1,
			Reconnect: TransportReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			FrameQueueSize: 10,
		},
		Channel: ChannelConfig{
			HeartbeatInterval: 30,
			ReconnectDelay:    5,
		},
		Cloud: CloudConfig{
			EventPath:        "/functions/v1/ghost-event-public",
			TokenPath:        "/functions/v1/ghost-token-create",
			ConnectTimeout:   10,
			DispatchInterval: 30,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GHOSTGW_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GHOSTGW_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("GHOSTGW_TRANSPORT_HOST"); v != "" {
		cfg.Transport.Broker.Host = v
	}
	if v := os.Getenv("GHOSTGW_TRANSPORT_USERNAME"); v != "" {
		cfg.Transport.Auth.Username = v
	}
	if v := os.Getenv("GHOSTGW_TRANSPORT_PASSWORD"); v != "" {
		cfg.Transport.Auth.Password = v
	}
	if v := os.Getenv("GHOSTGW_CHANNEL_HOST"); v != "" {
		cfg.Channel.Host = v
	}
	if v := os.Getenv("GHOSTGW_CHANNEL_API_KEY"); v != "" {
		cfg.Channel.APIKey = v
	}
	if v := os.Getenv("GHOSTGW_CLOUD_HOST"); v != "" {
		cfg.Cloud.Host = v
	}
	if v := os.Getenv("GHOSTGW_CLOUD_DEVICE_KEY"); v != "" {
		cfg.Cloud.DeviceKey = v
	}
	if v := os.Getenv("GHOSTGW_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.BusyTimeout < 0 {
		errs = append(errs, "database.busy_timeout must not be negative")
	}

	if c.Gateway.MaxSensors <= 0 {
		errs = append(errs, "gateway.max_sensors must be positive")
	}
	if c.Gateway.QueueSize <= 0 {
		errs = append(errs, "gateway.queue_size must be positive")
	}

	if c.Transport.Broker.Host == "" {
		errs = append(errs, "transport.broker.host is required")
	}
	if c.Transport.Broker.Port <= 0 || c.Transport.Broker.Port > 65535 {
		errs = append(errs, "transport.broker.port must be between 1 and 65535")
	}
	if c.Transport.QoS < 0 || c.Transport.QoS > 2 {
		errs = append(errs, "transport.qos must be 0, 1, or 2")
	}
	if c.Transport.FrameQueueSize <= 0 {
		errs = append(errs, "transport.frame_queue_size must be positive")
	}

	if c.Channel.Host != "" && c.Channel.APIKey == "" {
		errs = append(errs, "channel.api_key is required when channel.host is set")
	}
	if c.Channel.HeartbeatInterval <= 0 {
		errs = append(errs, "channel.heartbeat_interval must be positive")
	}
	if c.Channel.ReconnectDelay <= 0 {
		errs = append(errs, "channel.reconnect_delay must be positive")
	}

	if c.Cloud.Host != "" && c.Cloud.DeviceKey == "" {
		errs = append(errs, "cloud.device_key is required when cloud.host is set")
	}
	if c.Cloud.ConnectTimeout <= 0 {
		errs = append(errs, "cloud.connect_timeout must be positive")
	}

	if c.API.Enabled {
		if c.API.Port <= 0 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled")
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
