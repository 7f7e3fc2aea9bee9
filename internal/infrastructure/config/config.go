package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the RCP engine.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Protocol  ProtocolConfig  `yaml:"protocol"`
	Devices   []DeviceConfig  `yaml:"devices"`
	Device    DeviceDefaults  `yaml:"device"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ProtocolConfig contains the topic namespace used on the broker.
type ProtocolConfig struct {
	Prefix  string `yaml:"prefix"`
	ID      string `yaml:"id"`
	Version string `yaml:"version"`

	// EnumStyle is how status messages write mode and working state:
	// "letter" (A, R, ...) or "name" (Auto, Running, ...).
	EnumStyle string `yaml:"enum_style"`
}

// DeviceConfig declares one emulated device.
type DeviceConfig struct {
	ID    string   `yaml:"id"`
	Class string   `yaml:"class"` // "processor" or "transfer"
	Slots []string `yaml:"slots"` // transfer ports, ignored for processors
}

// DeviceDefaults contains the timing and policy shared by all devices.
// Durations are in milliseconds.
type DeviceDefaults struct {
	PauseDelay        int    `yaml:"pause_delay"`
	ResumeDelay       int    `yaml:"resume_delay"`
	AbortDelay        int    `yaml:"abort_delay"`
	StopDelay         int    `yaml:"stop_delay"`
	MoveDelay         int    `yaml:"move_delay"`
	PickDelay         int    `yaml:"pick_delay"`
	PlaceDelay        int    `yaml:"place_delay"`
	InitDelay         int    `yaml:"init_delay"`
	JobDuration       int    `yaml:"job_duration"`
	SettleOnCancel    string `yaml:"settle_on_cancel"` // "drop" or "emit"
	HeartbeatInterval int    `yaml:"heartbeat_interval"`
	HeartbeatDebounce int    `yaml:"heartbeat_debounce"`
	PublishRetries    int    `yaml:"publish_retries"`
	RetryBackoff      int    `yaml:"retry_backoff"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Path             string `yaml:"path"`
	WALMode          bool   `yaml:"wal_mode"`
	BusyTimeout      int    `yaml:"busy_timeout"`
	HistoryRetention int    `yaml:"history_retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Retain    bool                `yaml:"retain"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
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

// WebSocketConfig contains WebSocket status stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
	SendBuffer     int    `yaml:"send_buffer"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// RedisConfig contains the last-status cache settings.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
	TTL      int    `yaml:"ttl"` // seconds, 0 keeps entries forever
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains operator token settings.
// An empty secret leaves the operator endpoints open.
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	TokenTTL int    `yaml:"token_ttl"` // minutes
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: RCP_SECTION_KEY
// For example: RCP_MQTT_HOST, RCP_API_PORT
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
		Site: SiteConfig{
			ID:   "site-001",
			Name: "RCP Cell",
		},
		Protocol: ProtocolConfig{
			Prefix:    "xflow",
			ID:        "rcp",
			Version:   "v1",
			EnumStyle: "letter",
		},
		Device: DeviceDefaults{
			PauseDelay:        1000,
			ResumeDelay:       1000,
			AbortDelay:        1000,
			StopDelay:         1000,
			MoveDelay:         1500,
			PickDelay:         1000,
			PlaceDelay:        1000,
			InitDelay:         1000,
			SettleOnCancel:    "drop",
			HeartbeatInterval: 1000,
			HeartbeatDebounce: 2000,
			RetryBackoff:      200,
		},
		Database: DatabaseConfig{
			Enabled:          true,
			Path:             "./data/rcp.db",
			WALMode:          true,
			BusyTimeout:      5,
			HistoryRetention: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "rcp-engine",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
			SendBuffer:     64,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
			Prefix:  "rcp:status:",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				TokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: RCP_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Protocol
	if v := os.Getenv("RCP_PROTOCOL_PREFIX"); v != "" {
		cfg.Protocol.Prefix = v
	}
	if v := os.Getenv("RCP_PROTOCOL_ENUM_STYLE"); v != "" {
		cfg.Protocol.EnumStyle = v
	}

	// Database
	if v := os.Getenv("RCP_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("RCP_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("RCP_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("RCP_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RCP_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("RCP_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("RCP_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("RCP_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Redis
	if v := os.Getenv("RCP_REDIS_ADDRESS"); v != "" {
		cfg.Redis.Address = v
	}
	if v := os.Getenv("RCP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	// Security
	if v := os.Getenv("RCP_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Protocol.Prefix == "" || c.Protocol.ID == "" || c.Protocol.Version == "" {
		errs = append(errs, "protocol.prefix, protocol.id and protocol.version are required")
	}
	for _, part := range []string{c.Protocol.Prefix, c.Protocol.ID, c.Protocol.Version} {
		if strings.ContainsAny(part, "+#") {
			errs = append(errs, fmt.Sprintf("protocol segment %q must not contain MQTT wildcards", part))
		}
	}
	switch c.Protocol.EnumStyle {
	case "", "letter", "name":
	default:
		errs = append(errs, fmt.Sprintf("protocol.enum_style %q must be letter or name", c.Protocol.EnumStyle))
	}

	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		switch {
		case d.ID == "":
			errs = append(errs, fmt.Sprintf("devices[%d].id is required", i))
		case d.ID == "*" || strings.ContainsAny(d.ID, "/+#"):
			errs = append(errs, fmt.Sprintf("devices[%d].id %q is not a valid topic segment", i, d.ID))
		case seen[d.ID]:
			errs = append(errs, fmt.Sprintf("devices[%d].id %q is duplicated", i, d.ID))
		}
		seen[d.ID] = true

		switch d.Class {
		case "processor":
		case "transfer":
			if len(d.Slots) == 0 {
				errs = append(errs, fmt.Sprintf("devices[%d].slots is required for transfer devices", i))
			}
		default:
			errs = append(errs, fmt.Sprintf("devices[%d].class must be processor or transfer", i))
		}
	}

	if c.Device.SettleOnCancel != "drop" && c.Device.SettleOnCancel != "emit" {
		errs = append(errs, "device.settle_on_cancel must be drop or emit")
	}
	if c.Device.PublishRetries < 0 {
		errs = append(errs, "device.publish_retries must not be negative")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Redis.Enabled && c.Redis.Address == "" {
		errs = append(errs, "redis.address is required when redis is enabled")
	}

	const minJWTSecretLength = 32
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Millis converts a millisecond setting to a Duration.
func Millis(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
