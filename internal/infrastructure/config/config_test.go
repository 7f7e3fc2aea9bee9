package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "cell-7"
protocol:
  prefix: "plant"
devices:
  - id: "robot-2"
    class: "processor"
  - id: "robot-1"
    class: "transfer"
    slots: ["s5_0", "s5_1", "s3", "s4"]
device:
  pause_delay: 250
  settle_on_cancel: "emit"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "cell-7" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "cell-7")
	}
	if cfg.Protocol.Prefix != "plant" {
		t.Errorf("Protocol.Prefix = %q, want %q", cfg.Protocol.Prefix, "plant")
	}
	if cfg.Protocol.ID != "rcp" {
		t.Errorf("Protocol.ID = %q, want default %q", cfg.Protocol.ID, "rcp")
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("len(Devices) = %d, want 2", len(cfg.Devices))
	}
	if got := len(cfg.Devices[1].Slots); got != 4 {
		t.Errorf("len(Devices[1].Slots) = %d, want 4", got)
	}
	if cfg.Device.PauseDelay != 250 {
		t.Errorf("Device.PauseDelay = %d, want 250", cfg.Device.PauseDelay)
	}
	if cfg.Device.ResumeDelay != 1000 {
		t.Errorf("Device.ResumeDelay = %d, want default 1000", cfg.Device.ResumeDelay)
	}
	if cfg.Device.SettleOnCancel != "emit" {
		t.Errorf("Device.SettleOnCancel = %q, want %q", cfg.Device.SettleOnCancel, "emit")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
site:
  id: ""
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(_ *Config) {},
			wantErr: false,
		},
		{
			name:    "missing site ID",
			mutate:  func(c *Config) { c.Site.ID = "" },
			wantErr: true,
		},
		{
			name:    "wildcard in prefix",
			mutate:  func(c *Config) { c.Protocol.Prefix = "plant/+" },
			wantErr: true,
		},
		{
			name:    "name enum style",
			mutate:  func(c *Config) { c.Protocol.EnumStyle = "name" },
			wantErr: false,
		},
		{
			name:    "unknown enum style",
			mutate:  func(c *Config) { c.Protocol.EnumStyle = "short" },
			wantErr: true,
		},
		{
			name: "duplicate device id",
			mutate: func(c *Config) {
				c.Devices = append(c.Devices, DeviceConfig{ID: "robot-2", Class: "processor"})
			},
			wantErr: true,
		},
		{
			name: "broadcast id as device id",
			mutate: func(c *Config) {
				c.Devices = append(c.Devices, DeviceConfig{ID: "*", Class: "processor"})
			},
			wantErr: true,
		},
		{
			name: "unknown class",
			mutate: func(c *Config) {
				c.Devices = append(c.Devices, DeviceConfig{ID: "r9", Class: "welder"})
			},
			wantErr: true,
		},
		{
			name: "transfer without slots",
			mutate: func(c *Config) {
				c.Devices = append(c.Devices, DeviceConfig{ID: "r9", Class: "transfer"})
			},
			wantErr: true,
		},
		{
			name:    "invalid settle policy",
			mutate:  func(c *Config) { c.Device.SettleOnCancel = "retry" },
			wantErr: true,
		},
		{
			name:    "negative publish retries",
			mutate:  func(c *Config) { c.Device.PublishRetries = -1 },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name: "disabled database without path",
			mutate: func(c *Config) {
				c.Database.Enabled = false
				c.Database.Path = ""
			},
			wantErr: false,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
		{
			name: "redis enabled without address",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Address = ""
			},
			wantErr: true,
		},
		{
			name:    "JWT secret too short",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: true,
		},
		{
			name:    "JWT secret long enough",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "test-secret-key-at-least-32-chars!" },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Devices = []DeviceConfig{
				{ID: "robot-2", Class: "processor"},
				{ID: "robot-1", Class: "transfer", Slots: []string{"s3", "s4"}},
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestMillis(t *testing.T) {
	if got := Millis(1500); got != 1500*time.Millisecond {
		t.Errorf("Millis(1500) = %v, want 1.5s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("RCP_PROTOCOL_PREFIX", "fab")
	t.Setenv("RCP_DATABASE_PATH", "/custom/path.db")
	t.Setenv("RCP_MQTT_HOST", "mqtt.example.com")
	t.Setenv("RCP_MQTT_PORT", "8883")
	t.Setenv("RCP_MQTT_USERNAME", "testuser")
	t.Setenv("RCP_MQTT_PASSWORD", "testpass")
	t.Setenv("RCP_API_PORT", "9090")
	t.Setenv("RCP_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("RCP_REDIS_ADDRESS", "cache:6379")
	t.Setenv("RCP_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	if cfg.Protocol.Prefix != "fab" {
		t.Errorf("Protocol.Prefix = %q, want %q", cfg.Protocol.Prefix, "fab")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Redis.Address != "cache:6379" {
		t.Errorf("Redis.Address = %q, want %q", cfg.Redis.Address, "cache:6379")
	}
	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "jwt-secret")
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("RCP_MQTT_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig().Validate() error = %v", err)
	}
	if cfg.Protocol.Prefix != "xflow" {
		t.Errorf("defaultConfig Protocol.Prefix = %q, want %q", cfg.Protocol.Prefix, "xflow")
	}
	if cfg.Protocol.EnumStyle != "letter" {
		t.Errorf("defaultConfig Protocol.EnumStyle = %q, want %q", cfg.Protocol.EnumStyle, "letter")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Device.HeartbeatDebounce <= cfg.Device.HeartbeatInterval {
		t.Errorf("defaultConfig heartbeat debounce %d should exceed interval %d",
			cfg.Device.HeartbeatDebounce, cfg.Device.HeartbeatInterval)
	}
}
