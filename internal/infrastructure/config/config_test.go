package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
)

const validJWTSecret = "test-secret-key-at-least-32-chars!"

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
bridge:
  id: "test-bridge"
cloud:
  token: "tok"
  secret: "sec"
reconcile:
  refresh_rate: 15s
  push_rate: 250ms
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "localhost"
    port: 1883
  qos: 1
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
devices:
  - id: "C0FFEE123456"
    name: "Desk Lamp"
    type: "bulb"
    connection: "BLE/OpenAPI"
    max_retry: 2
  - id: "01-202101011200-12345678"
    name: "Aircon"
    type: "ir"
    remote_type: "Air Conditioner"
    enable_cloud_service: false
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.ID != "test-bridge" {
		t.Errorf("Bridge.ID = %q, want %q", cfg.Bridge.ID, "test-bridge")
	}
	if !cfg.Cloud.HasCredentials() {
		t.Error("Cloud.HasCredentials() = false, want true")
	}
	if cfg.Reconcile.RefreshRate != 15*time.Second || cfg.Reconcile.PushRate != 250*time.Millisecond {
		t.Errorf("Reconcile = %+v, want 15s refresh and 250ms push", cfg.Reconcile)
	}
	if cfg.Reconcile.RetryDelay != time.Second {
		t.Errorf("Reconcile.RetryDelay = %v, want default 1s", cfg.Reconcile.RetryDelay)
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("len(Devices) = %d, want 2", len(cfg.Devices))
	}

	lamp := cfg.Devices[0].Device()
	if lamp.Type != device.TypeBulb || !lamp.CloudEnabled || lamp.Settings.MaxRetry != 2 {
		t.Errorf("lamp = %+v", lamp)
	}
	ac := cfg.Devices[1].Device()
	if ac.CloudEnabled {
		t.Error("aircon CloudEnabled = true, want false")
	}
	if ac.RemoteType != "Air Conditioner" {
		t.Errorf("aircon RemoteType = %q", ac.RemoteType)
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
bridge:
  id: ""
database:
  path: "/tmp/test.db"
api:
  port: 8080
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected validation error for empty bridge.id, got nil")
	}
}

func validConfig() *Config {
	return &Config{
		Bridge:   BridgeConfig{ID: "switchbot-001"},
		Database: DatabaseConfig{Path: "/data/switchbot.db"},
		MQTT:     MQTTConfig{QoS: 1},
		API:      APIConfig{Port: 8080},
		Security: SecurityConfig{JWT: JWTConfig{Secret: validJWTSecret}},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing bridge ID", mutate: func(c *Config) { c.Bridge.ID = "" }, wantErr: "bridge.id"},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: "database.path"},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: "mqtt.qos"},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: "api.port"},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: "api.port"},
		{name: "negative retries", mutate: func(c *Config) { c.Reconcile.MaxRetry = -1 }, wantErr: "max_retry"},
		{name: "missing JWT secret", mutate: func(c *Config) { c.Security.JWT.Secret = "" }, wantErr: "SWITCHBOT_JWT_SECRET"},
		{name: "JWT secret too short", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: "32 characters"},
		{
			name: "valid device",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{ID: "C0FFEE123456", Type: "lock", Connection: "cloud"}}
			},
		},
		{
			name: "unknown connection",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{ID: "C0FFEE123456", Type: "lock", Connection: "zigbee"}}
			},
			wantErr: "devices[0]",
		},
		{
			name: "unknown type",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{ID: "C0FFEE123456", Type: "toaster"}}
			},
			wantErr: "invalid type",
		},
		{
			name: "duplicate id",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{
					{ID: "C0FFEE123456", Type: "lock"},
					{ID: "C0FFEE123456", Type: "bulb"},
				}
			},
			wantErr: "duplicate id",
		},
		{
			name: "bad curtain mode",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{ID: "C0FFEE123456", Type: "curtain", OpenMode: "fast"}}
			},
			wantErr: "set_open_mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestDeviceConfig_Device(t *testing.T) {
	d := DeviceConfig{ID: "C0FFEE123456", Type: "Curtain", MAC: "C0:FF:EE:12:34:56", MinStep: 5, Hide: []string{"BatteryLevel"}}
	dev := d.Device()

	if dev.Name != "C0FFEE123456" {
		t.Errorf("Name = %q, want the id", dev.Name)
	}
	if dev.Type != device.TypeCurtain {
		t.Errorf("Type = %q, want curtain", dev.Type)
	}
	if dev.MAC != "c0:ff:ee:12:34:56" {
		t.Errorf("MAC = %q, want lower-cased", dev.MAC)
	}
	if !dev.CloudEnabled {
		t.Error("CloudEnabled should default to true")
	}
	if dev.Settings.MinStep != 5 || len(dev.Settings.Hide) != 1 {
		t.Errorf("Settings = %+v", dev.Settings)
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := APIConfig{
		Timeouts: APITimeoutConfig{
			Read:  30,
			Write: 45,
			Idle:  60,
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

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("SWITCHBOT_DATABASE_PATH", "/custom/path.db")
	t.Setenv("SWITCHBOT_CLOUD_TOKEN", "cloud-token")
	t.Setenv("SWITCHBOT_CLOUD_SECRET", "cloud-secret")
	t.Setenv("SWITCHBOT_MQTT_HOST", "mqtt.example.com")
	t.Setenv("SWITCHBOT_MQTT_USERNAME", "testuser")
	t.Setenv("SWITCHBOT_MQTT_PASSWORD", "testpass")
	t.Setenv("SWITCHBOT_API_HOST", "192.168.1.1")
	t.Setenv("SWITCHBOT_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("SWITCHBOT_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"Cloud.Token", cfg.Cloud.Token, "cloud-token"},
		{"Cloud.Secret", cfg.Cloud.Secret, "cloud-secret"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, unset variables must not override", cfg.Logging.Level)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Bridge.ID == "" {
		t.Error("defaultConfig should have non-empty Bridge.ID")
	}
	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.Reconcile.PushRate != 100*time.Millisecond || cfg.Reconcile.MaxRetry != 1 {
		t.Errorf("defaultConfig Reconcile = %+v", cfg.Reconcile)
	}
	if cfg.Cloud.HasCredentials() {
		t.Error("defaultConfig must not carry cloud credentials")
	}
}
