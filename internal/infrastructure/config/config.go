package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-switchbot/internal/channel"
	"github.com/nerrad567/gray-logic-switchbot/internal/device"
)

// envPrefix is the prefix for every environment override.
const envPrefix = "SWITCHBOT_"

// Config is the root configuration structure for the SwitchBot bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	Cloud     CloudConfig     `yaml:"cloud"`
	Radio     RadioConfig     `yaml:"radio"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Devices   []DeviceConfig  `yaml:"devices"`
}

// BridgeConfig identifies this bridge instance.
type BridgeConfig struct {
	ID             string        `yaml:"id"`
	Name           string        `yaml:"name"`
	Discover       bool          `yaml:"discover"`
	HealthInterval time.Duration `yaml:"health_interval"`
}

// CloudConfig contains SwitchBot OpenAPI settings.
type CloudConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Secret  string        `yaml:"secret"`
	Timeout time.Duration `yaml:"timeout"`
}

// HasCredentials reports whether both token and secret are set.
func (c CloudConfig) HasCredentials() bool {
	return c.Token != "" && c.Secret != ""
}

// RadioConfig contains settings for the MQTT-attached BLE gateway.
type RadioConfig struct {
	Enabled      bool          `yaml:"enabled"`
	TopicPrefix  string        `yaml:"topic_prefix"`
	ScanDuration time.Duration `yaml:"scan_duration"`
}

// ReconcileConfig holds bridge-wide defaults for device state machines.
// Per-device settings override these.
type ReconcileConfig struct {
	RefreshRate  time.Duration `yaml:"refresh_rate"`
	PushRate     time.Duration `yaml:"push_rate"`
	MaxRetry     int           `yaml:"max_retry"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	ScanDuration time.Duration `yaml:"scan_duration"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetention is how long state history rows are kept. Zero keeps
	// them forever.
	HistoryRetention time.Duration `yaml:"history_retention"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
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
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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

// JWTConfig contains JWT token settings. Tokens are issued elsewhere; the
// bridge only verifies them.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// WebhookConfig controls inbound push notifications.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Topic   string `yaml:"topic"`
}

// DeviceConfig is one entry of the devices list.
type DeviceConfig struct {
	ID           string        `yaml:"id"`
	Name         string        `yaml:"name"`
	Type         string        `yaml:"type"`
	Connection   string        `yaml:"connection"`
	Model        string        `yaml:"model"`
	MAC          string        `yaml:"mac"`
	CloudEnabled *bool         `yaml:"enable_cloud_service"`
	Offline      bool          `yaml:"offline"`
	HubID        string        `yaml:"hub_id"`
	RefreshRate  time.Duration `yaml:"refresh_rate"`
	PushRate     time.Duration `yaml:"push_rate"`
	MaxRetry     int           `yaml:"max_retry"`
	ScanDuration time.Duration `yaml:"scan_duration"`
	MinLux       float64       `yaml:"min_lux"`
	MaxLux       float64       `yaml:"max_lux"`
	MinStep      int           `yaml:"min_step"`
	Hide         []string      `yaml:"hide"`

	RemoteType     string `yaml:"remote_type"`
	Customize      bool   `yaml:"customize"`
	CustomOn       string `yaml:"custom_on"`
	CustomOff      string `yaml:"custom_off"`
	DisablePushOn  bool   `yaml:"disable_push_on"`
	DisablePushOff bool   `yaml:"disable_push_off"`

	OpenMode  string `yaml:"set_open_mode"`
	CloseMode string `yaml:"set_close_mode"`
}

// Device converts the entry into a device description. The cloud service
// defaults to enabled and the name to the id when not stated.
func (d DeviceConfig) Device() device.Device {
	cloudEnabled := true
	if d.CloudEnabled != nil {
		cloudEnabled = *d.CloudEnabled
	}
	name := d.Name
	if name == "" {
		name = d.ID
	}
	return device.Device{
		ID:           d.ID,
		Name:         name,
		Type:         device.Type(strings.ToLower(d.Type)),
		Model:        d.Model,
		RemoteType:   d.RemoteType,
		MAC:          strings.ToLower(d.MAC),
		Connection:   d.Connection,
		CloudEnabled: cloudEnabled,
		Offline:      d.Offline,
		HubID:        d.HubID,
		Settings: device.Settings{
			RefreshRate:    d.RefreshRate,
			PushRate:       d.PushRate,
			MaxRetry:       d.MaxRetry,
			ScanDuration:   d.ScanDuration,
			MinLux:         d.MinLux,
			MaxLux:         d.MaxLux,
			MinStep:        d.MinStep,
			Hide:           d.Hide,
			Customize:      d.Customize,
			CustomOn:       d.CustomOn,
			CustomOff:      d.CustomOff,
			DisablePushOn:  d.DisablePushOn,
			DisablePushOff: d.DisablePushOff,
			OpenMode:       d.OpenMode,
			CloseMode:      d.CloseMode,
		},
	}
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SWITCHBOT_SECTION_KEY
// For example: SWITCHBOT_CLOUD_TOKEN, SWITCHBOT_MQTT_HOST
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
		Bridge: BridgeConfig{
			ID:             "switchbot-001",
			Name:           "SwitchBot Bridge",
			Discover:       true,
			HealthInterval: 30 * time.Second,
		},
		Cloud: CloudConfig{
			Enabled: true,
			BaseURL: "https://api.switch-bot.com",
			Timeout: 10 * time.Second,
		},
		Radio: RadioConfig{
			TopicPrefix:  "switchbot/ble",
			ScanDuration: time.Second,
		},
		Reconcile: ReconcileConfig{
			RefreshRate:  30 * time.Second,
			PushRate:     100 * time.Millisecond,
			MaxRetry:     1,
			RetryDelay:   time.Second,
			ScanDuration: time.Second,
		},
		Database: DatabaseConfig{
			Path:             "./data/switchbot.db",
			WALMode:          true,
			BusyTimeout:      5,
			HistoryRetention: 30 * 24 * time.Hour,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "switchbot-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
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
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Webhook: WebhookConfig{
			Enabled: true,
			Path:    "/webhook",
			Topic:   "switchbot/webhook",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SWITCHBOT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	overrides := map[string]*string{
		"DATABASE_PATH":   &cfg.Database.Path,
		"CLOUD_TOKEN":     &cfg.Cloud.Token,
		"CLOUD_SECRET":    &cfg.Cloud.Secret,
		"CLOUD_BASE_URL":  &cfg.Cloud.BaseURL,
		"MQTT_HOST":       &cfg.MQTT.Broker.Host,
		"MQTT_USERNAME":   &cfg.MQTT.Auth.Username,
		"MQTT_PASSWORD":   &cfg.MQTT.Auth.Password,
		"API_HOST":        &cfg.API.Host,
		"INFLUXDB_TOKEN":  &cfg.InfluxDB.Token,
		"LOGGING_LEVEL":   &cfg.Logging.Level,
		"JWT_SECRET":      &cfg.Security.JWT.Secret,
		"RADIO_TOPIC":     &cfg.Radio.TopicPrefix,
		"WEBHOOK_TOPIC":   &cfg.Webhook.Topic,
		"BRIDGE_ID":       &cfg.Bridge.ID,
		"INFLUXDB_BUCKET": &cfg.InfluxDB.Bucket,
	}
	for key, dst := range overrides {
		if v := os.Getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Every validation failure joined together, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.HistoryRetention < 0 {
		errs = append(errs, "database.history_retention must not be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Reconcile.MaxRetry < 0 {
		errs = append(errs, "reconcile.max_retry must not be negative")
	}

	// JWT secret is required: the set-command API actuates locks.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set SWITCHBOT_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		if err := validateDevice(d); err != nil {
			errs = append(errs, fmt.Sprintf("devices[%d]: %v", i, err))
			continue
		}
		if seen[d.ID] {
			errs = append(errs, fmt.Sprintf("devices[%d]: duplicate id %q", i, d.ID))
		}
		seen[d.ID] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func validateDevice(d DeviceConfig) error {
	if _, err := channel.ParseMode(d.Connection); err != nil {
		return err
	}
	dev := d.Device()
	return device.ValidateDevice(&dev)
}

// GetReadTimeout returns the API read timeout as a Duration.
func (a APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(a.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (a APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(a.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (a APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(a.Timeouts.Idle) * time.Second
}
