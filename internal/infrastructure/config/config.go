package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for stalink.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Station   StationConfig   `yaml:"station"`
	Radio     RadioConfig     `yaml:"radio"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Journal   JournalConfig   `yaml:"journal"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig identifies this device on the network and in telemetry.
type DeviceConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Hostname string `yaml:"hostname"`
}

// StationConfig contains connectivity state machine settings.
type StationConfig struct {
	// ProvisioningTimeout is the provisioning deadline in seconds.
	// Each channel lock re-arms the full window. Default: 60
	ProvisioningTimeout int `yaml:"provisioning_timeout"`

	// RescanInterval is the period of the network account's rescan timer
	// in seconds. Default: 30
	RescanInterval int `yaml:"rescan_interval"`
}

// RadioConfig selects and configures the radio driver.
type RadioConfig struct {
	// Driver is the radio driver name. Only "sim" is built in.
	Driver string `yaml:"driver"`

	// MAC is the initial hardware address of the simulated interface.
	MAC string `yaml:"mac"`

	// AccessPoints are the networks the simulated radio can see.
	AccessPoints []AccessPointConfig `yaml:"access_points"`

	// Provisioning holds the credentials a simulated provisioning peer
	// delivers once the listener has locked a channel.
	Provisioning ProvisioningPeerConfig `yaml:"provisioning"`

	// EventDelay is the simulated latency of driver events in milliseconds.
	EventDelay int `yaml:"event_delay"`
}

// AccessPointConfig describes one simulated access point.
type AccessPointConfig struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
	RSSI     int    `yaml:"rssi"`
	IP       string `yaml:"ip"`
	Gateway  string `yaml:"gateway"`
	Netmask  string `yaml:"netmask"`
}

// ProvisioningPeerConfig contains credentials sent by a simulated provisioning peer.
type ProvisioningPeerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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

// APIConfig contains the status HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
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

	// SampleInterval is how often the metrics account samples link state, in seconds.
	SampleInterval int `yaml:"sample_interval"`
}

// DiscoveryConfig contains mDNS presence settings.
type DiscoveryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceType string `yaml:"service_type"`
	Domain      string `yaml:"domain"`
	Port        int    `yaml:"port"`
	TTL         int    `yaml:"ttl"`
}

// JournalConfig contains link event journal settings.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: STALINK_SECTION_KEY
// For example: STALINK_DATABASE_PATH, STALINK_MQTT_HOST
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

// Default returns the built-in configuration with environment overrides applied.
// It is used when no configuration file exists.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:       "stalink-001",
			Name:     "stalink",
			Hostname: "stalink.local.",
		},
		Station: StationConfig{
			ProvisioningTimeout: 60,
			RescanInterval:      30,
		},
		Radio: RadioConfig{
			Driver:     "sim",
			MAC:        "02:00:00:00:00:01",
			EventDelay: 50,
		},
		Database: DatabaseConfig{
			Path:        "./data/stalink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "stalink",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "127.0.0.1",
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
		InfluxDB: InfluxDBConfig{
			BatchSize:      100,
			FlushInterval:  10,
			SampleInterval: 60,
		},
		Discovery: DiscoveryConfig{
			ServiceType: "_stalink._tcp",
			Domain:      "local.",
			Port:        8080,
			TTL:         120,
		},
		Journal: JournalConfig{
			Path: "./data/link.journal",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/stalink.log",
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: STALINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STALINK_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv("STALINK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("STALINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("STALINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("STALINK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("STALINK_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("STALINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("STALINK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}

	if c.Station.ProvisioningTimeout < 1 {
		errs = append(errs, "station.provisioning_timeout must be at least 1 second")
	}
	if c.Station.RescanInterval < 1 {
		errs = append(errs, "station.rescan_interval must be at least 1 second")
	}

	// Radio validation
	if c.Radio.Driver != "sim" {
		errs = append(errs, fmt.Sprintf("radio.driver %q is not supported", c.Radio.Driver))
	}
	if c.Radio.MAC != "" {
		if _, err := net.ParseMAC(c.Radio.MAC); err != nil {
			errs = append(errs, "radio.mac is not a valid hardware address")
		}
	}
	for i, ap := range c.Radio.AccessPoints {
		if ap.SSID == "" || len(ap.SSID) > 32 {
			errs = append(errs, fmt.Sprintf("radio.access_points[%d].ssid must be 1-32 bytes", i))
		}
		if len(ap.Password) > 64 {
			errs = append(errs, fmt.Sprintf("radio.access_points[%d].password exceeds 64 bytes", i))
		}
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.SampleInterval < 1 {
		errs = append(errs, "influxdb.sample_interval must be at least 1 second")
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when the journal is enabled")
	}

	switch c.Logging.Output {
	case "stdout", "stderr":
	case "file":
		if c.Logging.File.Path == "" {
			errs = append(errs, "logging.file.path is required for file output")
		}
	default:
		errs = append(errs, "logging.output must be stdout, stderr or file")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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

// ProvisioningTimeout returns the provisioning deadline as a Duration.
func (c *Config) ProvisioningTimeout() time.Duration {
	return time.Duration(c.Station.ProvisioningTimeout) * time.Second
}

// RescanInterval returns the network account's rescan period as a Duration.
func (c *Config) RescanInterval() time.Duration {
	return time.Duration(c.Station.RescanInterval) * time.Second
}

// SampleInterval returns the metrics account's sample period as a Duration.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.InfluxDB.SampleInterval) * time.Second
}
