package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Stream Deck API server.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	API         APIConfig         `yaml:"api"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	Application ApplicationConfig `yaml:"application"`
	Buttons     ButtonsConfig     `yaml:"buttons"`
	Devices     DevicesConfig     `yaml:"devices"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
// There is no write timeout: it would cut long-lived WebSocket sessions.
type APITimeoutConfig struct {
	Read int `yaml:"read"`
	Idle int `yaml:"idle"`
}

// ReadHeaderTimeout returns the request header read timeout as a Duration.
func (t APITimeoutConfig) ReadHeaderTimeout() time.Duration {
	return time.Duration(t.Read) * time.Second
}

// IdleTimeout returns the keep-alive idle timeout as a Duration.
func (t APITimeoutConfig) IdleTimeout() time.Duration {
	return time.Duration(t.Idle) * time.Second
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains event stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
	SendBuffer     int `yaml:"send_buffer"`
}

// ApplicationConfig describes the application block reported by /sd/info.
// Platform is always taken from the running OS.
type ApplicationConfig struct {
	Font            string `yaml:"font"`
	Language        string `yaml:"language"`
	PlatformVersion string `yaml:"platform_version"`
}

// ButtonsConfig contains press classification settings.
type ButtonsConfig struct {
	// LongPressMS is the hold time in milliseconds that separates a
	// single tap from a long press.
	LongPressMS int `yaml:"long_press_ms"`
}

// DevicesConfig contains device enumeration settings.
type DevicesConfig struct {
	// Driver selects the device driver. Only "virtual" ships with the core;
	// hardware drivers are provided by the embedding binary.
	Driver string `yaml:"driver"`

	// PollInterval is how often (seconds) devices are re-enumerated so that
	// unplugged or failed decks come back online.
	PollInterval int `yaml:"poll_interval"`

	// Virtual lists decks created by the virtual driver.
	Virtual []VirtualDeckConfig `yaml:"virtual"`
}

// VirtualDeckConfig describes one in-process virtual deck.
type VirtualDeckConfig struct {
	Serial  string `yaml:"serial"`
	Type    string `yaml:"type"`
	Columns int    `yaml:"columns"`
	Rows    int    `yaml:"rows"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Announce    bool                `yaml:"announce"`
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: STREAMDECKAPI_SECTION_KEY
// For example: STREAMDECKAPI_DATABASE_PATH, STREAMDECKAPI_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config with sensible defaults.
// A single 5x3 virtual deck is configured so the server is usable out of the box.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/streamdeckapi.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 6153,
			Timeouts: APITimeoutConfig{
				Read: 30,
				Idle: 60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
			SendBuffer:     256,
		},
		Application: ApplicationConfig{
			Font:     "Segoe UI",
			Language: "en",
		},
		Buttons: ButtonsConfig{
			LongPressMS: 2000,
		},
		Devices: DevicesConfig{
			Driver:       "virtual",
			PollInterval: 10,
			Virtual: []VirtualDeckConfig{
				{Serial: "VIRTUAL0001", Type: "Stream Deck MK.2", Columns: 5, Rows: 3},
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "streamdeckapi",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "streamdeck",
			Announce:    true,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: STREAMDECKAPI_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("STREAMDECKAPI_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("STREAMDECKAPI_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("STREAMDECKAPI_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("STREAMDECKAPI_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("STREAMDECKAPI_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("STREAMDECKAPI_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("STREAMDECKAPI_INFLUXDB_TOKEN"); v != "" {
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

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.WebSocket.SendBuffer < 1 {
		errs = append(errs, "websocket.send_buffer must be positive")
	}

	if c.Buttons.LongPressMS <= 0 {
		errs = append(errs, "buttons.long_press_ms must be positive")
	}

	if c.Devices.PollInterval <= 0 {
		errs = append(errs, "devices.poll_interval must be positive")
	}

	switch c.Devices.Driver {
	case "virtual":
		for i, d := range c.Devices.Virtual {
			if d.Serial == "" {
				errs = append(errs, fmt.Sprintf("devices.virtual[%d].serial is required", i))
			}
			if d.Columns < 1 || d.Rows < 1 {
				errs = append(errs, fmt.Sprintf("devices.virtual[%d] must have at least one column and row", i))
			}
		}
	default:
		errs = append(errs, fmt.Sprintf("devices.driver %q is not supported", c.Devices.Driver))
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// LongPressThreshold returns the long-press threshold as a Duration.
func (c *Config) LongPressThreshold() time.Duration {
	return time.Duration(c.Buttons.LongPressMS) * time.Millisecond
}

// PollInterval returns the device re-enumeration interval as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Devices.PollInterval) * time.Second
}
