package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"meters-poller/internal/logger"
	"meters-poller/internal/reader"
)

// Config represents the complete application configuration
type Config struct {
	Serial        SerialConfig         `yaml:"serial"`
	TCP           TCPConfig            `yaml:"tcp"`
	MQTT          MQTTConfig           `yaml:"mqtt"`
	HomeAssistant HAConfig             `yaml:"home_assistant"`
	Polling       PollingConfig        `yaml:"polling"`
	Devices       []Device             `yaml:"devices"`
	Logging       logger.LoggingConfig `yaml:"logging"`
	Metrics       MetricsConfig        `yaml:"metrics"`
	History       HistoryConfig        `yaml:"history"`
}

// SerialConfig is the shared RTU line
type SerialConfig struct {
	Port     string  `yaml:"port"`
	BaudRate int     `yaml:"baudrate"`
	Parity   string  `yaml:"parity"` // E, O or N; only the first letter counts
	StopBits int     `yaml:"stopbits"`
	ByteSize int     `yaml:"bytesize"`
	Timeout  float64 `yaml:"timeout"` // seconds
}

// TCPConfig addresses a Modbus TCP server. Zero fields inherit.
type TCPConfig struct {
	Host    string  `yaml:"host"`
	Port    int     `yaml:"port"`
	Timeout float64 `yaml:"timeout"` // seconds
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Host              string    `yaml:"host"`
	Port              int       `yaml:"port"`
	Username          string    `yaml:"username"`
	Password          string    `yaml:"password"`
	ClientID          string    `yaml:"client_id"` // empty: meters-poller-<random>
	BaseTopic         string    `yaml:"base_topic"`
	QoS               int       `yaml:"qos"`
	Retain            bool      `yaml:"retain"`
	KeepAlive         int       `yaml:"keepalive"`          // seconds
	RetryDelay        int       `yaml:"retry_delay_ms"`     // between connection attempts
	TopicStyle        string    `yaml:"topic_style"`        // flat, state or measurements
	HeartbeatInterval int       `yaml:"heartbeat_interval"` // seconds, 0 disables
	TLS               TLSConfig `yaml:"tls"`
}

// TLSConfig enables TLS to the broker
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled"`
	CACerts            string `yaml:"ca_certs"`
	CertFile           string `yaml:"certfile"`
	KeyFile            string `yaml:"keyfile"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// HAConfig contains Home Assistant MQTT Discovery settings
type HAConfig struct {
	Enabled         bool   `yaml:"enabled"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	Area            string `yaml:"area"`
}

// PollingConfig controls the poll loop
type PollingConfig struct {
	ReadMode              string  `yaml:"read_mode"` // sequential or bulk
	PerMeasureDelayMs     int     `yaml:"per_measure_delay_ms"`
	DelayMsBetweenDevices int     `yaml:"delay_ms_between_devices"`
	PeriodS               float64 `yaml:"period_s"`
	DebugLog              bool    `yaml:"debug_log"`
}

// MetricsConfig controls the /metrics and /health HTTP server
type MetricsConfig struct {
	Port int `yaml:"port"` // 0 disables
}

// HistoryConfig controls the SQLite history sink
type HistoryConfig struct {
	Path string `yaml:"path"` // empty disables
}

// Topic styles
const (
	TopicStyleFlat         = "flat"
	TopicStyleState        = "state"
	TopicStyleMeasurements = "measurements"
)

// Default returns a configuration with every default filled in
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyCOM1",
			BaudRate: 9600,
			Parity:   "E",
			StopBits: 1,
			ByteSize: 8,
			Timeout:  1.0,
		},
		TCP: TCPConfig{
			Host:    "192.168.0.99",
			Port:    502,
			Timeout: 1.0,
		},
		MQTT: MQTTConfig{
			Host:       "127.0.0.1",
			Port:       1883,
			BaseTopic:  "energy",
			Retain:     true,
			KeepAlive:  60,
			RetryDelay: 5000,
			TopicStyle: TopicStyleState,
		},
		HomeAssistant: HAConfig{
			DiscoveryPrefix: "homeassistant",
		},
		Polling: PollingConfig{
			ReadMode:          string(reader.ModeSequential),
			PerMeasureDelayMs: 50,
			PeriodS:           5,
		},
		Logging: logger.LoggingConfig{
			Level:  logger.LogLevelInfo,
			Format: logger.FormatConsole,
		},
	}
}

// SearchPaths returns the locations LoadConfig tries, in order
func SearchPaths(configPath string) []string {
	return []string{
		configPath,
		"/etc/meters-poller/config.yaml",
		"/etc/meters-poller.yaml",
		"./config.yaml",
	}
}

// LoadConfig loads configuration from the first readable location
func LoadConfig(configPath string) (*Config, error) {
	paths := SearchPaths(configPath)

	var data []byte
	var err error
	var usedPath string

	for _, path := range paths {
		if path == "" {
			continue
		}
		// #nosec G304 - Paths are from a hardcoded list of safe configuration file locations
		data, err = os.ReadFile(path)
		if err == nil {
			usedPath = path
			break
		}
	}

	if usedPath == "" {
		return nil, fmt.Errorf("cannot read configuration file from any of the locations: %v. Last error: %w", paths, err)
	}

	config, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", usedPath, err)
	}

	logger.LogInfo("✅ Configuration loaded successfully from %s (%d devices)", usedPath, len(config.Devices))
	return config, nil
}

// LoadConfigFromString loads configuration from a YAML string (for testing)
func LoadConfigFromString(yamlContent string) (*Config, error) {
	config, err := parse([]byte(yamlContent))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing configuration: %w", err)
	}
	config.normalize()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) normalize() {
	c.Serial.Parity = strings.ToUpper(strings.TrimSpace(c.Serial.Parity))
	if len(c.Serial.Parity) > 1 {
		c.Serial.Parity = c.Serial.Parity[:1]
	}
	c.Polling.ReadMode = strings.ToLower(strings.TrimSpace(c.Polling.ReadMode))
	c.MQTT.TopicStyle = strings.ToLower(strings.TrimSpace(c.MQTT.TopicStyle))
	c.MQTT.BaseTopic = strings.Trim(c.MQTT.BaseTopic, "/")
}

// Validate checks the global settings. Device entries are checked per poll
// cycle so one bad entry only skips that device.
func (c *Config) Validate() error {
	switch c.Serial.Parity {
	case "E", "O", "N":
	default:
		return fmt.Errorf("serial.parity must be E, O or N, got '%s'", c.Serial.Parity)
	}
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baudrate must be positive")
	}
	if c.Serial.Timeout < 0 {
		return fmt.Errorf("serial.timeout must be non-negative")
	}

	if c.MQTT.Host == "" {
		return fmt.Errorf("mqtt.host is not specified")
	}
	if c.MQTT.Port <= 0 || c.MQTT.Port > 65535 {
		return fmt.Errorf("mqtt.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	if c.MQTT.BaseTopic == "" {
		return fmt.Errorf("mqtt.base_topic is not specified")
	}
	switch c.MQTT.TopicStyle {
	case TopicStyleFlat, TopicStyleState, TopicStyleMeasurements:
	default:
		return fmt.Errorf("mqtt.topic_style must be flat, state or measurements, got '%s'", c.MQTT.TopicStyle)
	}
	if c.MQTT.HeartbeatInterval < 0 {
		return fmt.Errorf("mqtt.heartbeat_interval must be non-negative")
	}

	if _, err := reader.ParseMode(c.Polling.ReadMode); err != nil {
		return fmt.Errorf("polling.read_mode: %w", err)
	}
	if c.Polling.PerMeasureDelayMs < 0 {
		return fmt.Errorf("polling.per_measure_delay_ms must be non-negative")
	}
	if c.Polling.DelayMsBetweenDevices < 0 {
		return fmt.Errorf("polling.delay_ms_between_devices must be non-negative")
	}
	if c.Polling.PeriodS <= 0 {
		return fmt.Errorf("polling.period_s must be positive")
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 0 and 65535")
	}

	if len(c.Devices) == 0 {
		logger.LogWarn("⚠️  No devices configured; polling cycles will be empty")
	}
	return nil
}
