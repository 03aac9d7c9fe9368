package config

import (
	"time"

	"meters-poller/internal/reader"
)

// PollingSettings contains polling loop configuration
// Used for dependency injection to avoid coupling to full Config
type PollingSettings struct {
	Period      time.Duration
	DeviceDelay time.Duration
	DebugLog    bool
	Devices     []Device
}

// NewPollingSettings extracts polling settings from full config
func NewPollingSettings(cfg *Config) PollingSettings {
	return PollingSettings{
		Period:      seconds(cfg.Polling.PeriodS),
		DeviceDelay: time.Duration(cfg.Polling.DelayMsBetweenDevices) * time.Millisecond,
		DebugLog:    cfg.Polling.DebugLog,
		Devices:     cfg.Devices,
	}
}

// NewReaderOptions extracts the read strategy options
func NewReaderOptions(cfg *Config) reader.Options {
	mode, _ := reader.ParseMode(cfg.Polling.ReadMode)
	return reader.Options{
		Mode:       mode,
		FieldDelay: time.Duration(cfg.Polling.PerMeasureDelayMs) * time.Millisecond,
		StepLog:    cfg.Polling.DebugLog,
	}
}

// MQTTSettings contains only MQTT-specific configuration
// Used for dependency injection to avoid coupling to full Config
type MQTTSettings struct {
	Host              string
	Port              int
	Username          string
	Password          string
	ClientID          string
	BaseTopic         string
	QoS               byte
	Retain            bool
	KeepAlive         time.Duration
	RetryDelay        time.Duration
	TopicStyle        string
	HeartbeatInterval time.Duration
	TLS               TLSConfig
}

// NewMQTTSettings extracts MQTT settings from full config
func NewMQTTSettings(cfg *Config) MQTTSettings {
	return MQTTSettings{
		Host:              cfg.MQTT.Host,
		Port:              cfg.MQTT.Port,
		Username:          cfg.MQTT.Username,
		Password:          cfg.MQTT.Password,
		ClientID:          cfg.MQTT.ClientID,
		BaseTopic:         cfg.MQTT.BaseTopic,
		QoS:               byte(cfg.MQTT.QoS),
		Retain:            cfg.MQTT.Retain,
		KeepAlive:         time.Duration(cfg.MQTT.KeepAlive) * time.Second,
		RetryDelay:        time.Duration(cfg.MQTT.RetryDelay) * time.Millisecond,
		TopicStyle:        cfg.MQTT.TopicStyle,
		HeartbeatInterval: time.Duration(cfg.MQTT.HeartbeatInterval) * time.Second,
		TLS:               cfg.MQTT.TLS,
	}
}

// HASettings contains Home Assistant discovery configuration
type HASettings struct {
	Enabled         bool
	DiscoveryPrefix string
	Area            string
}

// NewHASettings extracts Home Assistant settings from full config
func NewHASettings(cfg *Config) HASettings {
	return HASettings{
		Enabled:         cfg.HomeAssistant.Enabled,
		DiscoveryPrefix: cfg.HomeAssistant.DiscoveryPrefix,
		Area:            cfg.HomeAssistant.Area,
	}
}
