package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"meters-poller/internal/errors"
	"meters-poller/internal/reader"
	"meters-poller/internal/transport"
)

const sampleConfig = `
serial:
  port: /dev/ttyUSB0
  baudrate: 9600
  parity: even
  timeout: 0.5

tcp:
  host: 10.0.0.10
  port: 1502

mqtt:
  host: broker.local
  username: poller
  base_topic: /energy/
  qos: 1

home_assistant:
  enabled: true
  area: Lab

polling:
  read_mode: BULK
  per_measure_delay_ms: 20
  delay_ms_between_devices: 100
  period_s: 2.5
  debug_log: true

devices:
  - id: 1
    type: dds661
    name: "Main DDS"
  - id: 5
    type: sdm230
    name: "PV Import/Export"
    protocol: tcp
    tcp:
      host: 10.0.0.20
  - id: 7
`

func TestLoadConfigFromString(t *testing.T) {
	cfg, err := LoadConfigFromString(sampleConfig)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Serial.Parity != "E" {
		t.Errorf("Expected parity normalised to 'E', got '%s'", cfg.Serial.Parity)
	}
	if cfg.Serial.StopBits != 1 || cfg.Serial.ByteSize != 8 {
		t.Errorf("Expected serial defaults 8/1, got %d/%d", cfg.Serial.ByteSize, cfg.Serial.StopBits)
	}
	if cfg.MQTT.Port != 1883 {
		t.Errorf("Expected default MQTT port 1883, got %d", cfg.MQTT.Port)
	}
	if cfg.MQTT.BaseTopic != "energy" {
		t.Errorf("Expected base topic trimmed to 'energy', got '%s'", cfg.MQTT.BaseTopic)
	}
	if !cfg.MQTT.Retain {
		t.Error("Expected retain to default to true")
	}
	if cfg.MQTT.TopicStyle != TopicStyleState {
		t.Errorf("Expected topic style 'state', got '%s'", cfg.MQTT.TopicStyle)
	}
	if cfg.HomeAssistant.DiscoveryPrefix != "homeassistant" {
		t.Errorf("Expected default discovery prefix, got '%s'", cfg.HomeAssistant.DiscoveryPrefix)
	}
	if cfg.Polling.ReadMode != "bulk" {
		t.Errorf("Expected read mode 'bulk', got '%s'", cfg.Polling.ReadMode)
	}
	if len(cfg.Devices) != 3 {
		t.Fatalf("Expected 3 devices, got %d", len(cfg.Devices))
	}
}

func TestDefaultsWhenSectionsMissing(t *testing.T) {
	cfg, err := LoadConfigFromString("devices: []\n")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Polling.PerMeasureDelayMs != 50 {
		t.Errorf("Expected per-measure delay 50, got %d", cfg.Polling.PerMeasureDelayMs)
	}
	if cfg.Polling.PeriodS != 5 {
		t.Errorf("Expected period 5, got %v", cfg.Polling.PeriodS)
	}
	if cfg.Serial.Port != "/dev/ttyCOM1" {
		t.Errorf("Expected default port, got '%s'", cfg.Serial.Port)
	}
	if cfg.MQTT.ClientID != "" {
		t.Errorf("Expected empty default client id, got '%s'", cfg.MQTT.ClientID)
	}
}

func TestValidateRejectsBadGlobals(t *testing.T) {
	tests := map[string]string{
		"parity":      "serial: {parity: X}\n",
		"mqtt port":   "mqtt: {port: 70000}\n",
		"qos":         "mqtt: {qos: 3}\n",
		"topic style": "mqtt: {topic_style: nested}\n",
		"read mode":   "polling: {read_mode: parallel}\n",
		"delay":       "polling: {per_measure_delay_ms: -1}\n",
		"period":      "polling: {period_s: 0}\n",
		"yaml":        "serial: [\n",
	}
	for name, content := range tests {
		if _, err := LoadConfigFromString(content); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

// TestBadDeviceDoesNotFailLoad: device problems surface per cycle, not at load
func TestBadDeviceDoesNotFailLoad(t *testing.T) {
	cfg, err := LoadConfigFromString("devices:\n  - {id: 300, type: dds661}\n  - {id: 2, type: sdm630}\n")
	if err != nil {
		t.Fatalf("Expected load to succeed, got %v", err)
	}

	var cfgErr *errors.ConfigError
	if _, err := cfg.Devices[0].Validate(); !stderrors.As(err, &cfgErr) {
		t.Errorf("Expected ConfigError for id 300, got %v", err)
	}
	if _, err := cfg.Devices[1].Validate(); !stderrors.As(err, &cfgErr) {
		t.Errorf("Expected ConfigError for unknown type, got %v", err)
	}
}

func TestDeviceHelpers(t *testing.T) {
	d := Device{ID: 7}
	if d.TypeTag() != "dds661" {
		t.Errorf("Expected default type dds661, got %s", d.TypeTag())
	}
	if d.DisplayName() != "DDS661 7" {
		t.Errorf("Expected 'DDS661 7', got '%s'", d.DisplayName())
	}
	if d.ProtocolOrDefault() != transport.ProtocolRTU {
		t.Errorf("Expected rtu, got %s", d.ProtocolOrDefault())
	}
	family, err := d.Validate()
	if err != nil || family.Type != "dds661" {
		t.Errorf("Expected dds661 family, got %v %v", family, err)
	}

	d = Device{ID: 3, Protocol: "udp"}
	if _, err := d.Validate(); err == nil {
		t.Error("Expected error for unknown protocol")
	}
}

// TestTCPMerge: device tcp block overlays the global one
func TestTCPMerge(t *testing.T) {
	cfg, err := LoadConfigFromString(sampleConfig)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	ep := cfg.TCPEndpoint(cfg.Devices[1])
	if ep.Host != "10.0.0.20" {
		t.Errorf("Expected device host, got %s", ep.Host)
	}
	if ep.Port != 1502 {
		t.Errorf("Expected global port 1502, got %d", ep.Port)
	}
	if ep.Timeout != time.Second {
		t.Errorf("Expected default timeout 1s, got %v", ep.Timeout)
	}

	ep = cfg.TCPEndpoint(cfg.Devices[0])
	if ep.Address() != "10.0.0.10:1502" {
		t.Errorf("Expected global endpoint, got %s", ep.Address())
	}

	empty := &Config{}
	ep = empty.TCPEndpoint(Device{ID: 1})
	if ep.Address() != "192.168.0.99:502" {
		t.Errorf("Expected built-in defaults, got %s", ep.Address())
	}

	if cfg.Opener(cfg.Devices[1]).Protocol() != transport.ProtocolTCP {
		t.Error("Expected TCP opener for tcp device")
	}
	if cfg.Opener(cfg.Devices[0]).Endpoint() != "/dev/ttyUSB0" {
		t.Errorf("Expected serial opener on /dev/ttyUSB0, got %s", cfg.Opener(cfg.Devices[0]).Endpoint())
	}
}

func TestSettings(t *testing.T) {
	cfg, err := LoadConfigFromString(sampleConfig)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	ps := NewPollingSettings(cfg)
	if ps.Period != 2500*time.Millisecond {
		t.Errorf("Expected period 2.5s, got %v", ps.Period)
	}
	if ps.DeviceDelay != 100*time.Millisecond {
		t.Errorf("Expected device delay 100ms, got %v", ps.DeviceDelay)
	}

	ro := NewReaderOptions(cfg)
	if ro.Mode != reader.ModeBulk || ro.FieldDelay != 20*time.Millisecond || !ro.StepLog {
		t.Errorf("Unexpected reader options %+v", ro)
	}

	link := cfg.LinkConfig()
	if link.Timeout != 500*time.Millisecond {
		t.Errorf("Expected 500ms serial timeout, got %v", link.Timeout)
	}

	ms := NewMQTTSettings(cfg)
	if ms.QoS != 1 || ms.KeepAlive != time.Minute || ms.RetryDelay != 5*time.Second {
		t.Errorf("Unexpected MQTT settings %+v", ms)
	}

	ha := NewHASettings(cfg)
	if !ha.Enabled || ha.Area != "Lab" {
		t.Errorf("Unexpected HA settings %+v", ha)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if d, ok := cfg.FindDevice(5); !ok || d.Name != "PV Import/Export" {
		t.Errorf("Expected device 5, got %+v", d)
	}
	if _, ok := cfg.FindDevice(42); ok {
		t.Error("Expected no device 42")
	}
}
