package config

import (
	"fmt"
	"strings"
	"time"

	"meters-poller/internal/errors"
	"meters-poller/internal/meter"
	"meters-poller/internal/transport"
)

// Device is one configured meter
type Device struct {
	ID       int        `yaml:"id"`
	Name     string     `yaml:"name"`
	Type     string     `yaml:"type"`     // dds661 (default) or sdm230
	Protocol string     `yaml:"protocol"` // rtu (default) or tcp
	TCP      *TCPConfig `yaml:"tcp,omitempty"`
}

// TypeTag returns the lower-case type, defaulting to dds661
func (d Device) TypeTag() string {
	t := strings.ToLower(strings.TrimSpace(d.Type))
	if t == "" {
		return meter.DefaultType
	}
	return t
}

// ProtocolOrDefault returns rtu or tcp
func (d Device) ProtocolOrDefault() transport.Protocol {
	if strings.EqualFold(strings.TrimSpace(d.Protocol), string(transport.ProtocolTCP)) {
		return transport.ProtocolTCP
	}
	return transport.ProtocolRTU
}

// DisplayName returns the configured name or "<TYPE> <id>"
func (d Device) DisplayName() string {
	if strings.TrimSpace(d.Name) != "" {
		return d.Name
	}
	return fmt.Sprintf("%s %d", strings.ToUpper(d.TypeTag()), d.ID)
}

// Validate checks one device entry and resolves its family
func (d Device) Validate() (*meter.Family, error) {
	if d.ID < 1 || d.ID > 247 {
		return nil, errors.NewConfigError("validate device",
			fmt.Errorf("id %d out of range 1..247", d.ID), "devices.id")
	}
	switch strings.ToLower(strings.TrimSpace(d.Protocol)) {
	case "", string(transport.ProtocolRTU), string(transport.ProtocolTCP):
	default:
		return nil, errors.NewConfigError("validate device",
			fmt.Errorf("unknown protocol '%s' for id=%d", d.Protocol, d.ID), "devices.protocol")
	}
	return meter.Lookup(d.TypeTag())
}

// FindDevice returns the device entry with the given id
func (c *Config) FindDevice(id int) (Device, bool) {
	for _, d := range c.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

// LinkConfig converts the serial block
func (c *Config) LinkConfig() transport.LinkConfig {
	return transport.LinkConfig{
		Port:     c.Serial.Port,
		BaudRate: c.Serial.BaudRate,
		Parity:   c.Serial.Parity,
		StopBits: c.Serial.StopBits,
		DataBits: c.Serial.ByteSize,
		Timeout:  seconds(c.Serial.Timeout),
	}
}

// TCPEndpoint overlays the device's tcp block on the global one
func (c *Config) TCPEndpoint(d Device) transport.TCPEndpoint {
	merged := c.TCP
	if d.TCP != nil {
		if d.TCP.Host != "" {
			merged.Host = d.TCP.Host
		}
		if d.TCP.Port != 0 {
			merged.Port = d.TCP.Port
		}
		if d.TCP.Timeout != 0 {
			merged.Timeout = d.TCP.Timeout
		}
	}
	if merged.Host == "" {
		merged.Host = transport.DefaultTCPHost
	}
	if merged.Port == 0 {
		merged.Port = transport.DefaultTCPPort
	}
	if merged.Timeout == 0 {
		merged.Timeout = transport.DefaultTimeout.Seconds()
	}
	return transport.TCPEndpoint{
		Host:    merged.Host,
		Port:    merged.Port,
		Timeout: seconds(merged.Timeout),
	}
}

// Opener builds the transport for a device
func (c *Config) Opener(d Device) transport.Opener {
	if d.ProtocolOrDefault() == transport.ProtocolTCP {
		return transport.NewTCPOpener(c.TCPEndpoint(d))
	}
	return transport.NewRTUOpener(c.LinkConfig())
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
