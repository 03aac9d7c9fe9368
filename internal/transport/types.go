// Package transport opens Modbus RTU and TCP sessions. Each session issues
// logical register requests only; framing, CRC and socket handling belong to
// github.com/goburrow/modbus.
package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Protocol selects the Modbus transport
type Protocol string

const (
	ProtocolRTU Protocol = "rtu"
	ProtocolTCP Protocol = "tcp"
)

// Serial defaults
const (
	DefaultSerialPort = "/dev/ttyCOM1"
	DefaultBaudRate   = 9600
	DefaultParity     = "E"
	DefaultStopBits   = 1
	DefaultDataBits   = 8
	DefaultTimeout    = time.Second
)

// TCP defaults
const (
	DefaultTCPHost = "192.168.0.99"
	DefaultTCPPort = 502
)

// LinkConfig holds serial line parameters. It is fixed for the lifetime of a session.
type LinkConfig struct {
	Port     string
	BaudRate int
	Parity   string // "E", "O" or "N"
	StopBits int
	DataBits int
	Timeout  time.Duration
}

// DefaultLinkConfig returns 9600 8E1 on /dev/ttyCOM1
func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		Port:     DefaultSerialPort,
		BaudRate: DefaultBaudRate,
		Parity:   DefaultParity,
		StopBits: DefaultStopBits,
		DataBits: DefaultDataBits,
		Timeout:  DefaultTimeout,
	}
}

// String formats the link like "/dev/ttyUSB0 9600 8E1"
func (c LinkConfig) String() string {
	return fmt.Sprintf("%s %d %d%s%d", c.Port, c.BaudRate, c.DataBits, c.Parity, c.StopBits)
}

// TCPEndpoint addresses a Modbus TCP server
type TCPEndpoint struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// Address returns host:port
func (e TCPEndpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Session is an open Modbus connection. Every request names its unit id,
// so one session can serve a driver whose unit id changes mid-call.
// Reads and writes always move whole register slices.
type Session interface {
	ReadHoldingRegisters(unitID uint8, address, quantity uint16) ([]uint16, error)
	ReadInputRegisters(unitID uint8, address, quantity uint16) ([]uint16, error)
	WriteMultipleRegisters(unitID uint8, address uint16, values []uint16) error
	Close() error
}

// Opener establishes sessions. A failure to open is reported as a LinkError.
type Opener interface {
	Open(ctx context.Context) (Session, error)
	Protocol() Protocol
	Endpoint() string
}
