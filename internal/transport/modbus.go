package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/goburrow/modbus"

	"meters-poller/internal/errors"
)

// connHandler is the part of the goburrow handlers we drive directly
type connHandler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

// goburrowSession wraps a connected goburrow handler. The handler's SlaveId is
// mutated per request, so requests are serialized.
type goburrowSession struct {
	mu       sync.Mutex
	handler  connHandler
	setSlave func(uint8)
	client   modbus.Client
}

func newSession(h connHandler, setSlave func(uint8)) *goburrowSession {
	return &goburrowSession{
		handler:  h,
		setSlave: setSlave,
		client:   modbus.NewClient(h),
	}
}

func (s *goburrowSession) ReadHoldingRegisters(unitID uint8, address, quantity uint16) ([]uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setSlave(unitID)
	raw, err := s.client.ReadHoldingRegisters(address, quantity)
	if err != nil {
		return nil, err
	}
	return unpackRegisters(raw, quantity)
}

func (s *goburrowSession) ReadInputRegisters(unitID uint8, address, quantity uint16) ([]uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setSlave(unitID)
	raw, err := s.client.ReadInputRegisters(address, quantity)
	if err != nil {
		return nil, err
	}
	return unpackRegisters(raw, quantity)
}

func (s *goburrowSession) WriteMultipleRegisters(unitID uint8, address uint16, values []uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setSlave(unitID)
	_, err := s.client.WriteMultipleRegisters(address, uint16(len(values)), packRegisters(values))
	return err
}

func (s *goburrowSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler.Close()
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}

func unpackRegisters(raw []byte, quantity uint16) ([]uint16, error) {
	if len(raw) != int(quantity)*2 {
		return nil, fmt.Errorf("short response: expected %d bytes, got %d", int(quantity)*2, len(raw))
	}
	out := make([]uint16, quantity)
	for i := range out {
		out[i] = uint16(raw[2*i])<<8 | uint16(raw[2*i+1])
	}
	return out, nil
}

// RTUOpener opens a serial Modbus RTU session per call
type RTUOpener struct {
	Link LinkConfig
}

// NewRTUOpener creates an opener for the given serial link
func NewRTUOpener(link LinkConfig) *RTUOpener {
	return &RTUOpener{Link: link}
}

func (o *RTUOpener) Protocol() Protocol { return ProtocolRTU }

func (o *RTUOpener) Endpoint() string { return o.Link.Port }

// Open opens the serial port. The context is only checked before opening;
// goburrow has no cancellable connect.
func (o *RTUOpener) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewLinkError("open", err, string(ProtocolRTU), o.Link.Port)
	}

	h := modbus.NewRTUClientHandler(o.Link.Port)
	if o.Link.BaudRate > 0 {
		h.BaudRate = o.Link.BaudRate
	}
	if o.Link.DataBits > 0 {
		h.DataBits = o.Link.DataBits
	}
	if o.Link.StopBits > 0 {
		h.StopBits = o.Link.StopBits
	}
	if o.Link.Parity != "" {
		h.Parity = o.Link.Parity
	}
	if o.Link.Timeout > 0 {
		h.Timeout = o.Link.Timeout
	}

	if err := h.Connect(); err != nil {
		return nil, errors.NewLinkError("open", err, string(ProtocolRTU), o.Link.Port)
	}
	return newSession(h, func(id uint8) { h.SlaveId = id }), nil
}

// TCPOpener connects to a Modbus TCP server per call
type TCPOpener struct {
	Target TCPEndpoint
}

// NewTCPOpener creates an opener for the given endpoint
func NewTCPOpener(target TCPEndpoint) *TCPOpener {
	return &TCPOpener{Target: target}
}

func (o *TCPOpener) Protocol() Protocol { return ProtocolTCP }

func (o *TCPOpener) Endpoint() string { return o.Target.Address() }

// Open connects to the server
func (o *TCPOpener) Open(ctx context.Context) (Session, error) {
	address := o.Target.Address()
	if err := ctx.Err(); err != nil {
		return nil, errors.NewLinkError("connect", err, string(ProtocolTCP), address)
	}

	h := modbus.NewTCPClientHandler(address)
	if o.Target.Timeout > 0 {
		h.Timeout = o.Target.Timeout
	}

	if err := h.Connect(); err != nil {
		return nil, errors.NewLinkError("connect", err, string(ProtocolTCP), address)
	}
	return newSession(h, func(id uint8) { h.SlaveId = id }), nil
}
