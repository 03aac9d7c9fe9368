package meter

import (
	"context"
	"fmt"
	"sync"

	"meters-poller/internal/codec"
	"meters-poller/internal/transport"
)

type request struct {
	kind    string // "holding", "input", "write"
	unit    uint8
	address uint16
	values  []uint16
}

// fakeMeter is an in-memory meter reachable through fakeOpener
type fakeMeter struct {
	mu        sync.Mutex
	holding   map[uint16]float64
	input     map[uint16]float64
	failInput map[uint16]error
	failRead  map[uint16]error
	failWrite map[uint16]error
	requests  []request
	opens     int
	closes    int
	openErr   error
}

func newFakeMeter() *fakeMeter {
	return &fakeMeter{
		holding:   map[uint16]float64{},
		input:     map[uint16]float64{},
		failInput: map[uint16]error{},
		failRead:  map[uint16]error{},
		failWrite: map[uint16]error{},
	}
}

func (m *fakeMeter) record(r request) {
	m.requests = append(m.requests, r)
}

func (m *fakeMeter) writes() []request {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []request
	for _, r := range m.requests {
		if r.kind == "write" {
			out = append(out, r)
		}
	}
	return out
}

type fakeSession struct {
	m *fakeMeter
}

func (s *fakeSession) ReadHoldingRegisters(unit uint8, address, quantity uint16) ([]uint16, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.record(request{kind: "holding", unit: unit, address: address})
	if quantity != 2 {
		return nil, fmt.Errorf("expected quantity 2, got %d", quantity)
	}
	if err := s.m.failRead[address]; err != nil {
		return nil, err
	}
	return codec.Registers(s.m.holding[address]), nil
}

func (s *fakeSession) ReadInputRegisters(unit uint8, address, quantity uint16) ([]uint16, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.record(request{kind: "input", unit: unit, address: address})
	if quantity != 2 {
		return nil, fmt.Errorf("expected quantity 2, got %d", quantity)
	}
	if err := s.m.failInput[address]; err != nil {
		return nil, err
	}
	return codec.Registers(s.m.input[address]), nil
}

func (s *fakeSession) WriteMultipleRegisters(unit uint8, address uint16, values []uint16) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.record(request{kind: "write", unit: unit, address: address, values: append([]uint16(nil), values...)})
	if err := s.m.failWrite[address]; err != nil {
		return err
	}
	v, err := codec.FromRegisters(values)
	if err != nil {
		return err
	}
	s.m.holding[address] = v
	return nil
}

func (s *fakeSession) Close() error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.closes++
	return nil
}

type fakeOpener struct {
	m *fakeMeter
}

func (o *fakeOpener) Open(ctx context.Context) (transport.Session, error) {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	if o.m.openErr != nil {
		return nil, o.m.openErr
	}
	o.m.opens++
	return &fakeSession{m: o.m}, nil
}

func (o *fakeOpener) Protocol() transport.Protocol { return transport.ProtocolRTU }

func (o *fakeOpener) Endpoint() string { return "/dev/fake" }

func f64(v float64) *float64 { return &v }
