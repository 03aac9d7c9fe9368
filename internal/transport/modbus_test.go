package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"meters-poller/internal/errors"
)

func TestPackUnpackRegisters(t *testing.T) {
	raw := packRegisters([]uint16{0x4616, 0x0000})
	if len(raw) != 4 || raw[0] != 0x46 || raw[1] != 0x16 || raw[2] != 0 || raw[3] != 0 {
		t.Fatalf("Expected 46 16 00 00, got % X", raw)
	}

	regs, err := unpackRegisters(raw, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if regs[0] != 0x4616 || regs[1] != 0x0000 {
		t.Errorf("Expected [0x4616 0x0000], got %04X", regs)
	}

	if _, err := unpackRegisters(raw[:3], 2); err == nil {
		t.Error("Expected error for short response")
	}
}

func TestTCPOpenFailureIsLinkError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	opener := NewTCPOpener(TCPEndpoint{Host: "127.0.0.1", Port: addr.Port, Timeout: 200 * time.Millisecond})
	if opener.Protocol() != ProtocolTCP {
		t.Errorf("Expected protocol tcp, got %s", opener.Protocol())
	}

	_, err = opener.Open(context.Background())
	if err == nil {
		t.Fatal("Expected connect to a closed port to fail")
	}
	if !errors.IsLinkError(err) {
		t.Errorf("Expected LinkError, got %T: %v", err, err)
	}
}

func TestOpenRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRTUOpener(DefaultLinkConfig()).Open(ctx)
	if !errors.IsLinkError(err) {
		t.Errorf("Expected LinkError for cancelled context, got %v", err)
	}
}

func TestEndpointFormatting(t *testing.T) {
	e := TCPEndpoint{Host: DefaultTCPHost, Port: DefaultTCPPort}
	if e.Address() != "192.168.0.99:502" {
		t.Errorf("Expected 192.168.0.99:502, got %s", e.Address())
	}
	if s := DefaultLinkConfig().String(); s != "/dev/ttyCOM1 9600 8E1" {
		t.Errorf("Expected '/dev/ttyCOM1 9600 8E1', got %q", s)
	}
}
