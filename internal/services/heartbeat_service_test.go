package services

import (
	"context"
	"testing"

	"meters-poller/internal/errors"
	"meters-poller/internal/logger"
)

func TestHeartbeatSkipsWhenDisconnected(t *testing.T) {
	pub := &fakePublisher{}
	NewHeartbeatService(pub, 0, logger.NewMockLogger()).Beat(context.Background())

	if pub.online != 0 || len(pub.diags) != 0 {
		t.Errorf("Expected no publish while disconnected, got %d online %v diags", pub.online, pub.diags)
	}
}

func TestHeartbeatPublishesOnline(t *testing.T) {
	pub := &fakePublisher{connected: true}
	NewHeartbeatService(pub, 0, logger.NewMockLogger()).Beat(context.Background())

	if pub.online != 1 {
		t.Errorf("Expected one online publish, got %d", pub.online)
	}
	if len(pub.diags) != 1 || pub.diags[0] != errors.CodeOK {
		t.Errorf("Expected an OK diagnostic, got %v", pub.diags)
	}
}

func TestHeartbeatDisabled(t *testing.T) {
	pub := &fakePublisher{connected: true}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Returns immediately instead of blocking on ctx
	NewHeartbeatService(pub, 0, logger.NewMockLogger()).Start(ctx)
	if pub.online != 0 {
		t.Errorf("Expected no heartbeat when disabled, got %d", pub.online)
	}
}

func TestHeartbeatSkipsAfterCancel(t *testing.T) {
	pub := &fakePublisher{connected: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewHeartbeatService(pub, 0, logger.NewMockLogger()).Beat(ctx)
	if pub.online != 0 || len(pub.diags) != 0 {
		t.Errorf("Expected no publish after cancel, got %d online %v diags", pub.online, pub.diags)
	}
}
