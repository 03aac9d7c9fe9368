package services

import (
	"context"
	"time"

	"meters-poller/internal/errors"
	"meters-poller/internal/logger"
)

// StatusPublisher publishes the retained status and diagnostics
type StatusPublisher interface {
	PublishStatusOnline(ctx context.Context) error
	PublishDiagnostic(ctx context.Context, code int, message string) error
	IsConnected() bool
}

// HeartbeatService republishes "online" periodically so retained status survives broker restarts
type HeartbeatService struct {
	publisher StatusPublisher
	interval  time.Duration
	log       logger.ILogger
}

// NewHeartbeatService creates a new heartbeat service
func NewHeartbeatService(publisher StatusPublisher, interval time.Duration, log logger.ILogger) *HeartbeatService {
	if log == nil {
		log = logger.NewStandardLogger()
	}
	return &HeartbeatService{
		publisher: publisher,
		interval:  interval,
		log:       log,
	}
}

// Start runs the heartbeat loop until ctx is done. A non-positive interval disables it.
func (s *HeartbeatService) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.LogInfo("💓 Heartbeat service started with interval: %v", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.log.LogDebug("🔇 Heartbeat service stopped")
			return
		case <-ticker.C:
			s.Beat(ctx)
		}
	}
}

// Beat sends one heartbeat if the broker connection is up
func (s *HeartbeatService) Beat(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !s.publisher.IsConnected() {
		s.log.LogDebug("💔 Skipping heartbeat - MQTT disconnected")
		return
	}

	if err := s.publisher.PublishStatusOnline(ctx); err != nil {
		s.log.LogError("⚠️ Heartbeat failed: %v", err)
		return
	}
	s.log.LogDebug("💓 Heartbeat sent: online")

	if err := s.publisher.PublishDiagnostic(ctx, errors.CodeOK, "meters-poller running"); err != nil {
		s.log.LogDebug("⚠️ Diagnostic heartbeat failed: %v", err)
	}
}
