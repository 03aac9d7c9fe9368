package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"meters-poller/internal/config"
	"meters-poller/internal/errors"
	"meters-poller/internal/logger"
	"meters-poller/internal/meter"
	"meters-poller/internal/metrics"
	"meters-poller/internal/reader"
	"meters-poller/internal/transport"
)

const (
	// offlineTimeout bounds the final "offline" publish after the run context is gone
	offlineTimeout = 5 * time.Second

	summaryInterval = 30 * time.Second
)

// MeasurementReader produces one device's measurements
type MeasurementReader interface {
	Read(ctx context.Context, t reader.Target) (meter.Measurements, error)
}

// RecordPublisher is the MQTT side of the poll loop
type RecordPublisher interface {
	PublishRecord(ctx context.Context, rec meter.Record) error
	PublishStatusOffline(ctx context.Context) error
}

// RecordSink stores published records, e.g. the SQLite history
type RecordSink interface {
	Record(ctx context.Context, rec meter.Record) error
}

// HealthRecorder receives per-device outcomes for /health.
// ResetWindow is called with every periodic summary.
type HealthRecorder interface {
	RecordSuccess()
	RecordError()
	ResetWindow()
}

// OpenerFactory builds the transport for one device
type OpenerFactory func(d config.Device) transport.Opener

// CycleStats summarises one pass over the device list
type CycleStats struct {
	Devices   int
	Published int
	Failed    int
	Duration  time.Duration
}

func (s CycleStats) String() string {
	return fmt.Sprintf("%d devices, %d published, %d failed", s.Devices, s.Published, s.Failed)
}

// PollingService visits every configured device once per period, strictly in order
type PollingService struct {
	settings  config.PollingSettings
	reader    MeasurementReader
	publisher RecordPublisher
	openers   OpenerFactory

	errorHandler *errors.ErrorHandler
	metrics      metrics.MetricsCollector
	sink         RecordSink
	health       HealthRecorder
	log          logger.ILogger

	now    func() time.Time
	wait   func(ctx context.Context, d time.Duration) bool
	onStop func()

	// totals since the last summary line
	published   int
	failed      int
	lastSummary time.Time
}

// Option configures a PollingService
type Option func(*PollingService)

// WithErrorHandler routes per-device errors through h
func WithErrorHandler(h *errors.ErrorHandler) Option {
	return func(s *PollingService) { s.errorHandler = h }
}

// WithMetrics sets the metrics collector
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(s *PollingService) { s.metrics = m }
}

// WithSink appends every published record to sink
func WithSink(sink RecordSink) Option {
	return func(s *PollingService) { s.sink = sink }
}

// WithHealth reports device outcomes to h
func WithHealth(h HealthRecorder) Option {
	return func(s *PollingService) { s.health = h }
}

// WithLogger sets the logger
func WithLogger(l logger.ILogger) Option {
	return func(s *PollingService) { s.log = l }
}

// WithStopHook runs fn after the loop ends and before "offline" is published.
// fn must return only once nothing else can publish a status.
func WithStopHook(fn func()) Option {
	return func(s *PollingService) { s.onStop = fn }
}

// WithClock replaces time.Now and the cancellable wait, for tests
func WithClock(now func() time.Time, wait func(ctx context.Context, d time.Duration) bool) Option {
	return func(s *PollingService) {
		s.now = now
		s.wait = wait
	}
}

// NewPollingService creates a new polling service
func NewPollingService(
	settings config.PollingSettings,
	r MeasurementReader,
	publisher RecordPublisher,
	openers OpenerFactory,
	opts ...Option,
) *PollingService {
	s := &PollingService{
		settings:     settings,
		reader:       r,
		publisher:    publisher,
		openers:      openers,
		errorHandler: errors.NewErrorHandler(nil),
		metrics:      metrics.NewNullMetrics(),
		log:          logger.NewStandardLogger(),
		now:          time.Now,
		wait:         sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastSummary = s.now()
	return s
}

// NextWait is the pause before the next cycle: max(0, period - elapsed)
func NextWait(period, elapsed time.Duration) time.Duration {
	if elapsed >= period {
		return 0
	}
	return period - elapsed
}

// Run polls until ctx is cancelled, then publishes a retained "offline" status.
// Cancellation is observed between devices and during the inter-cycle wait.
func (s *PollingService) Run(ctx context.Context) error {
	s.log.LogInfo("🔄 Polling loop started; period=%v devices=%d", s.settings.Period, len(s.settings.Devices))

	for {
		start := s.now()
		s.RunOnce(ctx)
		if ctx.Err() != nil {
			break
		}
		if !s.wait(ctx, NextWait(s.settings.Period, s.now().Sub(start))) {
			break
		}
	}

	s.log.LogInfo("🛑 Polling loop stopping")
	if s.onStop != nil {
		s.onStop()
	}
	offCtx, cancel := context.WithTimeout(context.Background(), offlineTimeout)
	defer cancel()
	if err := s.publisher.PublishStatusOffline(offCtx); err != nil {
		s.log.LogError("⚠️ Error publishing offline status: %v", err)
		return err
	}
	return nil
}

// RunOnce performs one cycle over the device list.
// A failing device is reported and skipped; it never aborts the cycle.
func (s *PollingService) RunOnce(ctx context.Context) CycleStats {
	start := s.now()
	stats := CycleStats{}

	if len(s.settings.Devices) == 0 {
		s.log.LogWarn("⚠️ No devices configured; nothing to poll")
		return stats
	}

	for _, d := range s.settings.Devices {
		if ctx.Err() != nil {
			break
		}
		stats.Devices++

		if err := s.pollDevice(ctx, d); err != nil {
			stats.Failed++
			s.metrics.IncrementDeviceErrors(d.ID)
			if s.health != nil {
				s.health.RecordError()
			}
			s.errorHandler.Handle(ctx, fmt.Errorf("device %d: %w", d.ID, err))
		} else {
			stats.Published++
			s.metrics.IncrementDeviceReads(d.ID)
			if s.health != nil {
				s.health.RecordSuccess()
			}
		}

		if s.settings.DeviceDelay > 0 {
			if !s.wait(ctx, s.settings.DeviceDelay) {
				break
			}
		}
	}

	stats.Duration = s.now().Sub(start)
	s.metrics.IncrementCycles()
	s.metrics.ObserveCycleDuration(stats.Duration)
	s.log.LogDebug("📊 Cycle done: %s in %v", stats, stats.Duration)
	s.summarize(stats)
	return stats
}

// summarize logs totals every summaryInterval and starts a new health window
func (s *PollingService) summarize(stats CycleStats) {
	s.published += stats.Published
	s.failed += stats.Failed

	if s.now().Sub(s.lastSummary) < summaryInterval {
		return
	}
	s.log.LogInfo("📊 Summary - Published: %d, Failed: %d, Last %v", s.published, s.failed, summaryInterval)
	s.published = 0
	s.failed = 0
	s.lastSummary = s.now()
	if s.health != nil {
		s.health.ResetWindow()
	}
}

// pollDevice reads one device and publishes its record
func (s *PollingService) pollDevice(ctx context.Context, d config.Device) error {
	family, err := d.Validate()
	if err != nil {
		return err
	}

	m, err := s.reader.Read(ctx, reader.Target{
		DeviceID: d.ID,
		UnitID:   uint8(d.ID),
		Family:   family,
		Opener:   s.openers(d),
	})
	if err != nil {
		return err
	}
	if m.Valid() == 0 {
		s.log.LogWarn("⚠️ Device %d: no field could be read, publishing nulls", d.ID)
	}

	rec := meter.Record{
		DeviceID:     d.ID,
		Type:         family.Type,
		Name:         d.DisplayName(),
		Measurements: m,
		ReadAt:       s.now(),
	}

	if s.settings.DebugLog {
		s.logRecord(rec)
	}

	if err := s.publisher.PublishRecord(ctx, rec); err != nil {
		s.metrics.IncrementMQTTErrors()
		return err
	}
	s.metrics.IncrementMQTTPublishes()

	if s.sink != nil {
		if err := s.sink.Record(ctx, rec); err != nil {
			s.log.LogWarn("⚠️ History write failed for device %d: %v", d.ID, err)
		}
	}
	return nil
}

// logRecord dumps the whole record as indented JSON
func (s *PollingService) logRecord(rec meter.Record) {
	fields := map[string]interface{}{
		"deviceid": rec.DeviceID,
		"type":     rec.Type,
	}
	for name, v := range rec.Measurements.Values() {
		if v == nil {
			fields[name] = nil
		} else {
			fields[name] = *v
		}
	}
	out, err := json.MarshalIndent(map[string]interface{}{"measurements": fields}, "", "  ")
	if err != nil {
		s.log.LogDebug("measurements for device %d: %v", rec.DeviceID, err)
		return
	}
	s.log.LogInfo("%s", out)
}

// sleepContext waits for d or until ctx is done. It reports whether the full wait elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
