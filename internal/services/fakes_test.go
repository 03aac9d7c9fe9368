package services

import (
	"context"
	"sync"
	"time"

	"meters-poller/internal/config"
	"meters-poller/internal/meter"
	"meters-poller/internal/reader"
	"meters-poller/internal/transport"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeReader returns fixed measurements and advances the clock per device
type fakeReader struct {
	clock   *fakeClock
	cost    time.Duration
	fail    map[int]error
	silent  map[int]bool // every field NaN
	targets []reader.Target
}

func (r *fakeReader) Read(ctx context.Context, t reader.Target) (meter.Measurements, error) {
	r.targets = append(r.targets, t)
	if r.clock != nil {
		r.clock.Advance(r.cost)
	}
	if err := r.fail[t.DeviceID]; err != nil {
		return meter.NewMeasurements(), err
	}
	m := meter.NewMeasurements()
	if r.silent[t.DeviceID] {
		return m, nil
	}
	m.Voltage = 230
	m.Frequency = 50
	return m, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	records   []meter.Record
	offline   int
	online    int
	diags     []int
	connected bool
	failFor   map[int]error
}

func (p *fakePublisher) PublishRecord(ctx context.Context, rec meter.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failFor[rec.DeviceID]; err != nil {
		return err
	}
	p.records = append(p.records, rec)
	return nil
}

func (p *fakePublisher) PublishStatusOffline(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offline++
	return ctx.Err()
}

func (p *fakePublisher) PublishStatusOnline(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online++
	return nil
}

func (p *fakePublisher) PublishDiagnostic(ctx context.Context, code int, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.diags = append(p.diags, code)
	return nil
}

func (p *fakePublisher) IsConnected() bool {
	return p.connected
}

func (p *fakePublisher) ids() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []int
	for _, r := range p.records {
		ids = append(ids, r.DeviceID)
	}
	return ids
}

type nopOpener struct {
	protocol transport.Protocol
}

func (o nopOpener) Open(ctx context.Context) (transport.Session, error) { return nil, nil }
func (o nopOpener) Protocol() transport.Protocol                        { return o.protocol }
func (o nopOpener) Endpoint() string                                    { return "nop" }

func openers(d config.Device) transport.Opener {
	return nopOpener{protocol: d.ProtocolOrDefault()}
}

type memorySink struct {
	records []meter.Record
}

func (s *memorySink) Record(ctx context.Context, rec meter.Record) error {
	s.records = append(s.records, rec)
	return nil
}

type countingHealth struct {
	ok, failed, resets int
}

func (h *countingHealth) RecordSuccess() { h.ok++ }
func (h *countingHealth) RecordError()   { h.failed++ }
func (h *countingHealth) ResetWindow()   { h.resets++ }

type readerFunc func(ctx context.Context, deviceID int)

// hookReader runs hook after each read
type hookReader struct {
	*fakeReader
	hook readerFunc
}

func (h *hookReader) Read(ctx context.Context, t reader.Target) (meter.Measurements, error) {
	m, err := h.fakeReader.Read(ctx, t)
	h.hook(ctx, t.DeviceID)
	return m, err
}
