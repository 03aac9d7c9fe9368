// Package reader produces one Measurements record per device using either a
// bulk read (one session) or a sequential read (one transaction per field).
package reader

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"meters-poller/internal/logger"
	"meters-poller/internal/meter"
	"meters-poller/internal/transport"
)

// Mode selects the read strategy
type Mode string

const (
	ModeBulk       Mode = "bulk"
	ModeSequential Mode = "sequential"
)

// DefaultFieldDelay is the pause after each sequential field read
const DefaultFieldDelay = 50 * time.Millisecond

// ParseMode accepts "bulk" or "sequential" (case-insensitive)
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeBulk:
		return ModeBulk, nil
	case ModeSequential, "":
		return ModeSequential, nil
	}
	return "", fmt.Errorf("unknown read mode '%s' (expected bulk or sequential)", s)
}

// Options configures a Reader
type Options struct {
	Mode       Mode
	FieldDelay time.Duration // after every sequential field, 0 disables
	StepLog    bool          // one structured line per sequential field
}

// Target is one device to read
type Target struct {
	DeviceID int
	UnitID   uint8
	Family   *meter.Family
	Opener   transport.Opener
}

// FieldObserver is notified of every field result, e.g. for metrics
type FieldObserver interface {
	ObserveField(deviceID int, field string, err error)
}

// Reader executes the configured read strategy
type Reader struct {
	opts     Options
	log      logger.ILogger
	observer FieldObserver
	sleep    func(time.Duration)
}

// Option configures a Reader
type Option func(*Reader)

// WithLogger sets the logger
func WithLogger(l logger.ILogger) Option {
	return func(r *Reader) { r.log = l }
}

// WithObserver sets the field observer
func WithObserver(o FieldObserver) Option {
	return func(r *Reader) { r.observer = o }
}

// WithSleep replaces time.Sleep for the inter-field delay
func WithSleep(sleep func(time.Duration)) Option {
	return func(r *Reader) { r.sleep = sleep }
}

// New creates a Reader
func New(opts Options, options ...Option) *Reader {
	if opts.Mode == "" {
		opts.Mode = ModeSequential
	}
	if opts.FieldDelay < 0 {
		opts.FieldDelay = 0
	}
	r := &Reader{
		opts:  opts,
		log:   logger.NewStandardLogger(),
		sleep: time.Sleep,
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Options returns the reader's options
func (r *Reader) Options() Options {
	return r.opts
}

// Read produces the device's measurements. Field failures become NaN.
// TCP targets always take the shared-session sequential path.
func (r *Reader) Read(ctx context.Context, t Target) (meter.Measurements, error) {
	d := meter.NewDriver(t.Family, t.Opener, t.UnitID,
		meter.WithLogger(r.log),
		meter.WithDeviceID(t.DeviceID),
		meter.WithFieldHook(r.hook(t.DeviceID)),
	)

	if t.Opener.Protocol() == transport.ProtocolTCP {
		return r.readShared(ctx, d, t)
	}
	if r.opts.Mode == ModeBulk {
		return d.ReadMeasurements(ctx)
	}
	return r.readPerField(ctx, d, t)
}

func (r *Reader) hook(deviceID int) meter.FieldHook {
	if r.observer == nil {
		return nil
	}
	return func(f meter.Field, _ float64, err error) {
		r.observer.ObserveField(deviceID, string(f), err)
	}
}

// readShared reuses one session for every field. A connect failure fails the device.
func (r *Reader) readShared(ctx context.Context, d *meter.Driver, t Target) (meter.Measurements, error) {
	s, err := d.Open(ctx)
	if err != nil {
		return meter.NewMeasurements(), err
	}
	defer d.Close(s)

	m := meter.NewMeasurements()
	for _, f := range meter.MeasurementFields {
		v, _ := d.ReadField(s, f)
		m.Set(f, v)
		r.afterField(t, f, v)
	}
	return m, nil
}

// readPerField opens a fresh serial session for every field; some serial
// adapters only answer reliably this way. An open failure costs only that field.
func (r *Reader) readPerField(ctx context.Context, d *meter.Driver, t Target) (meter.Measurements, error) {
	m := meter.NewMeasurements()
	for _, f := range meter.MeasurementFields {
		v := math.NaN()
		s, err := d.Open(ctx)
		if err != nil {
			d.FieldFailed(f, err)
		} else {
			v, _ = d.ReadField(s, f)
			d.Close(s)
		}
		m.Set(f, v)
		r.afterField(t, f, v)
	}
	return m, nil
}

func (r *Reader) afterField(t Target, f meter.Field, v float64) {
	if r.opts.StepLog {
		var value interface{} = v
		if math.IsNaN(v) {
			value = "NaN"
		}
		r.log.LogFields(logger.LogLevelInfo, "read-step", map[string]interface{}{
			"device": t.DeviceID,
			"type":   t.Family.Type,
			"field":  string(f),
			"value":  value,
		})
	}
	if r.opts.FieldDelay > 0 {
		r.sleep(r.opts.FieldDelay)
	}
}
