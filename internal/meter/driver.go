package meter

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"

	"meters-poller/internal/codec"
	"meters-poller/internal/errors"
	"meters-poller/internal/logger"
	"meters-poller/internal/transport"
)

// FieldHook observes every measurement field read, successful or not
type FieldHook func(field Field, value float64, err error)

// Driver talks to one meter. It is not safe for concurrent use: the unit id
// changes after a successful slave write.
type Driver struct {
	family   *Family
	opener   transport.Opener
	unit     uint8
	deviceID int
	log      logger.ILogger
	hook     FieldHook
}

// DriverOption configures a Driver
type DriverOption func(*Driver)

// WithLogger sets the logger (default: global logger)
func WithLogger(l logger.ILogger) DriverOption {
	return func(d *Driver) { d.log = l }
}

// WithDeviceID sets the configured id used in log lines (default: unit id)
func WithDeviceID(id int) DriverOption {
	return func(d *Driver) { d.deviceID = id }
}

// WithFieldHook registers a per-field observer
func WithFieldHook(h FieldHook) DriverOption {
	return func(d *Driver) { d.hook = h }
}

// NewDriver creates a driver for the meter at unit on the given transport
func NewDriver(family *Family, opener transport.Opener, unit uint8, opts ...DriverOption) *Driver {
	d := &Driver{
		family:   family,
		opener:   opener,
		unit:     unit,
		deviceID: int(unit),
		log:      logger.NewStandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// UnitID returns the unit id the driver currently addresses
func (d *Driver) UnitID() uint8 {
	return d.unit
}

// Family returns the driver's device family
func (d *Driver) Family() *Family {
	return d.family
}

// open establishes a session, making sure failures surface as LinkError
func (d *Driver) open(ctx context.Context) (transport.Session, error) {
	s, err := d.opener.Open(ctx)
	if err != nil {
		if errors.IsLinkError(err) {
			return nil, err
		}
		return nil, errors.NewLinkError("open", err, string(d.opener.Protocol()), d.opener.Endpoint())
	}
	return s, nil
}

func (d *Driver) closeSession(s transport.Session) {
	if err := s.Close(); err != nil {
		logger.LogDebug("Unit %d: close session: %v", d.unit, err)
	}
}

// ReadParams reads baud, parity and slave. Any field failure fails the call.
func (d *Driver) ReadParams(ctx context.Context) (Params, error) {
	s, err := d.open(ctx)
	if err != nil {
		return Params{}, err
	}
	defer d.closeSession(s)

	return d.readParams(s)
}

func (d *Driver) readParams(s transport.Session) (Params, error) {
	var p Params
	for _, r := range d.family.Map.Holding {
		regs, err := s.ReadHoldingRegisters(d.unit, r.Address, codec.RegistersPerValue)
		if err != nil {
			return Params{}, errors.NewFieldReadError(string(r.Field), r.Address, d.unit, err)
		}
		v, err := codec.FromRegisters(regs)
		if err != nil {
			return Params{}, errors.NewFieldReadError(string(r.Field), r.Address, d.unit, err)
		}

		switch r.Field {
		case FieldBaud:
			p.Baud = d.family.Codec.DecodeBaud(v)
		case FieldParity:
			p.Parity = v
		case FieldSlave:
			p.Slave = v
		}
	}
	return p, nil
}

// WriteParams reads the current parameters, then writes the requested ones in
// WriteOrder over the same session. A failed write is reported and the
// remaining steps still run. After a successful slave write every later
// request, in this call and after it, uses the new unit id.
func (d *Driver) WriteParams(ctx context.Context, req WriteRequest) (WriteReport, error) {
	s, err := d.open(ctx)
	if err != nil {
		return WriteReport{UnitID: d.unit}, err
	}
	defer d.closeSession(s)

	current, err := d.readParams(s)
	if err != nil {
		return WriteReport{UnitID: d.unit}, fmt.Errorf("read current params: %w", err)
	}

	report := WriteReport{Outcomes: make([]Outcome, 0, len(WriteOrder))}
	for _, step := range PlanWrites(d.family.Map, current, req) {
		switch step.Action {
		case ActionSkip:
			report.Outcomes = append(report.Outcomes, Outcome{Field: step.Field, Status: OutcomeSkipped})
			continue
		case ActionUnchanged:
			report.Outcomes = append(report.Outcomes, Outcome{Field: step.Field, Status: OutcomeUnchanged, Value: step.Desired})
			continue
		}

		if step.Field == FieldSlave && !ValidUnitID(step.Desired) {
			werr := errors.NewFieldWriteError(string(step.Field), step.Address, d.unit,
				fmt.Errorf("unit id %v is not a whole number in %d..%d", step.Desired, MinUnitID, MaxUnitID))
			d.log.LogError("Device %d write '%s' refused: %v", d.deviceID, step.Field, werr.Err)
			report.Outcomes = append(report.Outcomes, Outcome{Field: step.Field, Status: OutcomeError, Value: step.Desired, Err: werr})
			continue
		}

		raw := step.Desired
		if step.Field == FieldBaud {
			raw = d.family.Codec.EncodeBaud(step.Desired)
		}

		if err := s.WriteMultipleRegisters(d.unit, step.Address, codec.Registers(raw)); err != nil {
			werr := errors.NewFieldWriteError(string(step.Field), step.Address, d.unit, err)
			d.log.LogError("Device %d write '%s' failed: %v", d.deviceID, step.Field, err)
			report.Outcomes = append(report.Outcomes, Outcome{Field: step.Field, Status: OutcomeError, Value: step.Desired, Err: werr})
			continue
		}

		report.Outcomes = append(report.Outcomes, Outcome{Field: step.Field, Status: OutcomeWritten, Value: step.Desired})
		if step.Field == FieldSlave {
			d.unit = uint8(step.Desired)
		}
	}

	report.UnitID = d.unit
	return report, nil
}

// ReadMeasurements reads all eight input fields over one session. A failed
// field is NaN; only a failure to open the session fails the call.
func (d *Driver) ReadMeasurements(ctx context.Context) (Measurements, error) {
	s, err := d.open(ctx)
	if err != nil {
		return NewMeasurements(), err
	}
	defer d.closeSession(s)

	m := NewMeasurements()
	for _, r := range d.family.Map.Input {
		v, _ := d.ReadField(s, r.Field)
		m.Set(r.Field, v)
	}
	return m, nil
}

// ReadField reads one measurement field on an open session. On failure it logs,
// notifies the field hook and returns NaN with a FieldReadError.
func (d *Driver) ReadField(s transport.Session, f Field) (float64, error) {
	addr, ok := d.family.Map.InputAddress(f)
	if !ok {
		err := errors.NewFieldReadError(string(f), 0, d.unit, stderrors.New("no such field"))
		d.fieldDone(f, math.NaN(), err)
		return math.NaN(), err
	}

	regs, err := s.ReadInputRegisters(d.unit, addr, codec.RegistersPerValue)
	if err == nil {
		var v float64
		if v, err = codec.FromRegisters(regs); err == nil {
			d.fieldDone(f, v, nil)
			return v, nil
		}
	}

	rerr := errors.NewFieldReadError(string(f), addr, d.unit, err)
	d.log.LogError("Device %d (%s) read '%s' failed: %v", d.deviceID, d.family.Type, f, err)
	d.fieldDone(f, math.NaN(), rerr)
	return math.NaN(), rerr
}

// FieldFailed records a field that could not be attempted, e.g. because its session did not open
func (d *Driver) FieldFailed(f Field, err error) {
	d.log.LogError("Device %d (%s) read '%s' failed: %v", d.deviceID, d.family.Type, f, err)
	d.fieldDone(f, math.NaN(), err)
}

func (d *Driver) fieldDone(f Field, v float64, err error) {
	if d.hook != nil {
		d.hook(f, v, err)
	}
}

// Open exposes the driver's session establishment to read strategies
func (d *Driver) Open(ctx context.Context) (transport.Session, error) {
	return d.open(ctx)
}

// Close closes a session opened with Open
func (d *Driver) Close(s transport.Session) {
	d.closeSession(s)
}
