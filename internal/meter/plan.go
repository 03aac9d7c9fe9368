package meter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// WriteTolerance is how close a current value must be to count as unchanged
const WriteTolerance = 1e-6

// Modbus unit id range a meter can be addressed by
const (
	MinUnitID = 1
	MaxUnitID = 247
)

// ValidUnitID reports whether v is a whole number in MinUnitID..MaxUnitID
func ValidUnitID(v float64) bool {
	return v == math.Trunc(v) && v >= MinUnitID && v <= MaxUnitID
}

// WriteOrder is the fixed order parameters are written in. The unit id goes
// first while the line settings still match the session; parity and baud
// go last because they drop the session.
var WriteOrder = []Field{FieldSlave, FieldParity, FieldBaud}

// WriteRequest holds the desired parameters. Nil fields are left alone.
type WriteRequest struct {
	Baud   *float64
	Parity *float64
	Slave  *float64
}

// Get returns the requested value for a field, if any
func (r WriteRequest) Get(f Field) (float64, bool) {
	var p *float64
	switch f {
	case FieldBaud:
		p = r.Baud
	case FieldParity:
		p = r.Parity
	case FieldSlave:
		p = r.Slave
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Action is what the plan does with one field
type Action int

const (
	ActionSkip Action = iota
	ActionUnchanged
	ActionWrite
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionUnchanged:
		return "unchanged"
	case ActionWrite:
		return "write"
	default:
		return "unknown"
	}
}

// PlannedWrite is one step of a write plan. Current and Desired are human values.
type PlannedWrite struct {
	Field   Field
	Address uint16
	Current float64
	Desired float64
	Action  Action
}

// PlanWrites compares the requested parameters to the current ones and returns
// one step per parameter in WriteOrder. It does no I/O.
func PlanWrites(m RegisterMap, current Params, req WriteRequest) []PlannedWrite {
	plan := make([]PlannedWrite, 0, len(WriteOrder))
	for _, f := range WriteOrder {
		addr, _ := m.HoldingAddress(f)
		cur, _ := current.Get(f)
		step := PlannedWrite{Field: f, Address: addr, Current: cur}

		desired, ok := req.Get(f)
		switch {
		case !ok:
			step.Action = ActionSkip
		case math.Abs(cur-desired) < WriteTolerance:
			step.Desired = desired
			step.Action = ActionUnchanged
		default:
			step.Desired = desired
			step.Action = ActionWrite
		}
		plan = append(plan, step)
	}
	return plan
}

// OutcomeStatus is the result of one planned step
type OutcomeStatus string

const (
	OutcomeWritten   OutcomeStatus = "written"
	OutcomeUnchanged OutcomeStatus = "unchanged"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeError     OutcomeStatus = "error"
)

// Outcome reports what happened to one parameter
type Outcome struct {
	Field  Field
	Status OutcomeStatus
	Value  float64
	Err    error
}

// String renders the outcome the way operators see it
func (o Outcome) String() string {
	switch o.Status {
	case OutcomeWritten, OutcomeUnchanged:
		return fmt.Sprintf("%s (%s)", o.Status, strconv.FormatFloat(o.Value, 'f', -1, 64))
	case OutcomeError:
		if o.Err == nil {
			return "ERROR"
		}
		return "ERROR: " + o.Err.Error()
	default:
		return string(o.Status)
	}
}

// WriteReport lists outcomes in WriteOrder and the unit id the meter answers to afterwards
type WriteReport struct {
	Outcomes []Outcome
	UnitID   uint8
}

// Get returns the outcome for a field
func (r WriteReport) Get(f Field) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Field == f {
			return o, true
		}
	}
	return Outcome{}, false
}

// HasErrors reports whether any step failed
func (r WriteReport) HasErrors() bool {
	for _, o := range r.Outcomes {
		if o.Status == OutcomeError {
			return true
		}
	}
	return false
}

// Map returns field -> outcome string
func (r WriteReport) Map() map[string]string {
	out := make(map[string]string, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out[string(o.Field)] = o.String()
	}
	return out
}

func (r WriteReport) String() string {
	parts := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		parts = append(parts, fmt.Sprintf("%s=%s", o.Field, o))
	}
	return strings.Join(parts, ", ")
}
