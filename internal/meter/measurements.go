package meter

import (
	"encoding/json"
	"math"
	"time"
)

// Params is the meter's parameter state. Baud is a rate in the human domain;
// Parity is the raw device code.
type Params struct {
	Baud   float64 `json:"baud"`
	Parity float64 `json:"parity"`
	Slave  float64 `json:"slave"`
}

// Get returns a parameter by field
func (p Params) Get(f Field) (float64, bool) {
	switch f {
	case FieldBaud:
		return p.Baud, true
	case FieldParity:
		return p.Parity, true
	case FieldSlave:
		return p.Slave, true
	}
	return 0, false
}

// Measurements is one full read. A field that failed to read is NaN.
type Measurements struct {
	Voltage      float64
	Current      float64
	ActivePower  float64
	PowerFactor  float64
	Frequency    float64
	EnergyTotal  float64
	EnergyImport float64
	EnergyExport float64
}

// NewMeasurements returns a record with every field NaN
func NewMeasurements() Measurements {
	nan := math.NaN()
	return Measurements{nan, nan, nan, nan, nan, nan, nan, nan}
}

func (m *Measurements) ptr(f Field) *float64 {
	switch f {
	case FieldVoltage:
		return &m.Voltage
	case FieldCurrent:
		return &m.Current
	case FieldActivePower:
		return &m.ActivePower
	case FieldPowerFactor:
		return &m.PowerFactor
	case FieldFrequency:
		return &m.Frequency
	case FieldEnergyTotal:
		return &m.EnergyTotal
	case FieldEnergyImport:
		return &m.EnergyImport
	case FieldEnergyExport:
		return &m.EnergyExport
	}
	return nil
}

// Get returns a measurement by field
func (m Measurements) Get(f Field) float64 {
	if p := m.ptr(f); p != nil {
		return *p
	}
	return math.NaN()
}

// Set stores a measurement by field; unknown fields are ignored
func (m *Measurements) Set(f Field, v float64) {
	if p := m.ptr(f); p != nil {
		*p = v
	}
}

// Valid counts the fields that were read successfully
func (m Measurements) Valid() int {
	n := 0
	for _, f := range MeasurementFields {
		if !math.IsNaN(m.Get(f)) {
			n++
		}
	}
	return n
}

// Values returns the measurements keyed by field name, NaN as nil
func (m Measurements) Values() map[string]*float64 {
	out := make(map[string]*float64, len(MeasurementFields))
	for _, f := range MeasurementFields {
		out[string(f)] = nullable(m.Get(f))
	}
	return out
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Record is what gets published for one device per cycle
type Record struct {
	DeviceID     int
	Type         string
	Name         string
	Measurements Measurements
	ReadAt       time.Time
}

type recordJSON struct {
	ID      int      `json:"id"`
	Type    string   `json:"type"`
	Name    string   `json:"name"`
	Voltage *float64 `json:"voltage"`
	Current *float64 `json:"current"`
	PActive *float64 `json:"p_active"`
	PF      *float64 `json:"pf"`
	Freq    *float64 `json:"freq"`
	ETotal  *float64 `json:"e_total"`
	EPos    *float64 `json:"e_pos"`
	ERev    *float64 `json:"e_rev"`
}

// MarshalJSON encodes the publish record. JSON has no NaN, so failed fields are null.
func (r Record) MarshalJSON() ([]byte, error) {
	m := r.Measurements
	return json.Marshal(recordJSON{
		ID:      r.DeviceID,
		Type:    r.Type,
		Name:    r.Name,
		Voltage: nullable(m.Voltage),
		Current: nullable(m.Current),
		PActive: nullable(m.ActivePower),
		PF:      nullable(m.PowerFactor),
		Freq:    nullable(m.Frequency),
		ETotal:  nullable(m.EnergyTotal),
		EPos:    nullable(m.EnergyImport),
		ERev:    nullable(m.EnergyExport),
	})
}
