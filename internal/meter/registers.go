// Package meter holds the DDS661 and SDM230 register maps and the driver that
// reads and writes them. Every field is one float32 in two consecutive registers.
package meter

// Field names a logical register field. Measurement field names double as the
// JSON keys of the publish record.
type Field string

// Holding (parameter) fields
const (
	FieldBaud   Field = "baud"
	FieldParity Field = "parity"
	FieldSlave  Field = "slave"
)

// Input (measurement) fields
const (
	FieldVoltage      Field = "voltage"
	FieldCurrent      Field = "current"
	FieldActivePower  Field = "p_active"
	FieldPowerFactor  Field = "pf"
	FieldFrequency    Field = "freq"
	FieldEnergyTotal  Field = "e_total"
	FieldEnergyImport Field = "e_pos"
	FieldEnergyExport Field = "e_rev"
)

// MeasurementFields lists the input fields in read order
var MeasurementFields = []Field{
	FieldVoltage,
	FieldCurrent,
	FieldActivePower,
	FieldPowerFactor,
	FieldFrequency,
	FieldEnergyTotal,
	FieldEnergyImport,
	FieldEnergyExport,
}

// Register is the start address of one 2-register float field
type Register struct {
	Field   Field
	Address uint16
}

// RegisterMap is a device family's fixed address table
type RegisterMap struct {
	Holding [3]Register // baud, parity, slave
	Input   [8]Register // MeasurementFields order
}

// HoldingAddress returns the holding-register address of a parameter field
func (m RegisterMap) HoldingAddress(f Field) (uint16, bool) {
	for _, r := range m.Holding {
		if r.Field == f {
			return r.Address, true
		}
	}
	return 0, false
}

// InputAddress returns the input-register address of a measurement field
func (m RegisterMap) InputAddress(f Field) (uint16, bool) {
	for _, r := range m.Input {
		if r.Field == f {
			return r.Address, true
		}
	}
	return 0, false
}

var dds661Map = RegisterMap{
	Holding: [3]Register{
		{FieldBaud, 0x0000},
		{FieldParity, 0x0002},
		{FieldSlave, 0x0008},
	},
	Input: [8]Register{
		{FieldVoltage, 0x0000},
		{FieldCurrent, 0x0008},
		{FieldActivePower, 0x0012},
		{FieldPowerFactor, 0x002A},
		{FieldFrequency, 0x0036},
		{FieldEnergyTotal, 0x0100},
		{FieldEnergyImport, 0x0102},
		{FieldEnergyExport, 0x0103},
	},
}

var sdm230Map = RegisterMap{
	Holding: [3]Register{
		{FieldBaud, 0x001C},
		{FieldParity, 0x0012},
		{FieldSlave, 0x0014},
	},
	Input: [8]Register{
		{FieldVoltage, 0x0000},
		{FieldCurrent, 0x0006},
		{FieldActivePower, 0x000C},
		{FieldPowerFactor, 0x001E},
		{FieldFrequency, 0x0046},
		{FieldEnergyTotal, 0x0156},
		{FieldEnergyImport, 0x0048},
		{FieldEnergyExport, 0x004A},
	},
}
