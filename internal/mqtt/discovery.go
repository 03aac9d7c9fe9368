package mqtt

import (
	"fmt"
	"strings"

	"meters-poller/internal/config"
	"meters-poller/internal/meter"
)

// Availability is one entry of a sensor's availability list
type Availability struct {
	Topic string `json:"topic"`
}

// DeviceInfo groups sensors under one Home Assistant device
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	Name         string   `json:"name"`
	Area         string   `json:"area,omitempty"`
}

// SensorConfig is a Home Assistant discovery payload (abbreviated keys)
type SensorConfig struct {
	Name              string         `json:"name"`
	UniqueID          string         `json:"uniq_id"`
	StateTopic        string         `json:"stat_t"`
	Availability      []Availability `json:"avty"`
	ValueTemplate     string         `json:"val_tpl"`
	Device            DeviceInfo     `json:"dev"`
	UnitOfMeasurement string         `json:"unit_of_meas,omitempty"`
	DeviceClass       string         `json:"dev_cla,omitempty"`
	StateClass        string         `json:"stat_cla,omitempty"`
}

// Sensor describes how one measurement field appears in Home Assistant
type Sensor struct {
	Field       meter.Field
	Label       string
	Unit        string
	DeviceClass string
	StateClass  string
}

// Sensors lists the measurement fields in publish order
var Sensors = []Sensor{
	{meter.FieldVoltage, "Voltage", "V", "voltage", "measurement"},
	{meter.FieldCurrent, "Current", "A", "current", "measurement"},
	{meter.FieldActivePower, "Active Power", "W", "power", "measurement"},
	{meter.FieldPowerFactor, "Power Factor", "", "", "measurement"},
	{meter.FieldFrequency, "Frequency", "Hz", "frequency", "measurement"},
	{meter.FieldEnergyTotal, "Energy Total", "kWh", "energy", "total_increasing"},
	{meter.FieldEnergyImport, "Energy Import", "kWh", "energy", "total_increasing"},
	{meter.FieldEnergyExport, "Energy Export", "kWh", "energy", "total_increasing"},
}

// DiscoveryMessage is one retained discovery publish
type DiscoveryMessage struct {
	Topic   string
	Payload SensorConfig
}

// BuildDiscovery returns the discovery messages for one device. Manufacturer
// and model come from the device family; unknown types fall back to the tag.
func BuildDiscovery(t Topics, area string, d config.Device) []DiscoveryMessage {
	typeTag := d.TypeTag()
	name := d.DisplayName()
	uniqueBase := fmt.Sprintf("%s_%d", typeTag, d.ID)

	manufacturer := "Eastron"
	model := strings.ToUpper(typeTag)
	if family, err := meter.Lookup(typeTag); err == nil {
		manufacturer = family.Manufacturer
		model = family.Model
	}

	device := DeviceInfo{
		Identifiers:  []string{uniqueBase},
		Manufacturer: manufacturer,
		Model:        model,
		Name:         name,
		Area:         area,
	}
	stateTopic := t.State(TopicKey(name, d.ID))
	availability := []Availability{{Topic: t.Status()}}

	out := make([]DiscoveryMessage, 0, len(Sensors))
	for _, s := range Sensors {
		field := string(s.Field)
		out = append(out, DiscoveryMessage{
			Topic: t.Discovery(typeTag, d.ID, field),
			Payload: SensorConfig{
				Name:              name + " " + s.Label,
				UniqueID:          t.UniqueID(typeTag, d.ID, field),
				StateTopic:        stateTopic,
				Availability:      availability,
				ValueTemplate:     "{{ value_json." + field + " | float }}",
				Device:            device,
				UnitOfMeasurement: s.Unit,
				DeviceClass:       s.DeviceClass,
				StateClass:        s.StateClass,
			},
		})
	}
	return out
}
