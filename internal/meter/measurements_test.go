package meter

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestRecordJSONNullsNaN(t *testing.T) {
	m := NewMeasurements()
	m.Set(FieldVoltage, 230)
	m.Set(FieldFrequency, 50)

	rec := Record{DeviceID: 5, Type: "dds661", Name: "Kitchen", Measurements: m}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got := string(data)
	want := `{"id":5,"type":"dds661","name":"Kitchen","voltage":230,"current":null,"p_active":null,"pf":null,"freq":50,"e_total":null,"e_pos":null,"e_rev":null}`
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestMeasurementsAccessors(t *testing.T) {
	m := NewMeasurements()
	if m.Valid() != 0 {
		t.Errorf("Expected 0 valid fields, got %d", m.Valid())
	}
	m.Set(FieldEnergyExport, 1.5)
	m.Set(Field("bogus"), 3)
	if m.EnergyExport != 1.5 {
		t.Errorf("Expected e_rev 1.5, got %v", m.EnergyExport)
	}
	if !math.IsNaN(m.Get(Field("bogus"))) {
		t.Error("Expected NaN for unknown field")
	}

	values := m.Values()
	if values["e_rev"] == nil || *values["e_rev"] != 1.5 {
		t.Errorf("Expected e_rev value, got %v", values["e_rev"])
	}
	if values["voltage"] != nil {
		t.Error("Expected nil voltage")
	}

	data, _ := json.Marshal(Params{Baud: 9600, Parity: 0, Slave: 1})
	if !strings.Contains(string(data), `"baud":9600`) {
		t.Errorf("Unexpected params JSON %s", data)
	}
}
