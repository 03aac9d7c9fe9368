package meter

import (
	stderrors "errors"
	"testing"

	"meters-poller/internal/errors"
)

func TestLookup(t *testing.T) {
	f, err := Lookup(" SDM230 ")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if f != SDM230 {
		t.Errorf("Expected SDM230 family, got %s", f.Type)
	}

	_, err = Lookup("sdm630")
	var cfgErr *errors.ConfigError
	if !stderrors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigError, got %v", err)
	}
	if cfgErr.Field != "type" {
		t.Errorf("Expected field 'type', got '%s'", cfgErr.Field)
	}
}

// TestRegisterAddresses pins the address table of both families
func TestRegisterAddresses(t *testing.T) {
	tests := []struct {
		field  Field
		dds661 uint16
		sdm230 uint16
	}{
		{FieldVoltage, 0x0000, 0x0000},
		{FieldCurrent, 0x0008, 0x0006},
		{FieldActivePower, 0x0012, 0x000C},
		{FieldPowerFactor, 0x002A, 0x001E},
		{FieldFrequency, 0x0036, 0x0046},
		{FieldEnergyTotal, 0x0100, 0x0156},
		{FieldEnergyImport, 0x0102, 0x0048},
		{FieldEnergyExport, 0x0103, 0x004A},
	}
	for _, tt := range tests {
		if a, _ := DDS661.Map.InputAddress(tt.field); a != tt.dds661 {
			t.Errorf("DDS661 %s: expected 0x%04X, got 0x%04X", tt.field, tt.dds661, a)
		}
		if a, _ := SDM230.Map.InputAddress(tt.field); a != tt.sdm230 {
			t.Errorf("SDM230 %s: expected 0x%04X, got 0x%04X", tt.field, tt.sdm230, a)
		}
	}

	holding := []struct {
		field  Field
		dds661 uint16
		sdm230 uint16
	}{
		{FieldBaud, 0x0000, 0x001C},
		{FieldParity, 0x0002, 0x0012},
		{FieldSlave, 0x0008, 0x0014},
	}
	for _, tt := range holding {
		if a, _ := DDS661.Map.HoldingAddress(tt.field); a != tt.dds661 {
			t.Errorf("DDS661 %s: expected 0x%04X, got 0x%04X", tt.field, tt.dds661, a)
		}
		if a, _ := SDM230.Map.HoldingAddress(tt.field); a != tt.sdm230 {
			t.Errorf("SDM230 %s: expected 0x%04X, got 0x%04X", tt.field, tt.sdm230, a)
		}
	}
}

func TestEnumCodecs(t *testing.T) {
	c := SDM230.Codec
	for code, baud := range map[float64]float64{0: 2400, 1: 4800, 2: 9600, 5: 1200} {
		if got := c.DecodeBaud(code); got != baud {
			t.Errorf("DecodeBaud(%v): expected %v, got %v", code, baud, got)
		}
		if got := c.EncodeBaud(baud); got != code {
			t.Errorf("EncodeBaud(%v): expected %v, got %v", baud, code, got)
		}
	}
	// Unknown values pass through
	if got := c.DecodeBaud(7); got != 7 {
		t.Errorf("Expected unknown code to pass through, got %v", got)
	}
	if got := c.EncodeBaud(19200); got != 19200 {
		t.Errorf("Expected unknown rate to pass through, got %v", got)
	}
	if got := c.DescribeParity(3); got != "N,2 stop" {
		t.Errorf("Expected 'N,2 stop', got %q", got)
	}
	if got := c.DescribeParity(9); got != "unknown (9)" {
		t.Errorf("Expected 'unknown (9)', got %q", got)
	}

	if got := DDS661.Codec.DecodeBaud(9600); got != 9600 {
		t.Errorf("Expected identity baud, got %v", got)
	}
	if got := DDS661.Codec.DescribeParity(2); got != "None" {
		t.Errorf("Expected 'None', got %q", got)
	}
}
