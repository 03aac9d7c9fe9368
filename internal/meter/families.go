package meter

import (
	"fmt"
	"sort"
	"strings"

	"meters-poller/internal/errors"
)

// Family is everything that differs between meter models
type Family struct {
	Type         string // config tag, lower case
	Manufacturer string
	Model        string
	Map          RegisterMap
	Codec        EnumCodec
}

// DDS661 stores baud rates directly; parity 0=Even, 1=Odd, 2=None
var DDS661 = &Family{
	Type:         "dds661",
	Manufacturer: "DDS",
	Model:        "DDS661",
	Map:          dds661Map,
	Codec: identityCodec{parity: map[float64]string{
		0: "Even",
		1: "Odd",
		2: "None",
	}},
}

// SDM230 is the Eastron single-phase meter with enum-coded baud
var SDM230 = &Family{
	Type:         "sdm230",
	Manufacturer: "Eastron",
	Model:        "SDM230",
	Map:          sdm230Map,
	Codec:        sdm230Codec{},
}

var families = map[string]*Family{
	DDS661.Type: DDS661,
	SDM230.Type: SDM230,
}

// DefaultType is used when a device or command names no type
const DefaultType = "dds661"

// Lookup resolves a device-type tag, case-insensitively
func Lookup(tag string) (*Family, error) {
	key := strings.ToLower(strings.TrimSpace(tag))
	if f, ok := families[key]; ok {
		return f, nil
	}
	return nil, errors.NewConfigError("resolve device type",
		fmt.Errorf("unsupported device type '%s' (known: %s)", tag, strings.Join(Types(), ", ")), "type")
}

// Types returns the known type tags, sorted
func Types() []string {
	out := make([]string, 0, len(families))
	for t := range families {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
