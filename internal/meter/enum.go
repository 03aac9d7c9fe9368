package meter

import "strconv"

// EnumCodec translates parameter registers between device codes and human values
type EnumCodec interface {
	// DecodeBaud maps a raw baud register value to a baud rate
	DecodeBaud(raw float64) float64
	// EncodeBaud maps a baud rate to the raw register value
	EncodeBaud(baud float64) float64
	// DescribeParity names a raw parity register value
	DescribeParity(code float64) string
}

// identityCodec stores baud rates directly
type identityCodec struct {
	parity map[float64]string
}

func (c identityCodec) DecodeBaud(raw float64) float64 { return raw }

func (c identityCodec) EncodeBaud(baud float64) float64 { return baud }

func (c identityCodec) DescribeParity(code float64) string {
	return describe(c.parity, code)
}

// sdm230Codec stores the baud rate as an enum code.
// Unknown codes and rates pass through unchanged.
type sdm230Codec struct{}

var sdm230BaudFromCode = map[float64]float64{
	0: 2400,
	1: 4800,
	2: 9600,
	5: 1200,
}

var sdm230BaudToCode = map[float64]float64{
	2400: 0,
	4800: 1,
	9600: 2,
	1200: 5,
}

var sdm230Parity = map[float64]string{
	0: "N,1 stop",
	1: "E,1 stop",
	2: "O,1 stop",
	3: "N,2 stop",
}

func (sdm230Codec) DecodeBaud(raw float64) float64 {
	if baud, ok := sdm230BaudFromCode[raw]; ok {
		return baud
	}
	return raw
}

func (sdm230Codec) EncodeBaud(baud float64) float64 {
	if code, ok := sdm230BaudToCode[baud]; ok {
		return code
	}
	return baud
}

func (sdm230Codec) DescribeParity(code float64) string {
	return describe(sdm230Parity, code)
}

func describe(table map[float64]string, code float64) string {
	if s, ok := table[code]; ok {
		return s
	}
	return "unknown (" + strconv.FormatFloat(code, 'g', -1, 64) + ")"
}
