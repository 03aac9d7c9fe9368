// Package codec converts IEEE-754 float32 values to and from pairs of 16-bit
// Modbus registers.
//
// Word order is fixed to ABCD: the high-order word is transmitted first and each
// word is big-endian internally. Both meter families use this layout.
package codec

import (
	"fmt"
	"math"
)

// RegistersPerValue is the number of 16-bit registers occupied by one float32
const RegistersPerValue = 2

// Encode converts value to float32 and splits its bit pattern into (hi, lo).
// There is no range check: values outside float32 range round to ±Inf.
func Encode(value float64) (hi, lo uint16) {
	bits := math.Float32bits(float32(value))
	return uint16(bits >> 16), uint16(bits)
}

// Decode rebuilds the float32 carried by hi and lo and widens it to float64
func Decode(hi, lo uint16) float64 {
	bits := uint32(hi)<<16 | uint32(lo)
	return float64(math.Float32frombits(bits))
}

// Registers returns the register pair for value as a slice, high word first
func Registers(value float64) []uint16 {
	hi, lo := Encode(value)
	return []uint16{hi, lo}
}

// FromRegisters decodes a register slice read for a single float field
func FromRegisters(regs []uint16) (float64, error) {
	if len(regs) < RegistersPerValue {
		return math.NaN(), fmt.Errorf("insufficient registers for float32: got %d, need %d", len(regs), RegistersPerValue)
	}
	return Decode(regs[0], regs[1]), nil
}
