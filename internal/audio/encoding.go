// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"
	"strings"
)

// Encoding is the native sample format a stream delivers.
type Encoding int

const (
	EncodingUnknown Encoding = iota
	EncodingFloat32
	EncodingInt16
	EncodingUint16
	EncodingInt32
	EncodingUint8
)

func (e Encoding) String() string {
	switch e {
	case EncodingFloat32:
		return "float32"
	case EncodingInt16:
		return "int16"
	case EncodingUint16:
		return "uint16"
	case EncodingInt32:
		return "int32"
	case EncodingUint8:
		return "uint8"
	default:
		return "unknown"
	}
}

// ParseEncoding converts a config name (case-insensitive) to an Encoding. The
// empty string and "auto" mean "whatever the device prefers" and return
// EncodingUnknown without error.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return EncodingUnknown, nil
	case "float32", "f32":
		return EncodingFloat32, nil
	case "int16", "i16":
		return EncodingInt16, nil
	case "uint16", "u16":
		return EncodingUint16, nil
	case "int32", "i32":
		return EncodingInt32, nil
	case "uint8", "u8":
		return EncodingUint8, nil
	default:
		return EncodingUnknown, fmt.Errorf("unknown sample format: '%s'", name)
	}
}

// The Normalize functions map one native sample to [-1, 1]. They never fail:
// fixed-point values are divided by the magnitude of the type's most negative
// value (unsigned types are re-centred on their midpoint first), and floats
// outside the range are clamped, with NaN mapped to silence.

func NormalizeFloat32(s float32) float32 {
	switch {
	case math.IsNaN(float64(s)):
		return 0
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}

func NormalizeInt16(s int16) float32 {
	return float32(s) / 32768
}

func NormalizeUint16(s uint16) float32 {
	return (float32(s) - 32768) / 32768
}

func NormalizeInt32(s int32) float32 {
	return float32(float64(s) / 2147483648)
}

func NormalizeUint8(s uint8) float32 {
	return (float32(s) - 128) / 128
}
