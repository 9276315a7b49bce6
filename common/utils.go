package common

import "math"

// Coalesce returns the first non-zero value, or the zero value if every value is zero.
// Used to let command line flags override configuration only when set.
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// ClampByte rounds and clamps a float into the 0..255 channel range.
func ClampByte(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// Clamp01 clamps v into [0, 1].
func Clamp01(v float32) float32 {
	return float32(math.Max(0, math.Min(1, float64(v))))
}
