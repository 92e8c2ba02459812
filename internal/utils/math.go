package utils

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Clamp constrains v to the range [minVal, maxVal].
func Clamp[T constraints.Ordered](v, minVal, maxVal T) T {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// Lerp blends linearly from current toward target by factor (0..1).
func Lerp(current, target, factor float64) float64 {
	return current + (target-current)*Clamp(factor, 0.0, 1.0)
}

// Approach moves current toward target with a frame-rate independent
// exponential step. rate is "per second"; dt is the frame delta in seconds.
func Approach(current, target, rate, dt float64) float64 {
	if rate <= 0 || dt <= 0 {
		return current
	}
	return Lerp(current, target, 1-math.Exp(-rate*dt))
}

// ClampIndex bounds idx to the valid range for a slice of length.
func ClampIndex(idx, length int) int {
	if length <= 0 {
		return 0
	}
	if idx < 0 {
		return 0
	}
	if idx >= length {
		return length - 1
	}
	return idx
}
