package visual

import "math"

// Noise1D is deterministic 1D value noise in [-1,1]: hashed lattice values
// with smoothstep interpolation. The same input always yields the same
// output, which keeps the mapper pure.
func Noise1D(x float64) float64 {
	x0 := math.Floor(x)
	t := x - x0

	a := latticeValue(int64(x0))
	b := latticeValue(int64(x0) + 1)

	t = t * t * (3 - 2*t)
	return a + (b-a)*t
}

func latticeValue(n int64) float64 {
	h := uint64(n) * 0x9E3779B97F4A7C15
	h ^= h >> 29
	h *= 0xBF58476D1CE4E5B9
	h ^= h >> 32
	// Map the top 53 bits onto [-1,1).
	return float64(h>>11)/float64(1<<52) - 1
}
