package mathx

import "math"

// Eps guards normalize/divide against near-zero denominators.
const Eps = 1e-9

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FloorCell maps a coordinate onto an integer grid cell of the given size.
// size > 0
func FloorCell(v, size float64) int {
	return int(math.Floor(v / size))
}

func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
