// Package bias draws points biased toward a species' preferred region of the swim box.
package bias

import (
	"riverfish.ai/internal/sim/mathx"
	"riverfish.ai/internal/sim/volume"
)

// Axis is a fractional preference along one box axis.
// Mean is in [0,1] of the span; Sigma is a fraction of the span. Sigma == 0 pins the draw to Mean.
type Axis struct {
	Enabled bool
	Mean    float64
	Sigma   float64
}

// Params bias X (shore distance) and Y (water column). Z is always uniform.
type Params struct {
	X Axis
	Y Axis
}

// Source is the random source the sampler needs; *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	NormFloat64() float64
}

// Point draws a point inside box according to p.
func Point(rng Source, box *volume.Box, p Params) mathx.Vec3 {
	return mathx.Vec3{
		X: sampleAxis(rng, box.Min.X, box.Max.X, p.X),
		Y: sampleAxis(rng, box.Min.Y, box.Max.Y, p.Y),
		Z: mathx.Lerp(box.Min.Z, box.Max.Z, rng.Float64()),
	}
}

func sampleAxis(rng Source, lo, hi float64, a Axis) float64 {
	span := hi - lo
	if !a.Enabled {
		return mathx.Lerp(lo, hi, rng.Float64())
	}
	v := lo + a.Mean*span
	if a.Sigma > 0 {
		v += rng.NormFloat64() * a.Sigma * span
	}
	return mathx.Clamp(v, lo, hi)
}
