// Package volume holds the swim box fish are confined to.
package volume

import "riverfish.ai/internal/sim/mathx"

// Geometry is the fixed world snapshot the box is derived from each tick.
type Geometry struct {
	ShorelineX    float64 // min.x
	RiverbedY     float64 // min.y
	WaterSurfaceY float64 // max.y
	LeftZ         float64 // min.z
	RightZ        float64 // max.z

	// MinSpan is the smallest extent allowed on any axis.
	MinSpan float64
}

// Box is an axis-aligned swim volume. min.x/min.y/min.z/max.y/max.z come from Geometry,
// max.x tracks the camera distance.
type Box struct {
	Min mathx.Vec3
	Max mathx.Vec3
}

const defaultMinSpan = 1e-3

// Refresh recomputes the bounds from the camera distance and the fixed geometry.
// Inverted or collapsed axes are widened to MinSpan instead of failing.
func (b *Box) Refresh(cameraX float64, g Geometry) {
	span := g.MinSpan
	if !(span > 0) {
		span = defaultMinSpan
	}

	b.Min = mathx.Vec3{X: g.ShorelineX, Y: g.RiverbedY, Z: g.LeftZ}
	b.Max = mathx.Vec3{X: cameraX, Y: g.WaterSurfaceY, Z: g.RightZ}

	if !(b.Max.X >= b.Min.X+span) {
		b.Max.X = b.Min.X + span
	}
	if !(b.Max.Y >= b.Min.Y+span) {
		b.Max.Y = b.Min.Y + span
	}
	if !(b.Max.Z >= b.Min.Z+span) {
		b.Max.Z = b.Min.Z + span
	}
}

// Contains is an inclusive test on every axis.
func (b *Box) Contains(p mathx.Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Clamp projects p componentwise into [Min, Max].
func (b *Box) Clamp(p mathx.Vec3) mathx.Vec3 {
	return mathx.Vec3{
		X: mathx.Clamp(p.X, b.Min.X, b.Max.X),
		Y: mathx.Clamp(p.Y, b.Min.Y, b.Max.Y),
		Z: mathx.Clamp(p.Z, b.Min.Z, b.Max.Z),
	}
}

func (b *Box) Size() mathx.Vec3 { return b.Max.Sub(b.Min) }
