// Package steering computes the per-fish forces and integrates them.
// Everything here is a pure function of its inputs.
package steering

import (
	"math"

	"riverfish.ai/internal/sim/mathx"
	"riverfish.ai/internal/sim/volume"
)

const (
	SeekIntensity   = 1.0
	ContainmentGain = 6.0

	// MinSpeedFraction softens the lower speed clamp to a fraction of the max speed.
	MinSpeedFraction = 0.9
)

// Seek steers toward target at speedMax. Zero when already at the target.
func Seek(pos, vel, target mathx.Vec3, speedMax float64) mathx.Vec3 {
	d := target.Sub(pos)
	if d.LenSq() <= mathx.Eps*mathx.Eps {
		return mathx.Vec3{}
	}
	desired := d.Normalize().Scale(speedMax)
	return desired.Sub(vel).Scale(SeekIntensity)
}

// Separation sums normalize(self-other)/dist² over others within radius, scaled by strength.
// Coincident points (including self) contribute nothing.
func Separation(self mathx.Vec3, others []mathx.Vec3, radius, strength float64) mathx.Vec3 {
	r2 := radius * radius
	var sum mathx.Vec3
	for _, o := range others {
		diff := self.Sub(o)
		d2 := diff.LenSq()
		if d2 <= mathx.Eps || d2 > r2 {
			continue
		}
		sum = sum.Add(diff.Normalize().Scale(1 / d2))
	}
	return sum.Scale(strength)
}

// Containment pushes back by the penetration depth on every face the point is outside of.
// Zero while inside the box.
func Containment(pos mathx.Vec3, box *volume.Box) mathx.Vec3 {
	var f mathx.Vec3
	f.X = penetration(pos.X, box.Min.X, box.Max.X)
	f.Y = penetration(pos.Y, box.Min.Y, box.Max.Y)
	f.Z = penetration(pos.Z, box.Min.Z, box.Max.Z)
	return f.Scale(ContainmentGain)
}

func penetration(v, lo, hi float64) float64 {
	if v < lo {
		return lo - v
	}
	if v > hi {
		return -(v - hi)
	}
	return 0
}

// Compose sums the forces first and clamps the total to accel.
func Compose(accel float64, forces ...mathx.Vec3) mathx.Vec3 {
	var sum mathx.Vec3
	for _, f := range forces {
		sum = sum.Add(f)
	}
	return sum.ClampLen(accel)
}

// Limits are the per-fish speed bounds fixed at spawn.
type Limits struct {
	SpeedMin float64
	SpeedMax float64
}

// Floor is the effective lower speed clamp.
func (l Limits) Floor() float64 {
	return math.Min(l.SpeedMin, MinSpeedFraction*l.SpeedMax)
}

// ClampSpeed keeps |vel| within [Floor, SpeedMax]. A zero velocity has no direction and is left alone.
func (l Limits) ClampSpeed(vel mathx.Vec3) mathx.Vec3 {
	s := vel.Len()
	if s <= mathx.Eps {
		return vel
	}
	lo := l.Floor()
	switch {
	case s > l.SpeedMax:
		return vel.Scale(l.SpeedMax / s)
	case s < lo:
		return vel.Scale(lo / s)
	}
	return vel
}

// Integrate applies force for dt, clamps speed, advances position and projects it into box.
func Integrate(pos, vel, force mathx.Vec3, dt float64, lim Limits, box *volume.Box) (mathx.Vec3, mathx.Vec3) {
	vel = lim.ClampSpeed(vel.Add(force.Scale(dt)))
	pos = box.Clamp(pos.Add(vel.Scale(dt)))
	return pos, vel
}
