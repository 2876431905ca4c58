package mathx

import "math"

// Vec3 is a float64 world-space vector.
type Vec3 struct {
	X, Y, Z float64
}

func V(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }

func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }

func (a Vec3) Scale(s float64) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }

func (a Vec3) Dot(b Vec3) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func (a Vec3) LenSq() float64 { return a.X*a.X + a.Y*a.Y + a.Z*a.Z }

func (a Vec3) Len() float64 { return math.Sqrt(a.LenSq()) }

// Normalize returns the unit vector, or the zero vector when |a| <= Eps.
func (a Vec3) Normalize() Vec3 {
	l := a.Len()
	if l <= Eps {
		return Vec3{}
	}
	inv := 1.0 / l
	return Vec3{a.X * inv, a.Y * inv, a.Z * inv}
}

// ClampLen caps the magnitude at max, keeping direction.
func (a Vec3) ClampLen(max float64) Vec3 {
	l2 := a.LenSq()
	if l2 <= max*max {
		return a
	}
	return a.Scale(max / math.Sqrt(l2))
}

func (a Vec3) DistSq(b Vec3) float64 { return a.Sub(b).LenSq() }

func (a Vec3) Array() [3]float64 { return [3]float64{a.X, a.Y, a.Z} }

func FromArray(v [3]float64) Vec3 { return Vec3{v[0], v[1], v[2]} }

func (a Vec3) IsFinite() bool {
	return !math.IsNaN(a.X) && !math.IsNaN(a.Y) && !math.IsNaN(a.Z) &&
		!math.IsInf(a.X, 0) && !math.IsInf(a.Y, 0) && !math.IsInf(a.Z, 0)
}
