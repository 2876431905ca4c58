package mathx

import "math"

// Quat is a unit rotation quaternion (x, y, z, w).
type Quat struct {
	X, Y, Z, W float64
}

var QuatIdentity = Quat{W: 1}

// QuatFromUnitVectors returns the shortest rotation taking unit vector from onto unit vector to.
func QuatFromUnitVectors(from, to Vec3) Quat {
	r := from.Dot(to) + 1
	var q Quat
	if r < Eps {
		// Opposite vectors: rotate 180 degrees around any axis orthogonal to from.
		if math.Abs(from.X) > math.Abs(from.Z) {
			q = Quat{X: -from.Y, Y: from.X, Z: 0, W: 0}
		} else {
			q = Quat{X: 0, Y: -from.Z, Z: from.Y, W: 0}
		}
	} else {
		c := from.Cross(to)
		q = Quat{X: c.X, Y: c.Y, Z: c.Z, W: r}
	}
	return q.Normalize()
}

func (q Quat) Normalize() Quat {
	l := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if l <= Eps {
		return QuatIdentity
	}
	inv := 1.0 / l
	return Quat{q.X * inv, q.Y * inv, q.Z * inv, q.W * inv}
}

// Rotate applies q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

func (q Quat) Array() [4]float64 { return [4]float64{q.X, q.Y, q.Z, q.W} }
