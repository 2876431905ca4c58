package mathx

import (
	"math"
	"testing"
)

func TestNormalize_ZeroIsGuarded(t *testing.T) {
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Fatalf("normalize zero: got %+v", got)
	}
	got := V(3, 0, 4).Normalize()
	if math.Abs(got.Len()-1) > 1e-12 {
		t.Fatalf("expected unit length, got %v", got.Len())
	}
}

func TestClampLen(t *testing.T) {
	v := V(6, 8, 0).ClampLen(5)
	if math.Abs(v.Len()-5) > 1e-12 {
		t.Fatalf("clamped len=%v want 5", v.Len())
	}
	if v.X <= 0 || v.Y <= 0 {
		t.Fatalf("direction lost: %+v", v)
	}
	short := V(1, 0, 0)
	if short.ClampLen(5) != short {
		t.Fatalf("short vector should be unchanged")
	}
}

func TestFloorCell_Negative(t *testing.T) {
	if FloorCell(-0.1, 1) != -1 {
		t.Fatalf("FloorCell(-0.1) should be -1")
	}
	if FloorCell(1.99, 1) != 1 {
		t.Fatalf("FloorCell(1.99) should be 1")
	}
}

func TestQuatFromUnitVectors_RotatesForwardOntoDirection(t *testing.T) {
	cases := []struct{ from, to Vec3 }{
		{V(0, 0, 1), V(1, 0, 0)},
		{V(1, 0, 0), V(0, 1, 0)},
		{V(0, 0, 1), V(0, 0, -1)},
		{V(1, 0, 0), V(1, 0, 0)},
		{V(0, 0, 1), V(1, 1, 1).Normalize()},
	}
	for _, c := range cases {
		q := QuatFromUnitVectors(c.from, c.to)
		got := q.Rotate(c.from)
		if got.Sub(c.to).Len() > 1e-9 {
			t.Fatalf("rotate %+v -> %+v: got %+v", c.from, c.to, got)
		}
	}
}
