package bias

import (
	"math"
	"math/rand"
	"testing"

	"riverfish.ai/internal/sim/volume"
)

func box() *volume.Box {
	b := &volume.Box{}
	b.Refresh(20, volume.Geometry{ShorelineX: 0, RiverbedY: -4, WaterSurfaceY: 0, LeftZ: -5, RightZ: 5, MinSpan: 0.1})
	return b
}

func TestPoint_ZeroSigmaIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	b := box()
	p := Params{X: Axis{Enabled: true, Mean: 0.25}, Y: Axis{Enabled: true, Mean: 0.5}}
	for i := 0; i < 20; i++ {
		pt := Point(rng, b, p)
		if pt.X != 5 || pt.Y != -2 {
			t.Fatalf("zero sigma should pin to mean: got %+v", pt)
		}
		if !b.Contains(pt) {
			t.Fatalf("point outside box: %+v", pt)
		}
	}
}

func TestPoint_AlwaysInsideAndBiased(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	b := box()
	p := Params{X: Axis{Enabled: true, Mean: 0.1, Sigma: 0.5}, Y: Axis{Enabled: true, Mean: 0.9, Sigma: 0.05}}
	var sumY float64
	const n = 2000
	for i := 0; i < n; i++ {
		pt := Point(rng, b, p)
		if !b.Contains(pt) {
			t.Fatalf("point outside box: %+v", pt)
		}
		sumY += pt.Y
	}
	meanY := sumY / n
	if math.Abs(meanY-(-0.4)) > 0.1 {
		t.Fatalf("y should cluster near 90%% of the column, mean=%v", meanY)
	}
}

func TestPoint_UnbiasedAxisIsUniform(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	b := box()
	var sumX float64
	const n = 4000
	for i := 0; i < n; i++ {
		sumX += Point(rng, b, Params{}).X
	}
	if m := sumX / n; math.Abs(m-10) > 0.5 {
		t.Fatalf("uniform x mean=%v want ~10", m)
	}
}
