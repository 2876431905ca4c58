package tank

import (
	"riverfish.ai/internal/sim/mathx"
	"riverfish.ai/internal/sim/steering"
)

// Agent is one fish. Agents are owned by the tank loop goroutine.
type Agent struct {
	ID      uint64
	Species *SpeciesRuntime

	Pos    mathx.Vec3
	Vel    mathx.Vec3
	Target mathx.Vec3

	// NextRetargetAt is a tank-clock deadline in seconds.
	NextRetargetAt float64
	Limits         steering.Limits

	Rot mathx.Quat

	// sep is recomputed on index rebuilds and held in between.
	sep  mathx.Vec3
	slot int
}

// Slot reports the agent's current slot; ok is false once it was caught.
func (a *Agent) Slot() (int, bool) {
	if a == nil || a.slot < 0 {
		return -1, false
	}
	return a.slot, true
}

// Pose is the outbound transform for one active agent.
type Pose struct {
	Slot int
	ID   uint64
	Pos  mathx.Vec3
	Rot  mathx.Quat
}

func (a *Agent) pose() Pose {
	return Pose{Slot: a.slot, ID: a.ID, Pos: a.Pos, Rot: a.Rot}
}

// face points the species forward axis along the velocity. Near-zero
// velocity keeps the previous orientation.
func (a *Agent) face() {
	dir := a.Vel.Normalize()
	if dir.LenSq() == 0 {
		return
	}
	a.Rot = mathx.QuatFromUnitVectors(a.Species.Forward, dir)
}
