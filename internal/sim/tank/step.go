package tank

import (
	"time"

	"riverfish.ai/internal/sim/bias"
	"riverfish.ai/internal/sim/steering"
)

type StepInput struct {
	// DT is the elapsed time in seconds, already clamped by the caller.
	DT      float64
	CameraX float64
}

type StepReport struct {
	Tick    uint64
	Clock   float64
	DT      float64
	Rebuilt bool
}

// Step advances the tank by one tick. Order: volume refresh, index rebuild
// (at the refresh cadence), then per agent retarget, steer, integrate, clamp,
// and finally pose emission.
func (t *Tank) Step(in StepInput) StepReport {
	stepStart := time.Now()
	nowTick := t.tick.Load()

	dt := in.DT
	if !(dt > 0) {
		dt = 0
	}
	t.clock += dt
	t.cameraX = in.CameraX

	t.box.Refresh(in.CameraX, t.tune.Geometry())
	rebuilt := t.maybeRebuildIndex(dt)

	for _, pop := range t.pops {
		for _, a := range pop.Active() {
			t.steer(a, dt)
		}
		pop.syncPoses()
	}

	t.tick.Add(1)

	t.broadcastFrame(nowTick)
	t.maybeLogTick(nowTick, dt, rebuilt)
	t.maybeSnapshot(nowTick)
	t.publishMetrics(nowTick, float64(time.Since(stepStart).Microseconds())/1000.0)

	return StepReport{Tick: nowTick, Clock: t.clock, DT: dt, Rebuilt: rebuilt}
}

func (t *Tank) maybeRebuildIndex(dt float64) bool {
	t.indexAcc += dt
	if !t.indexDirty && t.indexAcc < 1/t.tune.IndexRefreshHz {
		return false
	}
	t.indexAcc = 0
	t.indexDirty = false
	t.rebuildIndex()
	return true
}

// rebuildIndex reinserts every active agent and refreshes the held
// separation forces.
func (t *Tank) rebuildIndex() {
	f := t.tune.Fish
	if t.grid.CellSize() != f.SeparationRadius {
		t.grid.SetCellSize(f.SeparationRadius)
	}
	t.grid.Reset()
	for _, pop := range t.pops {
		for _, a := range pop.Active() {
			t.grid.Insert(a.Pos, a)
		}
	}
	for _, pop := range t.pops {
		for _, a := range pop.Active() {
			t.nbuf = t.grid.Neighbors(a.Pos, t.nbuf[:0])
			t.others = t.others[:0]
			for _, e := range t.nbuf {
				if e.Item == a {
					continue
				}
				t.others = append(t.others, e.Pos)
			}
			a.sep = steering.Separation(a.Pos, t.others, f.SeparationRadius, f.SeparationStrength)
		}
	}
	t.rebuilds++
}

func (t *Tank) steer(a *Agent, dt float64) {
	if t.needsRetarget(a) {
		t.retarget(a)
	}
	force := steering.Compose(t.tune.Fish.Accel,
		steering.Seek(a.Pos, a.Vel, a.Target, a.Limits.SpeedMax),
		a.sep,
		steering.Containment(a.Pos, &t.box),
	)
	a.Pos, a.Vel = steering.Integrate(a.Pos, a.Vel, force, dt, a.Limits, &t.box)
	a.face()
}

func (t *Tank) needsRetarget(a *Agent) bool {
	reach := t.tune.Fish.TargetReachDist
	if a.Pos.DistSq(a.Target) <= reach*reach {
		return true
	}
	if t.clock >= a.NextRetargetAt {
		return true
	}
	return !t.box.Contains(a.Target)
}

func (t *Tank) retarget(a *Agent) {
	a.Target = bias.Point(t.rng, &t.box, a.Species.Bias)
	a.NextRetargetAt = t.clock + t.retargetDelay()
}

func (t *Tank) maybeLogTick(nowTick uint64, dt float64, rebuilt bool) {
	if t.tickLogger == nil {
		t.pendingRemovals = t.pendingRemovals[:0]
		return
	}
	if nowTick%uint64(t.tune.LogEveryTicks) != 0 {
		return
	}
	entry := TickLogEntry{
		Tick:    nowTick,
		Clock:   t.clock,
		DT:      dt,
		CameraX: t.cameraX,
		Rebuilt: rebuilt,
		Active:  t.activeBySpecies(),

		IndexRebuilds: t.rebuilds,
	}
	if len(t.pendingRemovals) > 0 {
		entry.Removals = append([]RemovalNotice(nil), t.pendingRemovals...)
	}
	t.pendingRemovals = t.pendingRemovals[:0]
	if err := t.tickLogger.WriteTick(entry); err != nil {
		t.logger.Printf("tick log: %v", err)
	}
}

func (t *Tank) activeBySpecies() map[string]int {
	m := make(map[string]int, len(t.pops))
	for _, pop := range t.pops {
		m[pop.species.Key()] = pop.ActiveCount()
	}
	return m
}
