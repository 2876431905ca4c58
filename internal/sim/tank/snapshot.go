package tank

import (
	"fmt"

	"riverfish.ai/internal/persistence/snapshot"
	"riverfish.ai/internal/sim/mathx"
	"riverfish.ai/internal/sim/steering"
)

func (t *Tank) ExportSnapshot(tick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header:        snapshot.Header{Version: snapshot.Version, TankID: t.cfg.ID, Tick: tick},
		Seed:          t.cfg.Seed,
		TickRate:      t.tune.TickRateHz,
		Clock:         t.clock,
		CameraX:       t.cameraX,
		CatalogDigest: t.cfg.CatalogDigest,
		Counters:      snapshot.CountersV1{NextAgent: t.nextAgentID, Caught: t.caught},
	}
	for _, pop := range t.pops {
		pv := snapshot.PopulationV1{Key: pop.species.Key(), Capacity: pop.Capacity()}
		for _, a := range pop.Active() {
			pv.Agents = append(pv.Agents, snapshot.AgentV1{
				ID:             a.ID,
				Pos:            a.Pos.Array(),
				Vel:            a.Vel.Array(),
				Target:         a.Target.Array(),
				NextRetargetAt: a.NextRetargetAt,
				SpeedMin:       a.Limits.SpeedMin,
				SpeedMax:       a.Limits.SpeedMax,
				Rot:            a.Rot.Array(),
			})
		}
		snap.Species = append(snap.Species, pv)
	}
	return snap
}

// ImportSnapshot replaces populations with the snapshot's agents. Species
// missing from the snapshot keep their freshly spawned agents; capacities
// come from the current catalog. Loop goroutine only, before Run.
func (t *Tank) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	t.cameraX = snap.CameraX
	t.box.Refresh(t.cameraX, t.tune.Geometry())
	for _, pv := range snap.Species {
		pop, ok := t.byKey[pv.Key]
		if !ok {
			t.logger.Printf("snapshot: dropping unknown species %s (%d agents)", pv.Key, len(pv.Agents))
			continue
		}
		agents := make([]*Agent, 0, len(pv.Agents))
		for _, av := range pv.Agents {
			agents = append(agents, &Agent{
				ID:             av.ID,
				Species:        pop.species,
				Pos:            t.box.Clamp(mathx.FromArray(av.Pos)),
				Vel:            mathx.FromArray(av.Vel),
				Target:         mathx.FromArray(av.Target),
				NextRetargetAt: av.NextRetargetAt,
				Limits:         steering.Limits{SpeedMin: av.SpeedMin, SpeedMax: av.SpeedMax},
				Rot:            mathx.Quat{X: av.Rot[0], Y: av.Rot[1], Z: av.Rot[2], W: av.Rot[3]},
			})
		}
		if len(agents) > pop.Capacity() {
			t.logger.Printf("snapshot: %s has %d agents, capacity %d", pv.Key, len(agents), pop.Capacity())
		}
		pop.restore(agents)
	}
	t.tick.Store(snap.Header.Tick + 1)
	t.clock = snap.Clock
	if snap.Counters.NextAgent > t.nextAgentID {
		t.nextAgentID = snap.Counters.NextAgent
	}
	t.caught = snap.Counters.Caught
	t.indexDirty = true
	t.publishMetrics(snap.Header.Tick, 0)
	return nil
}
