package tank

import "riverfish.ai/internal/sim/tuning"

// TankMetrics is a thread-safe read-only view of key tank runtime signals.
// It is updated from the tank loop goroutine and read from HTTP handlers/tests.
type TankMetrics struct {
	Tick  uint64  `json:"tick"`
	Clock float64 `json:"clock"`

	Agents   int            `json:"agents"`
	Capacity int            `json:"capacity"`
	Active   map[string]int `json:"active"`

	Sessions      int    `json:"sessions"`
	IndexRebuilds uint64 `json:"index_rebuilds"`
	Caught        uint64 `json:"caught"`

	CameraX   float64    `json:"camera_x"`
	VolumeMin [3]float64 `json:"volume_min"`
	VolumeMax [3]float64 `json:"volume_max"`

	QueueDepths QueueDepths `json:"queue_depths"`

	// Behavior is the live fish tunables, for admin edits.
	Behavior tuning.Fish `json:"behavior"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Catch int `json:"catch"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

func (t *Tank) Metrics() TankMetrics {
	if t == nil {
		return TankMetrics{}
	}
	v := t.metrics.Load()
	if v == nil {
		return TankMetrics{}
	}
	m, ok := v.(TankMetrics)
	if !ok {
		return TankMetrics{}
	}
	return m
}

func (t *Tank) publishMetrics(tick uint64, stepMS float64) {
	m := TankMetrics{
		Tick:          tick,
		Clock:         t.clock,
		Active:        t.activeBySpecies(),
		Sessions:      len(t.sessions),
		IndexRebuilds: t.rebuilds,
		Caught:        t.caught,
		CameraX:       t.cameraX,
		VolumeMin:     t.box.Min.Array(),
		VolumeMax:     t.box.Max.Array(),
		QueueDepths: QueueDepths{
			Catch: len(t.catches),
			Join:  len(t.join),
			Leave: len(t.leave),
		},
		Behavior: t.tune.Fish,
		StepMS:   stepMS,
	}
	for _, pop := range t.pops {
		m.Agents += pop.ActiveCount()
		m.Capacity += pop.Capacity()
	}
	t.metrics.Store(m)
}
