package tank

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"sync/atomic"

	"riverfish.ai/internal/persistence/snapshot"
	"riverfish.ai/internal/sim/bias"
	"riverfish.ai/internal/sim/mathx"
	"riverfish.ai/internal/sim/spatial"
	"riverfish.ai/internal/sim/steering"
	"riverfish.ai/internal/sim/tuning"
	"riverfish.ai/internal/sim/volume"
)

type Config struct {
	ID            string
	Tuning        tuning.Tuning
	Species       []*SpeciesRuntime
	CatalogDigest string

	// Seed overrides Tuning.Seed when non-zero.
	Seed int64

	Logger *log.Logger
}

// Tank is a single-threaded simulation of one swim volume.
// All agent state must be accessed only from the tank loop goroutine.
type Tank struct {
	cfg    Config
	tune   tuning.Tuning
	logger *log.Logger
	rng    *rand.Rand

	tick    atomic.Uint64
	clock   float64
	cameraX float64
	box     volume.Box

	pops  []*Population
	byKey map[string]*Population

	grid       *spatial.Grid[*Agent]
	indexAcc   float64
	indexDirty bool
	rebuilds   uint64
	nbuf       []spatial.Entry[*Agent]
	others     []mathx.Vec3

	nextAgentID uint64
	caught      uint64

	// Removals since the last tick log entry.
	pendingRemovals []RemovalNotice

	sessions    map[string]*session
	nextSession uint64

	join        chan JoinRequest
	leave       chan string
	catches     chan CatchEnvelope
	camera      chan float64
	behavior    chan behaviorReq
	snapshotReq chan snapshotReq
	stop        chan struct{}

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	catchLogger CatchLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type CatchLogger interface {
	WriteCatch(n RemovalNotice) error
}

type TickLogEntry struct {
	Tick     uint64          `json:"tick"`
	Clock    float64         `json:"clock"`
	DT       float64         `json:"dt"`
	CameraX  float64         `json:"camera_x"`
	Rebuilt  bool            `json:"rebuilt"`
	Active   map[string]int  `json:"active"`
	Removals []RemovalNotice `json:"catches,omitempty"`

	// IndexRebuilds is the cumulative rebuild count, including unlogged ticks.
	IndexRebuilds uint64 `json:"index_rebuilds"`
}

// RemovalNotice is emitted for every caught agent.
type RemovalNotice struct {
	Tick    uint64  `json:"tick"`
	Clock   float64 `json:"clock"`
	Species string  `json:"species"`
	AgentID uint64  `json:"agent_id"`
	Slot    int     `json:"slot"`
	Active  int     `json:"active"`
}

func discardLogger() *log.Logger { return log.New(io.Discard, "", 0) }

// New builds a tank and spawns every species to capacity.
func New(cfg Config) (*Tank, error) {
	tune := cfg.Tuning.Clone()
	tune.Normalize()
	if err := tune.Validate(); err != nil {
		return nil, err
	}
	if cfg.ID == "" {
		cfg.ID = "tank"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = discardLogger()
	}
	seed := tune.Seed
	if cfg.Seed != 0 {
		seed = cfg.Seed
	}
	cfg.Seed = seed

	t := &Tank{
		cfg:         cfg,
		tune:        tune,
		logger:      logger,
		rng:         rand.New(rand.NewSource(seed)),
		cameraX:     tune.World.DefaultCameraX,
		byKey:       map[string]*Population{},
		grid:        spatial.NewGrid[*Agent](tune.Fish.SeparationRadius),
		indexDirty:  true,
		sessions:    map[string]*session{},
		join:        make(chan JoinRequest, 64),
		leave:       make(chan string, 64),
		catches:     make(chan CatchEnvelope, 256),
		camera:      make(chan float64, 16),
		behavior:    make(chan behaviorReq, 8),
		snapshotReq: make(chan snapshotReq, 8),
		stop:        make(chan struct{}),
	}
	t.box.Refresh(t.cameraX, tune.Geometry())

	for _, sp := range cfg.Species {
		if sp == nil {
			continue
		}
		if _, dup := t.byKey[sp.Key()]; dup {
			return nil, fmt.Errorf("duplicate species %q", sp.Key())
		}
		pop := NewPopulation(sp, sp.Count)
		pop.Spawn(sp.Count, func() *Agent { return t.newAgent(sp) })
		t.pops = append(t.pops, pop)
		t.byKey[sp.Key()] = pop
	}
	t.publishMetrics(0, 0)
	return t, nil
}

func (t *Tank) SetTickLogger(l TickLogger)                    { t.tickLogger = l }
func (t *Tank) SetCatchLogger(l CatchLogger)                  { t.catchLogger = l }
func (t *Tank) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { t.snapshotSink = ch }

func (t *Tank) ID() string {
	if t == nil {
		return ""
	}
	return t.cfg.ID
}

func (t *Tank) TickRateHz() int {
	if t == nil {
		return 0
	}
	return t.tune.TickRateHz
}

func (t *Tank) CurrentTick() uint64 { return t.tick.Load() }

// Tuning returns a copy of the tank-owned tunables.
func (t *Tank) Tuning() tuning.Tuning { return t.tune.Clone() }

// Volume is the swim box as of the last tick. Loop goroutine only.
func (t *Tank) Volume() volume.Box { return t.box }

// Populations lists populations in catalog order. Loop goroutine only.
func (t *Tank) Populations() []*Population { return t.pops }

// Population looks up a species population. Loop goroutine only.
func (t *Tank) Population(key string) (*Population, bool) {
	p, ok := t.byKey[key]
	return p, ok
}

func (t *Tank) newAgent(sp *SpeciesRuntime) *Agent {
	f := t.tune.Fish
	jitter := 1 + (t.rng.Float64()*2-1)*f.SpeedJitter
	lim := steering.Limits{
		SpeedMin: f.SpeedMin * sp.SpeedScale * jitter,
		SpeedMax: f.SpeedMax * sp.SpeedScale * jitter,
	}
	pos := bias.Point(t.rng, &t.box, sp.Bias)
	target := bias.Point(t.rng, &t.box, sp.Bias)
	speed := mathx.Lerp(lim.Floor(), lim.SpeedMax, t.rng.Float64())

	t.nextAgentID++
	a := &Agent{
		ID:             t.nextAgentID,
		Species:        sp,
		Pos:            pos,
		Vel:            target.Sub(pos).Normalize().Scale(speed),
		Target:         target,
		NextRetargetAt: t.clock + t.retargetDelay(),
		Limits:         lim,
		Rot:            mathx.QuatIdentity,
	}
	a.face()
	return a
}

func (t *Tank) retargetDelay() float64 {
	f := t.tune.Fish
	return mathx.Lerp(f.RetargetMinS, f.RetargetMaxS, t.rng.Float64())
}
