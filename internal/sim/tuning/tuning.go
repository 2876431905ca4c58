package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"riverfish.ai/internal/sim/volume"
)

type Tuning struct {
	TickRateHz         int     `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	MaxDT              float64 `yaml:"max_dt" json:"max_dt"`
	IndexRefreshHz     float64 `yaml:"index_refresh_hz" json:"index_refresh_hz"`
	LogEveryTicks      int     `yaml:"log_every_ticks" json:"log_every_ticks"`
	SnapshotEveryTicks int     `yaml:"snapshot_every_ticks" json:"snapshot_every_ticks"`
	Seed               int64   `yaml:"seed" json:"seed"`

	World    World    `yaml:"world" json:"world"`
	Fish     Fish     `yaml:"fish" json:"fish"`
	Scales   Scales   `yaml:"scales" json:"scales"`
	Strata   Strata   `yaml:"strata" json:"strata"`
	Fallback Fallback `yaml:"fallback" json:"fallback"`
}

// World is the fixed geometry of the swim box. Only max.x moves (with the camera).
type World struct {
	ShorelineX     float64 `yaml:"shoreline_x" json:"shoreline_x"`
	RiverbedY      float64 `yaml:"riverbed_y" json:"riverbed_y"`
	WaterSurfaceY  float64 `yaml:"water_surface_y" json:"water_surface_y"`
	LeftZ          float64 `yaml:"left_z" json:"left_z"`
	RightZ         float64 `yaml:"right_z" json:"right_z"`
	MinSpan        float64 `yaml:"min_span" json:"min_span"`
	DefaultCameraX float64 `yaml:"default_camera_x" json:"default_camera_x"`
}

// Fish are the global behaviour tunables shared by every species.
type Fish struct {
	SpeedMin           float64 `yaml:"speed_min" json:"speed_min"`
	SpeedMax           float64 `yaml:"speed_max" json:"speed_max"`
	SpeedJitter        float64 `yaml:"speed_jitter" json:"speed_jitter"`
	Accel              float64 `yaml:"accel" json:"accel"`
	SeparationRadius   float64 `yaml:"separation_radius" json:"separation_radius"`
	SeparationStrength float64 `yaml:"separation_strength" json:"separation_strength"`
	RetargetMinS       float64 `yaml:"retarget_min_s" json:"retarget_min_s"`
	RetargetMaxS       float64 `yaml:"retarget_max_s" json:"retarget_max_s"`
	TargetReachDist    float64 `yaml:"target_reach_dist" json:"target_reach_dist"`
}

// Scales map species class names onto numbers.
type Scales struct {
	Size      map[string]float64 `yaml:"size" json:"size"`
	Speed     map[string]float64 `yaml:"speed" json:"speed"`
	Abundance map[string]int     `yaml:"abundance" json:"abundance"`
}

// Band is a fractional mean and sigma along one box axis.
type Band struct {
	Mean  float64 `yaml:"mean" json:"mean"`
	Sigma float64 `yaml:"sigma" json:"sigma"`
}

type Strata struct {
	Shore  map[string]Band `yaml:"shore" json:"shore"`
	Column map[string]Band `yaml:"column" json:"column"`
}

// Fallback sizes the primitive substituted for a species whose model is unavailable.
type Fallback struct {
	Shape  string  `yaml:"shape" json:"shape"`
	Length float64 `yaml:"length" json:"length"`
	Radius float64 `yaml:"radius" json:"radius"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:         60,
		MaxDT:              0.1,
		IndexRefreshHz:     30,
		LogEveryTicks:      60,
		SnapshotEveryTicks: 0,
		Seed:               1337,
		World: World{
			ShorelineX:     0,
			RiverbedY:      -6,
			WaterSurfaceY:  0,
			LeftZ:          -20,
			RightZ:         20,
			MinSpan:        0.5,
			DefaultCameraX: 30,
		},
		Fish: Fish{
			SpeedMin:           0.6,
			SpeedMax:           2.2,
			SpeedJitter:        0.15,
			Accel:              3.0,
			SeparationRadius:   1.2,
			SeparationStrength: 1.0,
			RetargetMinS:       2,
			RetargetMaxS:       6,
			TargetReachDist:    0.6,
		},
		Scales: Scales{
			Size:      map[string]float64{"small": 0.6, "medium": 1.0, "large": 1.6},
			Speed:     map[string]float64{"slow": 0.7, "normal": 1.0, "fast": 1.4},
			Abundance: map[string]int{"rare": 4, "uncommon": 10, "common": 24},
		},
		Strata: Strata{
			Shore: map[string]Band{
				"near": {Mean: 0.15, Sigma: 0.08},
				"mid":  {Mean: 0.5, Sigma: 0.12},
				"deep": {Mean: 0.85, Sigma: 0.08},
			},
			Column: map[string]Band{
				"surface":  {Mean: 0.85, Sigma: 0.08},
				"midwater": {Mean: 0.5, Sigma: 0.12},
				"bottom":   {Mean: 0.12, Sigma: 0.06},
			},
		},
		Fallback: Fallback{Shape: "capsule", Length: 0.8, Radius: 0.18},
	}
}

// Load overlays the yaml file on Defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Normalize repairs values that would stall the tick loop or divide by zero.
func (t *Tuning) Normalize() {
	d := Defaults()
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.MaxDT <= 0 {
		t.MaxDT = d.MaxDT
	}
	if t.IndexRefreshHz <= 0 {
		t.IndexRefreshHz = d.IndexRefreshHz
	}
	if t.LogEveryTicks <= 0 {
		t.LogEveryTicks = d.LogEveryTicks
	}
	if t.SnapshotEveryTicks < 0 {
		t.SnapshotEveryTicks = 0
	}
	if t.World.MinSpan <= 0 {
		t.World.MinSpan = d.World.MinSpan
	}
	t.Fish.Normalize()
	if t.Fallback.Shape == "" {
		t.Fallback.Shape = d.Fallback.Shape
	}
	if t.Fallback.Length <= 0 {
		t.Fallback.Length = d.Fallback.Length
	}
	if t.Fallback.Radius <= 0 {
		t.Fallback.Radius = d.Fallback.Radius
	}
}

// Normalize repairs behaviour values; shared by file loads and live edits.
func (f *Fish) Normalize() {
	d := Defaults().Fish
	if f.SpeedMax <= 0 {
		f.SpeedMax = d.SpeedMax
	}
	if f.SpeedMin < 0 {
		f.SpeedMin = 0
	}
	if f.SpeedJitter < 0 {
		f.SpeedJitter = 0
	}
	if f.SpeedJitter > 0.9 {
		f.SpeedJitter = 0.9
	}
	if f.Accel <= 0 {
		f.Accel = d.Accel
	}
	if f.SeparationRadius <= 0 {
		f.SeparationRadius = d.SeparationRadius
	}
	if f.SeparationStrength < 0 {
		f.SeparationStrength = 0
	}
	if f.RetargetMinS < 0 {
		f.RetargetMinS = 0
	}
	if f.TargetReachDist < 0 {
		f.TargetReachDist = 0
	}
}

func (t Tuning) Validate() error {
	if err := t.Fish.Validate(); err != nil {
		return err
	}
	for name, b := range t.Strata.Shore {
		if err := b.validate("shore", name); err != nil {
			return err
		}
	}
	for name, b := range t.Strata.Column {
		if err := b.validate("column", name); err != nil {
			return err
		}
	}
	for name, n := range t.Scales.Abundance {
		if n < 0 {
			return fmt.Errorf("scales.abundance.%s: negative count %d", name, n)
		}
	}
	for name, v := range t.Scales.Size {
		if v <= 0 {
			return fmt.Errorf("scales.size.%s: must be > 0", name)
		}
	}
	for name, v := range t.Scales.Speed {
		if v <= 0 {
			return fmt.Errorf("scales.speed.%s: must be > 0", name)
		}
	}
	return nil
}

func (f Fish) Validate() error {
	if f.SpeedMin > f.SpeedMax {
		return fmt.Errorf("fish: speed_min %.3f > speed_max %.3f", f.SpeedMin, f.SpeedMax)
	}
	if f.RetargetMinS > f.RetargetMaxS {
		return fmt.Errorf("fish: retarget_min_s %.3f > retarget_max_s %.3f", f.RetargetMinS, f.RetargetMaxS)
	}
	return nil
}

func (b Band) validate(axis, name string) error {
	if b.Mean < 0 || b.Mean > 1 {
		return fmt.Errorf("strata.%s.%s: mean %.3f outside [0,1]", axis, name, b.Mean)
	}
	if b.Sigma < 0 {
		return fmt.Errorf("strata.%s.%s: negative sigma", axis, name)
	}
	return nil
}

// Geometry is the volume snapshot for one tick.
func (t Tuning) Geometry() volume.Geometry {
	return volume.Geometry{
		ShorelineX:    t.World.ShorelineX,
		RiverbedY:     t.World.RiverbedY,
		WaterSurfaceY: t.World.WaterSurfaceY,
		LeftZ:         t.World.LeftZ,
		RightZ:        t.World.RightZ,
		MinSpan:       t.World.MinSpan,
	}
}

// Clone deep-copies the lookup tables so a tank can own and edit its copy.
func (t Tuning) Clone() Tuning {
	c := t
	c.Scales.Size = cloneMap(t.Scales.Size)
	c.Scales.Speed = cloneMap(t.Scales.Speed)
	c.Scales.Abundance = cloneMap(t.Scales.Abundance)
	c.Strata.Shore = cloneMap(t.Strata.Shore)
	c.Strata.Column = cloneMap(t.Strata.Column)
	return c
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	if in == nil {
		return nil
	}
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
