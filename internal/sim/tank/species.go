package tank

import (
	"context"
	"fmt"
	"log"
	"sync"

	"riverfish.ai/internal/sim/bias"
	"riverfish.ai/internal/sim/catalogs"
	"riverfish.ai/internal/sim/mathx"
	"riverfish.ai/internal/sim/tuning"
)

type RenderKind string

const (
	RenderModel    RenderKind = "MODEL"
	RenderFallback RenderKind = "FALLBACK"
)

// ModelHandle identifies a resolved visual asset. The tank never loads
// geometry itself; renderers fetch it by Path.
type ModelHandle struct {
	Path   string
	Bytes  int64
	Digest string
}

// Primitive is the built-in shape used when a model is unavailable.
type Primitive struct {
	Shape  string
	Length float64
	Radius float64
}

type RenderSource struct {
	Kind     RenderKind
	Model    ModelHandle
	Fallback Primitive
}

// AssetResolver loads species models. Implementations may block.
type AssetResolver interface {
	Resolve(ctx context.Context, path string) (ModelHandle, error)
}

// SpeciesRuntime is the per-tank derived form of a species definition.
type SpeciesRuntime struct {
	Def   catalogs.SpeciesDef
	Index uint16

	SizeScale  float64
	SpeedScale float64
	Count      int

	Bias    bias.Params
	Forward mathx.Vec3
	Render  RenderSource
}

func (s *SpeciesRuntime) Key() string { return s.Def.Key }

var forwardAxes = map[string]mathx.Vec3{
	"+x": {X: 1},
	"-x": {X: -1},
	"+y": {Y: 1},
	"-y": {Y: -1},
	"+z": {Z: 1},
	"-z": {Z: -1},
}

// BuildSpecies derives a runtime for every catalog species, resolving
// models concurrently. It returns once every resolution has finished;
// failed or missing models get the fallback primitive.
func BuildSpecies(ctx context.Context, cats *catalogs.Catalogs, tune tuning.Tuning, resolver AssetResolver, logger *log.Logger) ([]*SpeciesRuntime, error) {
	if cats == nil {
		return nil, fmt.Errorf("nil catalogs")
	}
	if logger == nil {
		logger = discardLogger()
	}
	defs := cats.Species.Ordered()
	out := make([]*SpeciesRuntime, 0, len(defs))
	for i, def := range defs {
		sp, err := newSpeciesRuntime(def, uint16(i), tune)
		if err != nil {
			return nil, fmt.Errorf("species %s: %w", def.Key, err)
		}
		out = append(out, sp)
	}

	var wg sync.WaitGroup
	for _, sp := range out {
		if sp.Def.Model == "" || resolver == nil {
			continue
		}
		wg.Add(1)
		go func(sp *SpeciesRuntime) {
			defer wg.Done()
			h, err := resolver.Resolve(ctx, sp.Def.Model)
			if err != nil {
				logger.Printf("species %s: model %s unavailable, using %s fallback: %v", sp.Key(), sp.Def.Model, sp.Render.Fallback.Shape, err)
				return
			}
			sp.Render = RenderSource{Kind: RenderModel, Model: h, Fallback: sp.Render.Fallback}
		}(sp)
	}
	wg.Wait()
	return out, nil
}

func newSpeciesRuntime(def catalogs.SpeciesDef, idx uint16, tune tuning.Tuning) (*SpeciesRuntime, error) {
	size, ok := tune.Scales.Size[def.Size]
	if !ok {
		return nil, fmt.Errorf("unknown size class %q", def.Size)
	}
	speed, ok := tune.Scales.Speed[def.Speed]
	if !ok {
		return nil, fmt.Errorf("unknown speed class %q", def.Speed)
	}
	count := def.Count
	if count == 0 {
		n, ok := tune.Scales.Abundance[def.Abundance]
		if !ok {
			return nil, fmt.Errorf("unknown abundance class %q", def.Abundance)
		}
		count = n
	}
	fwd, ok := forwardAxes[def.ForwardAxis]
	if !ok {
		return nil, fmt.Errorf("unknown forward axis %q", def.ForwardAxis)
	}

	var p bias.Params
	if def.Shore != "" {
		b, ok := tune.Strata.Shore[def.Shore]
		if !ok {
			return nil, fmt.Errorf("unknown shore stratum %q", def.Shore)
		}
		p.X = bias.Axis{Enabled: true, Mean: b.Mean, Sigma: b.Sigma}
	}
	if def.Column != "" {
		b, ok := tune.Strata.Column[def.Column]
		if !ok {
			return nil, fmt.Errorf("unknown column stratum %q", def.Column)
		}
		p.Y = bias.Axis{Enabled: true, Mean: b.Mean, Sigma: b.Sigma}
	}

	return &SpeciesRuntime{
		Def:        def,
		Index:      idx,
		SizeScale:  size,
		SpeedScale: speed,
		Count:      count,
		Bias:       p,
		Forward:    fwd,
		Render: RenderSource{
			Kind: RenderFallback,
			Fallback: Primitive{
				Shape:  tune.Fallback.Shape,
				Length: tune.Fallback.Length * size,
				Radius: tune.Fallback.Radius * size,
			},
		},
	}, nil
}
