package tank

import (
	"context"
	"testing"

	"riverfish.ai/internal/sim/catalogs"
	"riverfish.ai/internal/sim/tuning"
)

// boxTuning yields a [0,0,0]-[10,5,10] swim box at the default camera.
func boxTuning() tuning.Tuning {
	tu := tuning.Defaults()
	tu.World = tuning.World{
		ShorelineX:     0,
		RiverbedY:      0,
		WaterSurfaceY:  5,
		LeftZ:          0,
		RightZ:         10,
		MinSpan:        0.5,
		DefaultCameraX: 10,
	}
	return tu
}

func def(key string, count int) catalogs.SpeciesDef {
	return catalogs.SpeciesDef{
		Key:         key,
		Name:        key,
		Size:        "medium",
		Speed:       "normal",
		Abundance:   "common",
		ForwardAxis: "+z",
		Count:       count,
	}
}

func catalogOf(defs ...catalogs.SpeciesDef) *catalogs.Catalogs {
	c := &catalogs.Catalogs{Species: catalogs.SpeciesCatalog{
		Index: map[string]uint16{},
		Defs:  map[string]catalogs.SpeciesDef{},
	}}
	for i, d := range defs {
		c.Species.Keys = append(c.Species.Keys, d.Key)
		c.Species.Index[d.Key] = uint16(i)
		c.Species.Defs[d.Key] = d
	}
	return c
}

func newTestTank(t *testing.T, tu tuning.Tuning, defs ...catalogs.SpeciesDef) *Tank {
	t.Helper()
	species, err := BuildSpecies(context.Background(), catalogOf(defs...), tu, nil, nil)
	if err != nil {
		t.Fatalf("build species: %v", err)
	}
	tk, err := New(Config{ID: "test", Tuning: tu, Species: species, Seed: 42})
	if err != nil {
		t.Fatalf("new tank: %v", err)
	}
	return tk
}

func mustPop(t *testing.T, tk *Tank, key string) *Population {
	t.Helper()
	p, ok := tk.Population(key)
	if !ok {
		t.Fatalf("missing population %s", key)
	}
	return p
}
