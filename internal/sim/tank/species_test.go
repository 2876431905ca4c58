package tank

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type fakeResolver map[string]error

func (f fakeResolver) Resolve(_ context.Context, path string) (ModelHandle, error) {
	if err, ok := f[path]; ok && err != nil {
		return ModelHandle{}, err
	}
	return ModelHandle{Path: path, Bytes: 1}, nil
}

func TestBuildSpecies_FallbackOnResolveFailure(t *testing.T) {
	ok := def("trout", 2)
	ok.Model = "models/trout.glb"
	bad := def("catfish", 2)
	bad.Model = "models/catfish.glb"
	bad.Size = "large"
	none := def("perch", 2)

	tu := boxTuning()
	res := fakeResolver{"models/catfish.glb": errors.New("404")}
	species, err := BuildSpecies(context.Background(), catalogOf(ok, bad, none), tu, res, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	by := map[string]*SpeciesRuntime{}
	for _, sp := range species {
		by[sp.Key()] = sp
	}

	if by["trout"].Render.Kind != RenderModel || by["trout"].Render.Model.Path != "models/trout.glb" {
		t.Fatalf("trout render: %+v", by["trout"].Render)
	}
	cf := by["catfish"].Render
	if cf.Kind != RenderFallback || cf.Fallback.Shape != "capsule" {
		t.Fatalf("catfish render: %+v", cf)
	}
	wantLen := tu.Fallback.Length * tu.Scales.Size["large"]
	if cf.Fallback.Length != wantLen {
		t.Fatalf("fallback length=%v want %v", cf.Fallback.Length, wantLen)
	}
	if by["perch"].Render.Kind != RenderFallback {
		t.Fatalf("perch without model should fall back")
	}

	// Spawning still works with a fallback.
	tk, err := New(Config{Tuning: tu, Species: species})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if mustPop(t, tk, "catfish").ActiveCount() != 2 {
		t.Fatalf("catfish should spawn")
	}
	w := tk.welcome("S1")
	for _, info := range w.Species {
		if info.Key == "catfish" && (info.Render.Kind != "FALLBACK" || info.Render.Fallback == nil) {
			t.Fatalf("welcome render: %+v", info.Render)
		}
	}
}

func TestBuildSpecies_DerivesRuntime(t *testing.T) {
	d := def("minnow", 0)
	d.Abundance = "uncommon"
	d.Speed = "fast"
	d.Shore = "near"
	d.Column = "surface"
	d.ForwardAxis = "-x"

	tu := boxTuning()
	species, err := BuildSpecies(context.Background(), catalogOf(d), tu, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	sp := species[0]
	if sp.Count != tu.Scales.Abundance["uncommon"] {
		t.Fatalf("count=%d", sp.Count)
	}
	if sp.SpeedScale != tu.Scales.Speed["fast"] {
		t.Fatalf("speed scale=%v", sp.SpeedScale)
	}
	if !sp.Bias.X.Enabled || sp.Bias.X.Mean != tu.Strata.Shore["near"].Mean {
		t.Fatalf("shore bias: %+v", sp.Bias.X)
	}
	if !sp.Bias.Y.Enabled || sp.Bias.Y.Mean != tu.Strata.Column["surface"].Mean {
		t.Fatalf("column bias: %+v", sp.Bias.Y)
	}
	if sp.Forward.X != -1 {
		t.Fatalf("forward=%+v", sp.Forward)
	}
}

func TestBuildSpecies_RejectsUnknownClasses(t *testing.T) {
	d := def("trout", 1)
	d.Shore = "abyss"
	if _, err := BuildSpecies(context.Background(), catalogOf(d), boxTuning(), nil, nil); err == nil {
		t.Fatalf("expected unknown stratum error")
	}
	d = def("trout", 1)
	d.Size = "huge"
	if _, err := BuildSpecies(context.Background(), catalogOf(d), boxTuning(), nil, nil); err == nil {
		t.Fatalf("expected unknown size error")
	}
}

func TestDirResolver(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "models"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "models", "trout.glb"), []byte("glTF"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := DirResolver{Root: root}

	h, err := r.Resolve(context.Background(), "models/trout.glb")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if h.Bytes != 4 || len(h.Digest) != 64 || h.Path != "models/trout.glb" {
		t.Fatalf("handle: %+v", h)
	}
	if _, err := r.Resolve(context.Background(), "models/missing.glb"); err == nil {
		t.Fatalf("expected missing model error")
	}
	if _, err := r.Resolve(context.Background(), "../secret.glb"); err == nil {
		t.Fatalf("expected escape error")
	}
}
