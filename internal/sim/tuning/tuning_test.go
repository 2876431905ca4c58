package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_RepoConfig(t *testing.T) {
	tu, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load tuning.yaml: %v", err)
	}
	if tu.TickRateHz <= 0 || tu.IndexRefreshHz <= 0 {
		t.Fatalf("rates not set: %+v", tu)
	}
	if tu.IndexRefreshHz >= float64(tu.TickRateHz) {
		t.Fatalf("index refresh (%v Hz) should be slower than the tick (%d Hz)", tu.IndexRefreshHz, tu.TickRateHz)
	}
	if len(tu.Strata.Shore) == 0 || len(tu.Strata.Column) == 0 {
		t.Fatalf("strata tables missing")
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(p, []byte("fish:\n  separation_radius: 2.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.Fish.SeparationRadius != 2.5 {
		t.Fatalf("separation_radius=%v want 2.5", tu.Fish.SeparationRadius)
	}
	if tu.Fish.SpeedMax != Defaults().Fish.SpeedMax {
		t.Fatalf("unset fields should keep defaults")
	}
	if tu.Scales.Size["medium"] != 1.0 {
		t.Fatalf("default scale tables should survive overlay")
	}
}

func TestLoad_RejectsInvertedRetargetRange(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(p, []byte("fish:\n  retarget_min_s: 9\n  retarget_max_s: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestNormalize_RepairsZeroes(t *testing.T) {
	var tu Tuning
	tu.Normalize()
	if tu.TickRateHz <= 0 || tu.MaxDT <= 0 || tu.Fish.Accel <= 0 || tu.Fish.SeparationRadius <= 0 || tu.World.MinSpan <= 0 {
		t.Fatalf("normalize left zero values: %+v", tu)
	}
}

func TestClone_IsIndependent(t *testing.T) {
	a := Defaults()
	b := a.Clone()
	b.Scales.Size["medium"] = 9
	b.Strata.Shore["near"] = Band{Mean: 1}
	if a.Scales.Size["medium"] == 9 || a.Strata.Shore["near"].Mean == 1 {
		t.Fatalf("clone shares maps with source")
	}
}
