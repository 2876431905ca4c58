package tank

import (
	"context"
	"path/filepath"
	"testing"

	"riverfish.ai/internal/persistence/snapshot"
)

func TestSnapshot_ExportImportRoundTrip(t *testing.T) {
	src := newTestTank(t, boxTuning(), def("minnow", 6), def("trout", 4))
	for i := 0; i < 30; i++ {
		src.Step(StepInput{DT: 1.0 / 60, CameraX: 8})
	}
	src.Catch(CatchRequest{Species: "minnow", Slot: 0})
	snap := src.ExportSnapshot(src.CurrentTick() - 1)

	path := filepath.Join(t.TempDir(), snapshot.FileName(snap.Header.Tick))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	dst := newTestTank(t, boxTuning(), def("minnow", 6), def("trout", 4))
	if err := dst.ImportSnapshot(loaded); err != nil {
		t.Fatalf("import: %v", err)
	}
	if dst.CurrentTick() != src.CurrentTick() {
		t.Fatalf("tick=%d want %d", dst.CurrentTick(), src.CurrentTick())
	}
	for _, key := range []string{"minnow", "trout"} {
		a, b := mustPop(t, src, key), mustPop(t, dst, key)
		if a.ActiveCount() != b.ActiveCount() {
			t.Fatalf("%s active %d vs %d", key, a.ActiveCount(), b.ActiveCount())
		}
		for i, ag := range a.Active() {
			bg := b.Active()[i]
			if ag.ID != bg.ID || ag.Pos != bg.Pos || ag.Target != bg.Target {
				t.Fatalf("%s slot %d differs: %+v vs %+v", key, i, ag, bg)
			}
		}
	}

	// New agents never reuse restored ids.
	if dst.nextAgentID < src.nextAgentID {
		t.Fatalf("id counter not restored")
	}
	dst.Step(StepInput{DT: 1.0 / 60, CameraX: 8})
}

func TestRequestSnapshot_UsesSink(t *testing.T) {
	tk := newTestTank(t, boxTuning(), def("trout", 2))
	sink := make(chan snapshot.SnapshotV1, 1)
	tk.SetSnapshotSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tk.Run(ctx)

	tick, err := tk.RequestSnapshot(ctx)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	snap := <-sink
	if snap.Header.Tick != tick || len(snap.Species) != 1 || len(snap.Species[0].Agents) != 2 {
		t.Fatalf("snapshot: %+v", snap.Header)
	}
}
