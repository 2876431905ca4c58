package tank

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"riverfish.ai/internal/protocol"
	"riverfish.ai/internal/sim/tuning"
)

type memTickLog struct{ entries []TickLogEntry }

func (m *memTickLog) WriteTick(e TickLogEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

type memCatchLog struct{ notices []RemovalNotice }

func (m *memCatchLog) WriteCatch(n RemovalNotice) error {
	m.notices = append(m.notices, n)
	return nil
}

func TestTickLog_Cadence(t *testing.T) {
	tu := boxTuning()
	tu.LogEveryTicks = 2
	tk := newTestTank(t, tu, def("trout", 3))
	tl, cl := &memTickLog{}, &memCatchLog{}
	tk.SetTickLogger(tl)
	tk.SetCatchLogger(cl)

	tk.Step(StepInput{DT: 0.01, CameraX: 10})
	tk.Catch(CatchRequest{Species: "trout", Slot: 0})
	for i := 0; i < 3; i++ {
		tk.Step(StepInput{DT: 0.01, CameraX: 10})
	}

	if len(tl.entries) != 2 || tl.entries[0].Tick != 0 || tl.entries[1].Tick != 2 {
		t.Fatalf("entries: %+v", tl.entries)
	}
	if len(tl.entries[1].Removals) != 1 || tl.entries[1].Active["trout"] != 2 {
		t.Fatalf("second entry: %+v", tl.entries[1])
	}
	if tl.entries[0].IndexRebuilds != 1 || !tl.entries[0].Rebuilt || tl.entries[1].IndexRebuilds < tl.entries[0].IndexRebuilds {
		t.Fatalf("rebuild counter: %d then %d", tl.entries[0].IndexRebuilds, tl.entries[1].IndexRebuilds)
	}
	if len(cl.notices) != 1 || cl.notices[0].Species != "trout" || cl.notices[0].Active != 2 {
		t.Fatalf("catch log: %+v", cl.notices)
	}
}

func TestRun_SessionReceivesFramesAndCatches(t *testing.T) {
	tk := newTestTank(t, boxTuning(), def("trout", 4))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- tk.Run(ctx) }()

	frames := make(chan []byte, 1)
	events := make(chan []byte, 8)
	resp := make(chan JoinResponse, 1)
	tk.Join() <- JoinRequest{Name: "viewer", FrameOut: frames, EventOut: events, Resp: resp}

	var jr JoinResponse
	select {
	case jr = <-resp:
	case <-time.After(2 * time.Second):
		t.Fatalf("join timed out")
	}
	if jr.SessionID == "" || len(jr.Welcome.Species) != 1 || jr.Welcome.Species[0].Capacity != 4 {
		t.Fatalf("welcome: %+v", jr.Welcome)
	}

	var frame protocol.FrameMsg
	select {
	case b := <-frames:
		if err := json.Unmarshal(b, &frame); err != nil {
			t.Fatalf("frame: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame")
	}
	if frame.Type != protocol.TypeFrame || len(frame.Species) != 1 || len(frame.Species[0].Poses) != 4 {
		t.Fatalf("frame: %+v", frame)
	}

	cresp := make(chan CatchResult, 1)
	tk.Catches() <- CatchEnvelope{Req: CatchRequest{Species: "trout", Slot: 3}, Resp: cresp}
	select {
	case r := <-cresp:
		if r.Status != Caught || r.Active != 3 {
			t.Fatalf("catch: %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("catch timed out")
	}

	tk.SetCamera(4)
	deadline := time.Now().Add(2 * time.Second)
	for tk.Metrics().CameraX != 4 {
		if time.Now().After(deadline) {
			t.Fatalf("camera update not applied: %+v", tk.Metrics())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if m := tk.Metrics(); m.Agents != 3 || m.Caught != 1 {
		t.Fatalf("metrics: %+v", m)
	}

	fish, err := tk.RequestBehavior(ctx, func(f *tuning.Fish) error {
		f.SeparationStrength = 2
		return nil
	})
	if err != nil {
		t.Fatalf("behavior: %v", err)
	}
	if fish.SeparationStrength != 2 || tk.Metrics().Behavior.SeparationStrength != 2 {
		t.Fatalf("behavior not applied: %+v", fish)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
}
