package tank

import (
	"context"
	"errors"
	"time"

	"riverfish.ai/internal/sim/tuning"
)

type behaviorReq struct {
	Patch func(*tuning.Fish) error
	Resp  chan behaviorResp
}

type behaviorResp struct {
	Fish tuning.Fish
	Err  error
}

type snapshotReq struct {
	Resp chan snapshotResp
}

type snapshotResp struct {
	Tick uint64
	Err  string
}

// Run drives Step from a ticker until ctx is done or Stop is called.
// Real elapsed time is clamped to max_dt.
func (t *Tank) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(t.tune.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.stop:
			return nil
		case req := <-t.join:
			t.handleJoin(req)
		case id := <-t.leave:
			t.handleLeave(id)
		case env := <-t.catches:
			res := t.Catch(env.Req)
			if env.Resp != nil {
				env.Resp <- res
			}
		case x := <-t.camera:
			t.cameraX = x
		case req := <-t.behavior:
			req.Resp <- t.patchBehavior(req.Patch)
		case req := <-t.snapshotReq:
			t.handleSnapshotReq(req)
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if dt > t.tune.MaxDT {
				dt = t.tune.MaxDT
			}
			t.Step(StepInput{DT: dt, CameraX: t.cameraX})
		}
	}
}

func (t *Tank) Stop() { close(t.stop) }

// SetCamera queues a camera distance update; the newest value wins.
func (t *Tank) SetCamera(x float64) {
	select {
	case t.camera <- x:
		return
	default:
	}
	select {
	case <-t.camera:
	default:
	}
	select {
	case t.camera <- x:
	default:
	}
}

// UpdateBehavior replaces the tank's fish tunables. A new separation radius
// resizes the index cells on the next tick. Loop goroutine only.
func (t *Tank) UpdateBehavior(f tuning.Fish) error {
	f.Normalize()
	if err := f.Validate(); err != nil {
		return err
	}
	if f.SeparationRadius != t.tune.Fish.SeparationRadius {
		t.indexDirty = true
	}
	t.tune.Fish = f
	t.logger.Printf("behavior updated: radius=%.2f strength=%.2f accel=%.2f", f.SeparationRadius, f.SeparationStrength, f.Accel)

	m := t.Metrics()
	t.publishMetrics(m.Tick, m.StepMS)
	return nil
}

// patchBehavior applies patch to a copy of the live tunables. Loop goroutine only.
func (t *Tank) patchBehavior(patch func(*tuning.Fish) error) behaviorResp {
	f := t.tune.Fish
	if patch != nil {
		if err := patch(&f); err != nil {
			return behaviorResp{Fish: t.tune.Fish, Err: err}
		}
	}
	if err := t.UpdateBehavior(f); err != nil {
		return behaviorResp{Fish: t.tune.Fish, Err: err}
	}
	return behaviorResp{Fish: t.tune.Fish}
}

// RequestBehavior edits the live fish tunables from outside the loop
// goroutine. patch runs on the loop against the current values, so edits
// queued between ticks compose. It returns the normalized result.
func (t *Tank) RequestBehavior(ctx context.Context, patch func(*tuning.Fish) error) (tuning.Fish, error) {
	resp := make(chan behaviorResp, 1)
	select {
	case t.behavior <- behaviorReq{Patch: patch, Resp: resp}:
	case <-ctx.Done():
		return tuning.Fish{}, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.Fish, r.Err
	case <-ctx.Done():
		return tuning.Fish{}, ctx.Err()
	}
}

// RequestSnapshot asks the tank loop goroutine to enqueue a snapshot.
// It is safe to call from other goroutines (e.g. HTTP handlers).
func (t *Tank) RequestSnapshot(ctx context.Context) (uint64, error) {
	resp := make(chan snapshotResp, 1)
	select {
	case t.snapshotReq <- snapshotReq{Resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-resp:
		if r.Err != "" {
			return r.Tick, errors.New(r.Err)
		}
		return r.Tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (t *Tank) handleSnapshotReq(req snapshotReq) {
	cur := t.tick.Load()
	snapTick := uint64(0)
	if cur > 0 {
		snapTick = cur - 1
	}
	errStr := ""
	if t.snapshotSink == nil {
		errStr = "snapshot sink not configured"
	} else {
		select {
		case t.snapshotSink <- t.ExportSnapshot(snapTick):
		default:
			errStr = "snapshot queue full"
		}
	}
	req.Resp <- snapshotResp{Tick: snapTick, Err: errStr}
}

func (t *Tank) maybeSnapshot(nowTick uint64) {
	every := t.tune.SnapshotEveryTicks
	if t.snapshotSink == nil || every <= 0 || nowTick == 0 || nowTick%uint64(every) != 0 {
		return
	}
	select {
	case t.snapshotSink <- t.ExportSnapshot(nowTick):
	default:
		t.logger.Printf("snapshot queue full; skipped tick %d", nowTick)
	}
}
