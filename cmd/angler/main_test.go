package main

import (
	"math"
	"math/rand"
	"testing"

	"riverfish.ai/internal/protocol"
)

func TestPickCatch_RespectsSelectedSpecies(t *testing.T) {
	f := &protocol.FrameMsg{Species: []protocol.SpeciesFrame{
		{Key: "minnow", Active: 2, Poses: []protocol.Pose{{Slot: 0}, {Slot: 1}}},
		{Key: "trout", Active: 1, Poses: []protocol.Pose{{Slot: 0}}},
	}}
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		cm, ok := pickCatch(f, r, "trout")
		if !ok {
			t.Fatalf("expected a pick")
		}
		if cm.Species != "trout" || cm.Slot != 0 || cm.Selected != "trout" {
			t.Fatalf("unexpected pick: %+v", cm)
		}
	}

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		cm, ok := pickCatch(f, r, "")
		if !ok {
			t.Fatalf("expected a pick")
		}
		if cm.Type != protocol.TypeCatch {
			t.Fatalf("type=%q", cm.Type)
		}
		seen[cm.Species] = true
	}
	if !seen["minnow"] || !seen["trout"] {
		t.Fatalf("expected both species picked, got %v", seen)
	}
}

func TestPickCatch_EmptyFrame(t *testing.T) {
	f := &protocol.FrameMsg{Species: []protocol.SpeciesFrame{{Key: "minnow"}}}
	if _, ok := pickCatch(f, rand.New(rand.NewSource(1)), ""); ok {
		t.Fatalf("expected no pick from an empty frame")
	}
	if _, ok := pickCatch(f, rand.New(rand.NewSource(1)), "perch"); ok {
		t.Fatalf("expected no pick for an absent species")
	}
}

func TestSweep_StaysInRange(t *testing.T) {
	s := sweep{Min: 6, Max: 16, Period: 10}
	if got := s.At(0); math.Abs(got-6) > 1e-9 {
		t.Fatalf("At(0)=%v", got)
	}
	if got := s.At(5); math.Abs(got-16) > 1e-9 {
		t.Fatalf("At(half)=%v", got)
	}
	for sec := 0.0; sec < 30; sec += 0.37 {
		x := s.At(sec)
		if x < 6-1e-9 || x > 16+1e-9 {
			t.Fatalf("At(%v)=%v out of range", sec, x)
		}
	}
	if got := (sweep{Min: 6, Max: 16}).At(3); got != 16 {
		t.Fatalf("fixed camera=%v", got)
	}
}
