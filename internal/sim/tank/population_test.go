package tank

import "testing"

func TestPopulation_SpawnStopsAtCapacity(t *testing.T) {
	pop := NewPopulation(&SpeciesRuntime{}, 3)
	var next uint64
	n := pop.Spawn(10, func() *Agent {
		next++
		return &Agent{ID: next}
	})
	if n != 3 || pop.ActiveCount() != 3 || pop.Capacity() != 3 {
		t.Fatalf("spawned=%d active=%d cap=%d", n, pop.ActiveCount(), pop.Capacity())
	}
	for i, a := range pop.Active() {
		if s, ok := a.Slot(); !ok || s != i {
			t.Fatalf("slot %d: got %d ok=%v", i, s, ok)
		}
	}
	if n := pop.Spawn(1, func() *Agent { return &Agent{} }); n != 0 {
		t.Fatalf("full population spawned %d", n)
	}
}

func TestPopulation_CatchLastSlotAndDrain(t *testing.T) {
	pop := NewPopulation(&SpeciesRuntime{}, 3)
	var next uint64
	pop.Spawn(3, func() *Agent {
		next++
		return &Agent{ID: next}
	})

	a, ok := pop.Catch(2)
	if !ok || a.ID != 3 {
		t.Fatalf("catch tail: %+v %v", a, ok)
	}
	if _, ok := a.Slot(); ok {
		t.Fatalf("caught agent should report no slot")
	}
	if first, _ := pop.At(0); first.ID != 1 {
		t.Fatalf("slot 0 should be untouched")
	}

	pop.Catch(0)
	pop.Catch(0)
	if pop.ActiveCount() != 0 || len(pop.Active()) != 0 || len(pop.Poses()) != 0 {
		t.Fatalf("expected empty population")
	}
	if _, ok := pop.Catch(0); ok {
		t.Fatalf("catch on empty population should fail")
	}
}
