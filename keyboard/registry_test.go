package keyboard

import (
	"sync"
	"testing"
)

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	var reg listenerList
	a := newRecorder()
	b := newRecorder()
	c := newRecorder()
	reg.add(a)
	reg.add(b)
	reg.add(c)

	snap := reg.snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 listeners, got %d", len(snap))
	}
	if snap[0] != a || snap[1] != b || snap[2] != c {
		t.Fatalf("listeners out of registration order")
	}
}

func TestRegistryRemovesFirstOccurrence(t *testing.T) {
	var reg listenerList
	a := newRecorder()
	reg.add(a)
	reg.add(a)

	reg.remove(a)
	if got := len(reg.snapshot()); got != 1 {
		t.Fatalf("expected one registration left, got %d", got)
	}
	reg.remove(a)
	if got := len(reg.snapshot()); got != 0 {
		t.Fatalf("expected an empty registry, got %d", got)
	}
}

func TestRegistryRemoveMissingIsNoOp(t *testing.T) {
	var reg listenerList
	reg.add(newRecorder())
	reg.remove(newRecorder())

	if got := len(reg.snapshot()); got != 1 {
		t.Fatalf("expected the registered listener to survive, got %d", got)
	}
}

func TestRegistrySnapshotIsStable(t *testing.T) {
	var reg listenerList
	a := newRecorder()
	reg.add(a)

	snap := reg.snapshot()
	reg.add(newRecorder())
	reg.remove(a)

	if len(snap) != 1 || snap[0] != a {
		t.Fatalf("snapshot changed under mutation: %v", snap)
	}
}

func TestRegistryConcurrentMutation(t *testing.T) {
	var reg listenerList
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l := newRecorder()
				reg.add(l)
				reg.snapshot()
				reg.remove(l)
			}
		}()
	}
	wg.Wait()

	if got := len(reg.snapshot()); got != 0 {
		t.Fatalf("expected an empty registry after balanced add/remove, got %d", got)
	}
}
