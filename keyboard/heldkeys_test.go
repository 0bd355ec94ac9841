package keyboard

import (
	"sync"
	"testing"
)

func TestHeldKeysTrackPressAndRelease(t *testing.T) {
	s := newHeldKeySet()

	s.press(VKA)
	if !s.contains(VKA) {
		t.Fatalf("expected A to be held after press")
	}
	if s.count() != 1 {
		t.Fatalf("expected one held key, got %d", s.count())
	}

	s.release(VKA)
	if s.contains(VKA) {
		t.Fatalf("expected A to be released")
	}
	if s.count() != 0 {
		t.Fatalf("expected no held keys, got %d", s.count())
	}
}

func TestHeldKeysTolerateMalformedStreams(t *testing.T) {
	s := newHeldKeySet()

	s.release(VKA) // up with no prior down
	if s.count() != 0 {
		t.Fatalf("expected an orphan release to change nothing, got %d held", s.count())
	}

	s.press(VKA)
	s.press(VKA) // auto-repeat
	if s.count() != 1 {
		t.Fatalf("expected a repeated press to count once, got %d", s.count())
	}
	s.release(VKA)
	if s.contains(VKA) {
		t.Fatalf("expected a single release to clear a repeated press")
	}
}

func TestHeldKeysContainsAll(t *testing.T) {
	s := newHeldKeySet()
	s.press(VKLeftControl)
	s.press(VKLeftShift)

	if !s.containsAll(nil) {
		t.Fatalf("expected the empty query to be vacuously true")
	}
	if !s.containsAll([]VirtualKey{VKLeftControl, VKLeftShift}) {
		t.Fatalf("expected both held keys to satisfy the query")
	}
	if s.containsAll([]VirtualKey{VKLeftControl, VKA}) {
		t.Fatalf("expected the query to fail on an unheld key")
	}
}

func TestHeldKeysConcurrentReads(t *testing.T) {
	s := newHeldKeySet()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				s.contains(VKA)
				s.containsAll([]VirtualKey{VKA, vkB})
				s.count()
			}
		}()
	}
	for j := 0; j < 1000; j++ {
		s.press(VKA)
		s.release(VKA)
	}
	wg.Wait()
}
