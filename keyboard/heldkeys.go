package keyboard

import "sync"

// heldKeySet tracks which keys are currently down. Mutated only from the
// dispatcher goroutine; read from any goroutine.
type heldKeySet struct {
	mu   sync.RWMutex
	keys map[VirtualKey]struct{}
}

func newHeldKeySet() *heldKeySet {
	return &heldKeySet{keys: make(map[VirtualKey]struct{})}
}

// press and release tolerate malformed native streams: a repeated DOWN or
// an UP for a key never seen is a no-op.
func (s *heldKeySet) press(code VirtualKey) {
	s.mu.Lock()
	s.keys[code] = struct{}{}
	s.mu.Unlock()
}

func (s *heldKeySet) release(code VirtualKey) {
	s.mu.Lock()
	delete(s.keys, code)
	s.mu.Unlock()
}

func (s *heldKeySet) contains(code VirtualKey) bool {
	s.mu.RLock()
	_, ok := s.keys[code]
	s.mu.RUnlock()
	return ok
}

// containsAll short-circuits on the first miss. Vacuously true for an
// empty query.
func (s *heldKeySet) containsAll(codes []VirtualKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, code := range codes {
		if _, ok := s.keys[code]; !ok {
			return false
		}
	}
	return true
}

func (s *heldKeySet) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}
