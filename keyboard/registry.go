package keyboard

import "sync"

// listenerList holds registered listeners in registration order. Mutations
// replace the slice wholesale (copy-on-write), so a fan-out pass iterates
// the snapshot it took without holding any lock, and add/remove stay safe
// even when called from inside a listener callback.
type listenerList struct {
	mu   sync.RWMutex
	list []Listener
}

func (r *listenerList) add(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make([]Listener, len(r.list)+1)
	copy(next, r.list)
	next[len(r.list)] = l
	r.list = next
}

// remove drops the first listener equal to l. Removing a listener that was
// never added is a no-op.
func (r *listenerList) remove(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, have := range r.list {
		if have == l {
			next := make([]Listener, 0, len(r.list)-1)
			next = append(next, r.list[:i]...)
			next = append(next, r.list[i+1:]...)
			r.list = next
			return
		}
	}
}

// snapshot returns the current slice. Callers may iterate it freely; it is
// never mutated in place.
func (r *listenerList) snapshot() []Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.list
}
