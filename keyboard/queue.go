package keyboard

import "sync"

// eventQueue is the unbounded FIFO between the capture callback and the
// dispatcher. Put never blocks and never drops; Take blocks while the queue
// is empty; Close wakes a blocked Take immediately. Single consumer.
type eventQueue struct {
	mu     sync.Mutex
	items  []KeyEvent
	wake   chan struct{}
	closed bool
}

func newEventQueue() *eventQueue {
	return &eventQueue{wake: make(chan struct{}, 1)}
}

func (q *eventQueue) Put(ev KeyEvent) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, ev)
	q.mu.Unlock()
	q.notify()
}

// Take removes the oldest event, blocking while the queue is empty. The
// second return is false once the queue has been closed; events still
// queued at close time are discarded, so the consumer stops immediately.
func (q *eventQueue) Take() (KeyEvent, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return KeyEvent{}, false
		}
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items = q.items[1:]
			if len(q.items) == 0 {
				q.items = nil // release the drained backing array
			}
			q.mu.Unlock()
			return ev, true
		}
		q.mu.Unlock()
		<-q.wake
	}
}

// Close is idempotent and safe to call concurrently with Put and Take.
func (q *eventQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()
	q.notify()
}

// notify is a lossy wake signal: the single consumer re-checks state after
// every wake, so a coalesced notification is never missed.
func (q *eventQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
