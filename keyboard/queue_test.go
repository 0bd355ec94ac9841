package keyboard

import (
	"fmt"
	"testing"
	"time"
)

func TestQueueDeliversInOrder(t *testing.T) {
	q := newEventQueue()
	for i := 0; i < 100; i++ {
		q.Put(KeyEvent{VirtualKey: VirtualKey(i)})
	}

	for i := 0; i < 100; i++ {
		ev, ok := q.Take()
		if !ok {
			t.Fatalf("queue closed unexpectedly at event %d", i)
		}
		if ev.VirtualKey != VirtualKey(i) {
			t.Fatalf("expected event %d, got %d", i, ev.VirtualKey)
		}
	}
	if q.len() != 0 {
		t.Fatalf("expected an empty queue after draining, got %d", q.len())
	}
}

func TestQueueTakeBlocksUntilPut(t *testing.T) {
	q := newEventQueue()

	got := make(chan KeyEvent, 1)
	go func() {
		ev, _ := q.Take()
		got <- ev
	}()

	select {
	case ev := <-got:
		t.Fatalf("take returned %v from an empty queue", ev)
	case <-time.After(50 * time.Millisecond):
	}

	q.Put(KeyEvent{VirtualKey: VKSpace})

	select {
	case ev := <-got:
		if ev.VirtualKey != VKSpace {
			t.Fatalf("expected the queued event, got %v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("take did not wake after a put")
	}
}

func TestQueueCloseWakesBlockedTake(t *testing.T) {
	q := newEventQueue()

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Take()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond) // let the take block
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected take to report closed")
		}
	case <-time.After(time.Second):
		t.Fatalf("take did not wake after close")
	}
}

func TestQueueCloseDiscardsPending(t *testing.T) {
	q := newEventQueue()
	q.Put(KeyEvent{VirtualKey: VKA})
	q.Put(KeyEvent{VirtualKey: vkB})
	q.Close()

	if _, ok := q.Take(); ok {
		t.Fatalf("expected no events from a closed queue")
	}
	if q.len() != 0 {
		t.Fatalf("expected pending events to be discarded, got %d", q.len())
	}
}

func TestQueueIgnoresPutAfterClose(t *testing.T) {
	q := newEventQueue()
	q.Close()
	q.Close() // close is idempotent
	q.Put(KeyEvent{VirtualKey: VKA})

	if q.len() != 0 {
		t.Fatalf("expected puts after close to be dropped, got %d", q.len())
	}
}

func TestQueueKeepsEveryEventUnderBurst(t *testing.T) {
	q := newEventQueue()
	const n = 10000

	go func() {
		for i := 0; i < n; i++ {
			q.Put(KeyEvent{VirtualKey: VirtualKey(i)})
		}
	}()

	done := make(chan error, 1)
	go func() {
		for i := 0; i < n; i++ {
			ev, ok := q.Take()
			if !ok {
				done <- fmt.Errorf("queue closed at event %d", i)
				return
			}
			if ev.VirtualKey != VirtualKey(i) {
				done <- fmt.Errorf("expected event %d, got %d", i, ev.VirtualKey)
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("burst drain failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("burst drain did not finish; events were lost")
	}
}
