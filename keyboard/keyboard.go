// Package keyboard captures system-wide key events through a platform
// low-level hook and dispatches them to registered listeners in order.
// Each Hook owns its own capture, queue and dispatcher; multiple hooks can
// coexist in one process.
package keyboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// State is the lifecycle phase of a Hook.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Hook is a live global keyboard hook. Obtain one with Open; release it
// with Shutdown.
type Hook struct {
	mode Mode
	drv  Driver

	queue     *eventQueue
	listeners listenerList
	held      *heldKeySet
	mods      modifierState // written only on the capture callback goroutine

	state atomic.Int32

	supervisorDone chan struct{}
	dispatcherDone chan struct{}
}

// Open installs the platform keyboard hook in the given capture mode. It
// blocks until the native layer has reported the registration outcome: on
// success the returned hook is live and dispatching; on failure it returns
// a *RegistrationError carrying the native status code and nothing is left
// running. ctx bounds only the wait for that outcome.
func Open(ctx context.Context, mode Mode) (*Hook, error) {
	return OpenDriver(ctx, newPlatformDriver(), mode)
}

// OpenDriver is Open with an explicit capture driver. It is the seam for
// embedding and for exercising hooks against a fake driver.
func OpenDriver(ctx context.Context, drv Driver, mode Mode) (*Hook, error) {
	if drv == nil {
		return nil, errors.New("keyboard: nil driver")
	}

	h := &Hook{
		mode:           mode,
		drv:            drv,
		queue:          newEventQueue(),
		held:           newHeldKeySet(),
		supervisorDone: make(chan struct{}),
		dispatcherDone: make(chan struct{}),
	}
	h.state.Store(int32(StateStarting))

	ready := make(chan Status, 1)
	go h.supervise(ready)

	select {
	case st := <-ready:
		if st != StatusSuccess {
			h.state.Store(int32(StateFailed))
			<-h.supervisorDone
			return nil, &RegistrationError{Status: st}
		}
	case <-ctx.Done():
		// Abandon the handshake; the supervisor unwinds in the background.
		drv.Stop()
		return nil, ctx.Err()
	}

	// A failed swap here means the supervisor already observed native death
	// inside the handshake window; the hook comes back stopped, not running.
	h.state.CompareAndSwap(int32(StateStarting), int32(StateRunning))
	go h.dispatch()
	return h, nil
}

// supervise runs the driver for the lifetime of the hook. Once Run returns
// the native hook is gone, whether through Shutdown or because the platform
// side died on its own, so the dispatcher is woken to exit.
func (h *Hook) supervise(ready chan<- Status) {
	defer close(h.supervisorDone)
	h.drv.Run(h.mode, h.enqueue, ready)
	h.markStopped()
	h.queue.Close()
}

// markStopped moves the hook out of any live phase. It retries the swap so
// a concurrent Starting→Running transition in the opener cannot leave the
// state pinned at Running after the driver has already returned. Failed and
// Stopped are terminal and stay put.
func (h *Hook) markStopped() {
	for {
		s := h.state.Load()
		if s == int32(StateFailed) || s == int32(StateStopped) {
			return
		}
		if h.state.CompareAndSwap(s, int32(StateStopped)) {
			return
		}
	}
}

// enqueue runs in the capture callback context: fold the transition into
// the modifier flags, snapshot them into an immutable event, queue it.
func (h *Hook) enqueue(raw RawEvent) {
	down := raw.Transition == TransitionDown
	h.mods.apply(raw.VirtualKey, down)
	h.queue.Put(KeyEvent{
		VirtualKey: raw.VirtualKey,
		Transition: raw.Transition,
		Char:       raw.Char,
		Modifiers:  h.mods.mods,
		Extended:   h.mods.extended,
		Device:     raw.Device,
		Time:       time.Now(),
		Hook:       h,
	})
}

// dispatch drains the queue on its own goroutine until the queue closes.
func (h *Hook) dispatch() {
	defer close(h.dispatcherDone)
	for {
		ev, ok := h.queue.Take()
		if !ok {
			return
		}
		if ev.Transition == TransitionDown {
			h.held.press(ev.VirtualKey)
			h.fanOut(ev, true)
		} else {
			h.held.release(ev.VirtualKey)
			h.fanOut(ev, false)
		}
	}
}

// fanOut invokes every listener registered at the start of this pass, in
// registration order. Listeners added mid-pass first see the next event;
// listeners removed mid-pass may still see this one.
func (h *Hook) fanOut(ev KeyEvent, pressed bool) {
	for _, l := range h.listeners.snapshot() {
		h.deliver(l, ev, pressed)
	}
}

// deliver isolates one listener invocation: a panicking listener is logged
// and skipped, and delivery to the remaining listeners continues.
func (h *Hook) deliver(l Listener, ev KeyEvent, pressed bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Keyboard listener panicked", "key", KeyName(ev.VirtualKey), "transition", ev.Transition.String(), "panic", r)
		}
	}()
	if pressed {
		l.KeyPressed(ev)
	} else {
		l.KeyReleased(ev)
	}
}

// AddListener registers l for all subsequent events. The same listener may
// be added more than once; it is then invoked once per registration.
func (h *Hook) AddListener(l Listener) {
	h.listeners.add(l)
}

// RemoveListener removes the earliest registration of l. Safe to call from
// inside a listener callback.
func (h *Hook) RemoveListener(l Listener) {
	h.listeners.remove(l)
}

// IsKeyHeld reports whether the most recently dispatched transition for
// code was a DOWN with no UP yet. Safe from any goroutine.
func (h *Hook) IsKeyHeld(code VirtualKey) bool {
	return h.held.contains(code)
}

// AreKeysHeld reports whether every given key is currently held. True for
// an empty argument list.
func (h *Hook) AreKeysHeld(codes ...VirtualKey) bool {
	return h.held.containsAll(codes)
}

// HeldCount reports how many keys are currently held.
func (h *Hook) HeldCount() int {
	return h.held.count()
}

// IsAlive reports whether the hook is in the Running state. It turns false
// once Shutdown begins, and also when the platform side dies on its own.
func (h *Hook) IsAlive() bool {
	return h.State() == StateRunning
}

// State returns the current lifecycle phase.
func (h *Hook) State() State {
	return State(h.state.Load())
}

// Mode returns the capture mode the hook was opened with.
func (h *Hook) Mode() Mode {
	return h.mode
}

// Shutdown unregisters the native hook and waits for the supervisor and
// dispatcher goroutines to exit. It is idempotent: when the hook is not
// running, it returns nil immediately. Events still queued when shutdown
// begins are discarded. If ctx expires mid-wait its error is returned and
// teardown completes in the background.
func (h *Hook) Shutdown(ctx context.Context) error {
	if !h.state.CompareAndSwap(int32(StateRunning), int32(StateStopped)) {
		return nil
	}
	h.drv.Stop()
	select {
	case <-h.supervisorDone:
	case <-ctx.Done():
		return fmt.Errorf("keyboard: shutdown abandoned: %w", ctx.Err())
	}
	select {
	case <-h.dispatcherDone:
	case <-ctx.Done():
		return fmt.Errorf("keyboard: shutdown abandoned: %w", ctx.Err())
	}
	return nil
}

// ListKeyboards enumerates currently attached keyboard devices, mapping an
// opaque device id to a display name. On platforms without a capture driver
// it returns ErrUnsupported.
func ListKeyboards() (map[DeviceID]string, error) {
	return listPlatformKeyboards()
}
