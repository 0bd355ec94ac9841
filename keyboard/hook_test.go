package keyboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeDriver scripts the platform layer: it reports a fixed registration
// status, then hands the test a way to feed transitions through the capture
// callback.
type fakeDriver struct {
	status Status

	mu   sync.Mutex
	emit func(RawEvent)

	stopped  chan struct{}
	died     chan struct{}
	stopOnce sync.Once
	dieOnce  sync.Once
}

func newFakeDriver(status Status) *fakeDriver {
	return &fakeDriver{
		status:  status,
		stopped: make(chan struct{}),
		died:    make(chan struct{}),
	}
}

func (d *fakeDriver) Run(_ Mode, emit func(RawEvent), ready chan<- Status) {
	d.mu.Lock()
	d.emit = emit
	d.mu.Unlock()
	ready <- d.status
	if d.status != StatusSuccess {
		return
	}
	select {
	case <-d.stopped:
	case <-d.died:
	}
}

func (d *fakeDriver) Stop() {
	d.stopOnce.Do(func() { close(d.stopped) })
}

// kill simulates the native side dying without Stop ever being called.
func (d *fakeDriver) kill() {
	d.dieOnce.Do(func() { close(d.died) })
}

func (d *fakeDriver) send(vk VirtualKey, tr Transition) {
	d.mu.Lock()
	emit := d.emit
	d.mu.Unlock()
	emit(RawEvent{VirtualKey: vk, Transition: tr})
}

func (d *fakeDriver) press(vk VirtualKey)   { d.send(vk, TransitionDown) }
func (d *fakeDriver) release(vk VirtualKey) { d.send(vk, TransitionUp) }

// recorder is a listener that hands dispatched events to the test in order.
type recorder struct {
	ch chan KeyEvent
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan KeyEvent, 64)}
}

func (r *recorder) KeyPressed(ev KeyEvent)  { r.ch <- ev }
func (r *recorder) KeyReleased(ev KeyEvent) { r.ch <- ev }

func (r *recorder) next(t *testing.T) KeyEvent {
	t.Helper()
	select {
	case ev := <-r.ch:
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for a dispatched event")
		return KeyEvent{}
	}
}

func (r *recorder) expectNone(t *testing.T) {
	t.Helper()
	select {
	case ev := <-r.ch:
		t.Fatalf("expected no event, got %v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func openTestHook(t *testing.T) (*Hook, *fakeDriver) {
	t.Helper()
	drv := newFakeDriver(StatusSuccess)
	hook, err := OpenDriver(context.Background(), drv, ModeDefault)
	if err != nil {
		t.Fatalf("open with healthy driver failed: %v", err)
	}
	t.Cleanup(func() { hook.Shutdown(context.Background()) })
	return hook, drv
}

func TestOpenHandshakeSuccess(t *testing.T) {
	hook, _ := openTestHook(t)

	if !hook.IsAlive() {
		t.Fatalf("expected hook to be alive after open")
	}
	if hook.State() != StateRunning {
		t.Fatalf("expected running state, got %v", hook.State())
	}
	if hook.Mode() != ModeDefault {
		t.Fatalf("expected default mode, got %v", hook.Mode())
	}
}

func TestOpenReportsRegistrationFailure(t *testing.T) {
	drv := newFakeDriver(Status(1404))
	hook, err := OpenDriver(context.Background(), drv, ModeDefault)
	if hook != nil {
		t.Fatalf("expected no hook on registration failure")
	}

	var regErr *RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected a RegistrationError, got %v", err)
	}
	if regErr.Status != 1404 {
		t.Fatalf("expected status 1404, got %d", regErr.Status)
	}
}

func TestOpenRespectsContextCancellation(t *testing.T) {
	drv := &silentDriver{stopped: make(chan struct{})}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	hook, err := OpenDriver(ctx, drv, ModeDefault)
	if hook != nil {
		t.Fatalf("expected no hook when the handshake is abandoned")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	select {
	case <-drv.stopped:
	case <-time.After(time.Second):
		t.Fatalf("expected the driver to be stopped after an abandoned handshake")
	}
}

// silentDriver never reports readiness, modeling a platform layer that
// hangs during registration.
type silentDriver struct {
	stopped  chan struct{}
	stopOnce sync.Once
}

func (d *silentDriver) Run(_ Mode, _ func(RawEvent), _ chan<- Status) {
	<-d.stopped
}

func (d *silentDriver) Stop() {
	d.stopOnce.Do(func() { close(d.stopped) })
}

func TestDispatchOrderAndModifierSnapshots(t *testing.T) {
	hook, drv := openTestHook(t)
	rec := newRecorder()
	hook.AddListener(rec)

	drv.press(VKLeftShift)
	drv.press(VKA)
	drv.release(VKA)
	drv.release(VKLeftShift)

	ev := rec.next(t)
	if ev.VirtualKey != VKLeftShift || ev.Transition != TransitionDown {
		t.Fatalf("expected left-shift down first, got %v", ev)
	}
	if !ev.Modifiers.Shift {
		t.Fatalf("expected shift flag on the shift press itself, got %v", ev.Modifiers)
	}

	ev = rec.next(t)
	if ev.VirtualKey != VKA || ev.Transition != TransitionDown {
		t.Fatalf("expected A down second, got %v", ev)
	}
	if !ev.Modifiers.Shift {
		t.Fatalf("expected shift flag while A is pressed, got %v", ev.Modifiers)
	}
	if !hook.IsKeyHeld(VKA) || !hook.IsKeyHeld(VKLeftShift) {
		t.Fatalf("expected both keys held after the second event")
	}

	ev = rec.next(t)
	if ev.VirtualKey != VKA || ev.Transition != TransitionUp {
		t.Fatalf("expected A up third, got %v", ev)
	}
	if !ev.Modifiers.Shift {
		t.Fatalf("expected shift flag still set on A release, got %v", ev.Modifiers)
	}
	if hook.IsKeyHeld(VKA) {
		t.Fatalf("expected A released after the third event")
	}

	ev = rec.next(t)
	if ev.VirtualKey != VKLeftShift || ev.Transition != TransitionUp {
		t.Fatalf("expected left-shift up last, got %v", ev)
	}
	if ev.Modifiers.Shift {
		t.Fatalf("expected shift flag cleared on its own release, got %v", ev.Modifiers)
	}
}

func TestEventsReachListenersInFIFOOrder(t *testing.T) {
	hook, drv := openTestHook(t)
	rec := newRecorder()
	hook.AddListener(rec)

	keys := []VirtualKey{VKA, vkB, VKSpace, VKF1, VKReturn}
	for _, vk := range keys {
		drv.press(vk)
		drv.release(vk)
	}

	for _, vk := range keys {
		down := rec.next(t)
		if down.VirtualKey != vk || down.Transition != TransitionDown {
			t.Fatalf("expected %s down, got %v", KeyName(vk), down)
		}
		up := rec.next(t)
		if up.VirtualKey != vk || up.Transition != TransitionUp {
			t.Fatalf("expected %s up, got %v", KeyName(vk), up)
		}
	}
}

func TestListenersRunInRegistrationOrder(t *testing.T) {
	hook, drv := openTestHook(t)

	order := make(chan int, 3)
	for i := 1; i <= 3; i++ {
		hook.AddListener(&ListenerFuncs{Pressed: func(KeyEvent) { order <- i }})
	}

	drv.press(VKA)

	for want := 1; want <= 3; want++ {
		select {
		case got := <-order:
			if got != want {
				t.Fatalf("expected listener %d to run, got %d", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for listener %d", want)
		}
	}
}

func TestPanickingListenerIsIsolated(t *testing.T) {
	hook, drv := openTestHook(t)

	hook.AddListener(&ListenerFuncs{Pressed: func(KeyEvent) { panic("bad listener") }})
	rec := newRecorder()
	hook.AddListener(rec)

	drv.press(VKA)
	drv.release(VKA)

	if ev := rec.next(t); ev.Transition != TransitionDown {
		t.Fatalf("expected the press to survive the earlier panic, got %v", ev)
	}
	if ev := rec.next(t); ev.Transition != TransitionUp {
		t.Fatalf("expected the release to survive the earlier panic, got %v", ev)
	}
	if !hook.IsAlive() {
		t.Fatalf("expected the dispatcher to keep running after a listener panic")
	}
}

func TestRemoveListenerStopsDelivery(t *testing.T) {
	hook, drv := openTestHook(t)
	rec := newRecorder()
	hook.AddListener(rec)

	drv.press(VKA)
	if ev := rec.next(t); ev.VirtualKey != VKA {
		t.Fatalf("expected the first press, got %v", ev)
	}

	hook.RemoveListener(rec)
	drv.release(VKA)
	drv.press(VKA)
	rec.expectNone(t)
}

func TestListenerAddedMidDispatchSeesNextEvent(t *testing.T) {
	hook, drv := openTestHook(t)

	late := newRecorder()
	var once sync.Once
	hook.AddListener(&ListenerFuncs{Pressed: func(KeyEvent) {
		once.Do(func() { hook.AddListener(late) })
	}})

	drv.press(VKA)
	drv.press(vkB)

	ev := late.next(t)
	if ev.VirtualKey != vkB {
		t.Fatalf("expected the late listener to first see the second press, got %v", ev)
	}
}

func TestHeldKeyQueriesFromInsideListener(t *testing.T) {
	hook, drv := openTestHook(t)

	result := make(chan bool, 1)
	hook.AddListener(&ListenerFuncs{Pressed: func(ev KeyEvent) {
		result <- ev.Hook.IsKeyHeld(ev.VirtualKey)
	}})

	drv.press(VKA)

	select {
	case held := <-result:
		if !held {
			t.Fatalf("expected the pressed key to be held during its own dispatch")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the listener")
	}
}

func TestOrphanReleaseIsANoOp(t *testing.T) {
	hook, drv := openTestHook(t)
	rec := newRecorder()
	hook.AddListener(rec)

	drv.release(VKA)

	ev := rec.next(t)
	if ev.Transition != TransitionUp {
		t.Fatalf("expected the orphan release to still be dispatched, got %v", ev)
	}
	if hook.IsKeyHeld(VKA) {
		t.Fatalf("expected no held state from an orphan release")
	}
}

func TestAreKeysHeldSemantics(t *testing.T) {
	hook, drv := openTestHook(t)
	rec := newRecorder()
	hook.AddListener(rec)

	if !hook.AreKeysHeld() {
		t.Fatalf("expected the empty query to be vacuously true")
	}

	drv.press(VKLeftControl)
	drv.press(vkC)
	rec.next(t)
	rec.next(t)

	if !hook.AreKeysHeld(VKLeftControl, vkC) {
		t.Fatalf("expected ctrl+c to be held")
	}
	if hook.AreKeysHeld(VKLeftControl, vkC, VKA) {
		t.Fatalf("expected the query to fail on the missing key")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	hook, _ := openTestHook(t)

	if err := hook.Shutdown(context.Background()); err != nil {
		t.Fatalf("first shutdown failed: %v", err)
	}
	if hook.IsAlive() {
		t.Fatalf("expected hook to be dead after shutdown")
	}

	start := time.Now()
	if err := hook.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("expected the second shutdown to return immediately, took %v", elapsed)
	}
	if hook.State() != StateStopped {
		t.Fatalf("expected stopped state, got %v", hook.State())
	}
}

func TestShutdownDiscardsQueuedEvents(t *testing.T) {
	hook, drv := openTestHook(t)

	// A stalled listener keeps the dispatcher busy while events pile up.
	gate := make(chan struct{})
	var once sync.Once
	hook.AddListener(&ListenerFuncs{Pressed: func(KeyEvent) {
		once.Do(func() { <-gate })
	}})
	rec := newRecorder()
	hook.AddListener(rec)

	drv.press(VKA)
	time.Sleep(50 * time.Millisecond) // let the dispatcher block on the gate
	drv.press(vkB)
	drv.press(vkC)

	done := make(chan error, 1)
	go func() { done <- hook.Shutdown(context.Background()) }()
	close(gate)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("shutdown failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("shutdown did not complete")
	}

	// Only the in-flight event was delivered; the queued ones were dropped.
	if ev := rec.next(t); ev.VirtualKey != VKA {
		t.Fatalf("expected the in-flight event, got %v", ev)
	}
	rec.expectNone(t)
}

// dyingDriver reports a successful registration and then returns from Run
// immediately, modeling a native hook that dies inside the handshake window
// before the opener has marked the hook running.
type dyingDriver struct{}

func (dyingDriver) Run(_ Mode, _ func(RawEvent), ready chan<- Status) {
	ready <- StatusSuccess
}

func (dyingDriver) Stop() {}

func TestDeathInsideHandshakeWindowIsObserved(t *testing.T) {
	// The interleaving is timing-dependent, so give the race many chances.
	for i := 0; i < 50; i++ {
		hook, err := OpenDriver(context.Background(), dyingDriver{}, ModeDefault)
		if err != nil {
			t.Fatalf("open with a dying driver failed: %v", err)
		}

		deadline := time.Now().Add(time.Second)
		for hook.IsAlive() {
			if time.Now().After(deadline) {
				t.Fatalf("hook still reports alive after the driver died during the handshake, state %v", hook.State())
			}
			time.Sleep(time.Millisecond)
		}
		if hook.State() != StateStopped {
			t.Fatalf("expected stopped state after handshake-window death, got %v", hook.State())
		}
		if err := hook.Shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown after handshake-window death failed: %v", err)
		}
	}
}

func TestNativeDeathTurnsHookDead(t *testing.T) {
	hook, drv := openTestHook(t)

	drv.kill()

	deadline := time.Now().Add(time.Second)
	for hook.IsAlive() {
		if time.Now().After(deadline) {
			t.Fatalf("expected the hook to notice native death")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := hook.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown after native death failed: %v", err)
	}
}

func TestOpenRejectsNilDriver(t *testing.T) {
	if _, err := OpenDriver(context.Background(), nil, ModeDefault); err == nil {
		t.Fatalf("expected an error for a nil driver")
	}
}

const (
	vkB = VirtualKey('B')
	vkC = VirtualKey('C')
)
