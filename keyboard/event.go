package keyboard

import (
	"fmt"
	"strings"
	"time"
)

// Transition says whether a key event is a press or a release.
type Transition int

const (
	TransitionDown Transition = iota
	TransitionUp
)

func (t Transition) String() string {
	if t == TransitionDown {
		return "DOWN"
	}
	return "UP"
}

// Modifiers is the modifier-key snapshot carried by every event, taken at
// the moment the event was captured.
type Modifiers struct {
	Shift   bool
	Control bool
	Menu    bool
	Win     bool
}

func (m Modifiers) String() string {
	var parts []string
	if m.Shift {
		parts = append(parts, "shift")
	}
	if m.Control {
		parts = append(parts, "ctrl")
	}
	if m.Menu {
		parts = append(parts, "alt")
	}
	if m.Win {
		parts = append(parts, "win")
	}
	return strings.Join(parts, "+")
}

// KeyEvent is one dispatched key transition. Events are immutable values,
// built once per native callback and handed to each listener in turn; a
// listener must not retain references into an event beyond its callback.
type KeyEvent struct {
	VirtualKey VirtualKey
	Transition Transition

	// Char is the printable character for the key, or zero when the key
	// produces none. Best effort; layout-dependent.
	Char rune

	Modifiers Modifiers

	// Extended reports whether a right-hand modifier variant is currently
	// engaged (the extended-key flag).
	Extended bool

	// Device is the originating keyboard in raw capture mode, zero otherwise.
	Device DeviceID

	Time time.Time

	// Hook is the instance that dispatched this event, usable for held-key
	// queries from inside a listener.
	Hook *Hook
}

func (e KeyEvent) String() string {
	var b strings.Builder
	b.WriteString(KeyName(e.VirtualKey))
	b.WriteByte(' ')
	b.WriteString(e.Transition.String())
	if e.Char != 0 {
		fmt.Fprintf(&b, " %q", e.Char)
	}
	if mods := e.Modifiers.String(); mods != "" {
		b.WriteString(" [")
		b.WriteString(mods)
		b.WriteByte(']')
	}
	return b.String()
}

// Listener receives dispatched key events. Callbacks run on the hook's
// dispatcher goroutine, one event at a time, in registration order; a slow
// listener delays every listener behind it.
type Listener interface {
	KeyPressed(KeyEvent)
	KeyReleased(KeyEvent)
}

// ListenerFuncs adapts plain functions to the Listener interface. Nil
// callbacks are skipped. Register and remove the same pointer, since
// listeners are identified by interface equality.
type ListenerFuncs struct {
	Pressed  func(KeyEvent)
	Released func(KeyEvent)
}

func (l *ListenerFuncs) KeyPressed(ev KeyEvent) {
	if l.Pressed != nil {
		l.Pressed(ev)
	}
}

func (l *ListenerFuncs) KeyReleased(ev KeyEvent) {
	if l.Released != nil {
		l.Released(ev)
	}
}
