package keyboard

import "testing"

func TestKeyName(t *testing.T) {
	cases := []struct {
		code VirtualKey
		want string
	}{
		{VKReturn, "enter"},
		{VKLeftShift, "left-shift"},
		{VKA, "a"},
		{VK0 + 7, "7"},
		{VKF1 + 11, "f12"},
		{VKNumpad0 + 3, "numpad-3"},
		{0xE7, "0xE7"},
	}
	for _, tc := range cases {
		if got := KeyName(tc.code); got != tc.want {
			t.Fatalf("KeyName(0x%02X): expected %q, got %q", uint16(tc.code), tc.want, got)
		}
	}
}

func TestModifiersString(t *testing.T) {
	if got := (Modifiers{}).String(); got != "" {
		t.Fatalf("expected empty string for no modifiers, got %q", got)
	}
	m := Modifiers{Shift: true, Control: true, Menu: true, Win: true}
	if got := m.String(); got != "shift+ctrl+alt+win" {
		t.Fatalf("expected all modifiers joined, got %q", got)
	}
}

func TestKeyEventString(t *testing.T) {
	ev := KeyEvent{
		VirtualKey: VKA,
		Transition: TransitionDown,
		Char:       'A',
		Modifiers:  Modifiers{Shift: true},
	}
	if got := ev.String(); got != `a DOWN 'A' [shift]` {
		t.Fatalf("unexpected event string %q", got)
	}

	up := KeyEvent{VirtualKey: VKEscape, Transition: TransitionUp}
	if got := up.String(); got != "esc UP" {
		t.Fatalf("unexpected event string %q", got)
	}
}

func TestListenerFuncsSkipNilCallbacks(t *testing.T) {
	var calls int
	l := &ListenerFuncs{Pressed: func(KeyEvent) { calls++ }}

	l.KeyPressed(KeyEvent{})
	l.KeyReleased(KeyEvent{}) // nil Released must not panic

	if calls != 1 {
		t.Fatalf("expected one press callback, got %d", calls)
	}
}
