package keyboard

// modifierState tracks the live modifier flags for one hook. It is written
// only from the capture callback goroutine, immediately before each event is
// built, and copied into the event, so the fields need no lock.
type modifierState struct {
	mods     Modifiers
	extended bool
}

// apply folds one raw transition into the flags. Right-hand variants drive
// the extended-key flag in addition to their semantic flag; left-hand and
// generic variants leave the extended flag alone. Non-modifier codes change
// nothing.
func (m *modifierState) apply(code VirtualKey, down bool) {
	switch code {
	case VKRightShift:
		m.extended = down
		m.mods.Shift = down
	case VKShift, VKLeftShift:
		m.mods.Shift = down
	case VKRightControl:
		m.extended = down
		m.mods.Control = down
	case VKControl, VKLeftControl:
		m.mods.Control = down
	case VKRightMenu:
		m.extended = down
		m.mods.Menu = down
	case VKMenu, VKLeftMenu:
		m.mods.Menu = down
	case VKRightWin:
		m.extended = down
		m.mods.Win = down
	case VKLeftWin:
		m.mods.Win = down
	}
}
