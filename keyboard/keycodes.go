package keyboard

import (
	"fmt"
	"strconv"
)

// VirtualKey identifies a key independent of character encoding, using the
// Windows virtual-key numbering on every platform.
type VirtualKey uint16

// DeviceID identifies the keyboard a raw event originated from. Zero when
// the capture mode cannot attribute events to a device.
type DeviceID uint64

// Modifier and control key codes.
const (
	VKBack   VirtualKey = 0x08
	VKTab    VirtualKey = 0x09
	VKReturn VirtualKey = 0x0D

	VKShift   VirtualKey = 0x10
	VKControl VirtualKey = 0x11
	VKMenu    VirtualKey = 0x12

	VKPause    VirtualKey = 0x13
	VKCapital  VirtualKey = 0x14
	VKEscape   VirtualKey = 0x1B
	VKSpace    VirtualKey = 0x20
	VKPrior    VirtualKey = 0x21
	VKNext     VirtualKey = 0x22
	VKEnd      VirtualKey = 0x23
	VKHome     VirtualKey = 0x24
	VKLeft     VirtualKey = 0x25
	VKUp       VirtualKey = 0x26
	VKRight    VirtualKey = 0x27
	VKDown     VirtualKey = 0x28
	VKSnapshot VirtualKey = 0x2C
	VKInsert   VirtualKey = 0x2D
	VKDelete   VirtualKey = 0x2E

	VKLeftWin  VirtualKey = 0x5B
	VKRightWin VirtualKey = 0x5C
	VKApps     VirtualKey = 0x5D

	VKNumLock VirtualKey = 0x90
	VKScroll  VirtualKey = 0x91

	VKLeftShift    VirtualKey = 0xA0
	VKRightShift   VirtualKey = 0xA1
	VKLeftControl  VirtualKey = 0xA2
	VKRightControl VirtualKey = 0xA3
	VKLeftMenu     VirtualKey = 0xA4
	VKRightMenu    VirtualKey = 0xA5
)

// Digit and letter codes match their ASCII values.
const (
	VK0 VirtualKey = 0x30
	VK9 VirtualKey = 0x39
	VKA VirtualKey = 0x41
	VKZ VirtualKey = 0x5A
)

// Function keys.
const (
	VKF1  VirtualKey = 0x70
	VKF12 VirtualKey = 0x7B
)

// Numpad.
const (
	VKNumpad0  VirtualKey = 0x60
	VKNumpad9  VirtualKey = 0x69
	VKMultiply VirtualKey = 0x6A
	VKAdd      VirtualKey = 0x6B
	VKSubtract VirtualKey = 0x6D
	VKDecimal  VirtualKey = 0x6E
	VKDivide   VirtualKey = 0x6F
)

var keyNames = map[VirtualKey]string{
	VKBack:         "backspace",
	VKTab:          "tab",
	VKReturn:       "enter",
	VKShift:        "shift",
	VKControl:      "ctrl",
	VKMenu:         "alt",
	VKPause:        "pause",
	VKCapital:      "caps-lock",
	VKEscape:       "esc",
	VKSpace:        "space",
	VKPrior:        "page-up",
	VKNext:         "page-down",
	VKEnd:          "end",
	VKHome:         "home",
	VKLeft:         "left",
	VKUp:           "up",
	VKRight:        "right",
	VKDown:         "down",
	VKSnapshot:     "print-screen",
	VKInsert:       "insert",
	VKDelete:       "delete",
	VKLeftWin:      "left-win",
	VKRightWin:     "right-win",
	VKApps:         "menu",
	VKNumLock:      "num-lock",
	VKScroll:       "scroll-lock",
	VKLeftShift:    "left-shift",
	VKRightShift:   "right-shift",
	VKLeftControl:  "left-ctrl",
	VKRightControl: "right-ctrl",
	VKLeftMenu:     "left-alt",
	VKRightMenu:    "right-alt",
	VKMultiply:     "numpad-*",
	VKAdd:          "numpad-+",
	VKSubtract:     "numpad--",
	VKDecimal:      "numpad-.",
	VKDivide:       "numpad-/",
}

func init() {
	for c := VKA; c <= VKZ; c++ {
		keyNames[c] = string(rune('a' + c - VKA))
	}
	for c := VK0; c <= VK9; c++ {
		keyNames[c] = string(rune('0' + c - VK0))
	}
	for i := VirtualKey(0); i < 12; i++ {
		keyNames[VKF1+i] = "f" + strconv.Itoa(int(i)+1)
	}
	for i := VirtualKey(0); i < 10; i++ {
		keyNames[VKNumpad0+i] = "numpad-" + strconv.Itoa(int(i))
	}
}

// KeyName returns a readable name for code, or its hex form when the code
// is not in the table.
func KeyName(code VirtualKey) string {
	if name, ok := keyNames[code]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", uint16(code))
}
