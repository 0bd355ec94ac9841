//go:build linux

package keyboard

import (
	"fmt"
	"sync"

	evdev "github.com/holoplot/go-evdev"
)

// vkEvdevBase tags evdev codes with no virtual-key equivalent so they stay
// distinguishable from the canonical table.
const vkEvdevBase VirtualKey = 0xE000

// linuxDriver captures keys by reading every keyboard-capable device under
// /dev/input. One reader goroutine per device; emit calls are serialized
// through emitMu to keep the one-event-at-a-time contract.
type linuxDriver struct {
	emitMu sync.Mutex

	done     chan struct{}
	stopOnce sync.Once
}

func newPlatformDriver() Driver {
	return &linuxDriver{done: make(chan struct{})}
}

func (d *linuxDriver) Run(mode Mode, emit func(RawEvent), ready chan<- Status) {
	devices, err := openKeyboards()
	if err != nil || len(devices) == 0 {
		ready <- StatusNoDevices
		return
	}
	ready <- StatusSuccess

	var wg sync.WaitGroup
	for i, dev := range devices {
		// Default mode merges every keyboard into one stream; raw mode
		// keeps them apart by enumeration order.
		id := DeviceID(0)
		if mode == ModeRaw {
			id = DeviceID(i + 1)
		}
		wg.Add(1)
		go func(dev *evdev.InputDevice, id DeviceID) {
			defer wg.Done()
			d.readDevice(dev, id, emit)
		}(dev, id)
	}

	<-d.done
	for _, dev := range devices {
		dev.Close() // unblocks ReadOne
	}
	wg.Wait()
}

func (d *linuxDriver) Stop() {
	d.stopOnce.Do(func() { close(d.done) })
}

func (d *linuxDriver) readDevice(dev *evdev.InputDevice, id DeviceID, emit func(RawEvent)) {
	for {
		ev, err := dev.ReadOne()
		if err != nil {
			// Closed during Stop, or the device went away.
			return
		}
		if ev.Type != evdev.EV_KEY {
			continue
		}
		var tr Transition
		switch ev.Value {
		case 0:
			tr = TransitionUp
		case 1, 2:
			// 2 is autorepeat, forwarded as DOWN like typematic repeats.
			tr = TransitionDown
		default:
			continue
		}
		vk := virtualKeyFromEvdev(ev.Code)
		d.emitMu.Lock()
		emit(RawEvent{VirtualKey: vk, Transition: tr, Char: keyChar(vk), Device: id})
		d.emitMu.Unlock()
	}
}

// openKeyboards picks the devices that expose both KEY_A and KEY_ENTER,
// which separates physical keyboards from buttons and remotes.
func openKeyboards() ([]*evdev.InputDevice, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}

	var kbds []*evdev.InputDevice
	for _, p := range paths {
		dev, err := evdev.Open(p.Path)
		if err != nil {
			continue
		}
		if isKeyboard(dev) {
			kbds = append(kbds, dev)
		} else {
			dev.Close()
		}
	}
	return kbds, nil
}

func isKeyboard(dev *evdev.InputDevice) bool {
	hasA := false
	hasEnter := false
	for _, c := range dev.CapableEvents(evdev.EV_KEY) {
		if c == evdev.KEY_A {
			hasA = true
		}
		if c == evdev.KEY_ENTER {
			hasEnter = true
		}
	}
	return hasA && hasEnter
}

func listPlatformKeyboards() (map[DeviceID]string, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}

	keyboards := make(map[DeviceID]string)
	id := DeviceID(0)
	for _, p := range paths {
		dev, err := evdev.Open(p.Path)
		if err != nil {
			continue
		}
		ok := isKeyboard(dev)
		dev.Close()
		if !ok {
			continue
		}
		id++
		name := p.Name
		if name == "" {
			name = p.Path
		}
		keyboards[id] = name
	}
	return keyboards, nil
}

func keyChar(vk VirtualKey) rune {
	switch {
	case vk >= VKA && vk <= VKZ:
		return rune('A' + vk - VKA)
	case vk >= VK0 && vk <= VK9:
		return rune('0' + vk - VK0)
	case vk == VKSpace:
		return ' '
	}
	return 0
}

// virtualKeyFromEvdev translates kernel key codes to the canonical
// virtual-key numbering. Codes outside the table are passed through with
// the evdev tag bit set.
func virtualKeyFromEvdev(code evdev.EvCode) VirtualKey {
	if vk, ok := evdevToVirtualKey[code]; ok {
		return vk
	}
	return vkEvdevBase | VirtualKey(uint16(code)&0x0FFF)
}

// Virtual-key codes for letters and digits are their ASCII values.
var evdevToVirtualKey = map[evdev.EvCode]VirtualKey{
	evdev.KEY_ESC:        VKEscape,
	evdev.KEY_1:          VirtualKey('1'),
	evdev.KEY_2:          VirtualKey('2'),
	evdev.KEY_3:          VirtualKey('3'),
	evdev.KEY_4:          VirtualKey('4'),
	evdev.KEY_5:          VirtualKey('5'),
	evdev.KEY_6:          VirtualKey('6'),
	evdev.KEY_7:          VirtualKey('7'),
	evdev.KEY_8:          VirtualKey('8'),
	evdev.KEY_9:          VirtualKey('9'),
	evdev.KEY_0:          VirtualKey('0'),
	evdev.KEY_BACKSPACE:  VKBack,
	evdev.KEY_TAB:        VKTab,
	evdev.KEY_Q:          VirtualKey('Q'),
	evdev.KEY_W:          VirtualKey('W'),
	evdev.KEY_E:          VirtualKey('E'),
	evdev.KEY_R:          VirtualKey('R'),
	evdev.KEY_T:          VirtualKey('T'),
	evdev.KEY_Y:          VirtualKey('Y'),
	evdev.KEY_U:          VirtualKey('U'),
	evdev.KEY_I:          VirtualKey('I'),
	evdev.KEY_O:          VirtualKey('O'),
	evdev.KEY_P:          VirtualKey('P'),
	evdev.KEY_ENTER:      VKReturn,
	evdev.KEY_LEFTCTRL:   VKLeftControl,
	evdev.KEY_A:          VirtualKey('A'),
	evdev.KEY_S:          VirtualKey('S'),
	evdev.KEY_D:          VirtualKey('D'),
	evdev.KEY_F:          VirtualKey('F'),
	evdev.KEY_G:          VirtualKey('G'),
	evdev.KEY_H:          VirtualKey('H'),
	evdev.KEY_J:          VirtualKey('J'),
	evdev.KEY_K:          VirtualKey('K'),
	evdev.KEY_L:          VirtualKey('L'),
	evdev.KEY_LEFTSHIFT:  VKLeftShift,
	evdev.KEY_Z:          VirtualKey('Z'),
	evdev.KEY_X:          VirtualKey('X'),
	evdev.KEY_C:          VirtualKey('C'),
	evdev.KEY_V:          VirtualKey('V'),
	evdev.KEY_B:          VirtualKey('B'),
	evdev.KEY_N:          VirtualKey('N'),
	evdev.KEY_M:          VirtualKey('M'),
	evdev.KEY_RIGHTSHIFT: VKRightShift,
	evdev.KEY_LEFTALT:    VKLeftMenu,
	evdev.KEY_SPACE:      VKSpace,
	evdev.KEY_CAPSLOCK:   VKCapital,
	evdev.KEY_F1:         VKF1,
	evdev.KEY_F2:         VKF1 + 1,
	evdev.KEY_F3:         VKF1 + 2,
	evdev.KEY_F4:         VKF1 + 3,
	evdev.KEY_F5:         VKF1 + 4,
	evdev.KEY_F6:         VKF1 + 5,
	evdev.KEY_F7:         VKF1 + 6,
	evdev.KEY_F8:         VKF1 + 7,
	evdev.KEY_F9:         VKF1 + 8,
	evdev.KEY_F10:        VKF1 + 9,
	evdev.KEY_F11:        VKF1 + 10,
	evdev.KEY_F12:        VKF1 + 11,
	evdev.KEY_NUMLOCK:    VKNumLock,
	evdev.KEY_SCROLLLOCK: VKScroll,
	evdev.KEY_RIGHTCTRL:  VKRightControl,
	evdev.KEY_RIGHTALT:   VKRightMenu,
	evdev.KEY_HOME:       VKHome,
	evdev.KEY_UP:         VKUp,
	evdev.KEY_PAGEUP:     VKPrior,
	evdev.KEY_LEFT:       VKLeft,
	evdev.KEY_RIGHT:      VKRight,
	evdev.KEY_END:        VKEnd,
	evdev.KEY_DOWN:       VKDown,
	evdev.KEY_PAGEDOWN:   VKNext,
	evdev.KEY_INSERT:     VKInsert,
	evdev.KEY_DELETE:     VKDelete,
	evdev.KEY_PAUSE:      VKPause,
	evdev.KEY_LEFTMETA:   VKLeftWin,
	evdev.KEY_RIGHTMETA:  VKRightWin,
	evdev.KEY_COMPOSE:    VKApps,
	evdev.KEY_SYSRQ:      VKSnapshot,
	evdev.KEY_KP0:        VKNumpad0,
	evdev.KEY_KP1:        VKNumpad0 + 1,
	evdev.KEY_KP2:        VKNumpad0 + 2,
	evdev.KEY_KP3:        VKNumpad0 + 3,
	evdev.KEY_KP4:        VKNumpad0 + 4,
	evdev.KEY_KP5:        VKNumpad0 + 5,
	evdev.KEY_KP6:        VKNumpad0 + 6,
	evdev.KEY_KP7:        VKNumpad0 + 7,
	evdev.KEY_KP8:        VKNumpad0 + 8,
	evdev.KEY_KP9:        VKNumpad0 + 9,
	evdev.KEY_KPASTERISK: VKMultiply,
	evdev.KEY_KPPLUS:     VKAdd,
	evdev.KEY_KPMINUS:    VKSubtract,
	evdev.KEY_KPDOT:      VKDecimal,
	evdev.KEY_KPSLASH:    VKDivide,
}
