//go:build windows

package keyboard

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	setWindowsHookEx        = user32.NewProc("SetWindowsHookExW")
	callNextHookEx          = user32.NewProc("CallNextHookEx")
	unhookWindowsHookEx     = user32.NewProc("UnhookWindowsHookEx")
	peekMessage             = user32.NewProc("PeekMessageW")
	translateMessage        = user32.NewProc("TranslateMessage")
	dispatchMessage         = user32.NewProc("DispatchMessageW")
	mapVirtualKey           = user32.NewProc("MapVirtualKeyW")
	registerClassEx         = user32.NewProc("RegisterClassExW")
	createWindowEx          = user32.NewProc("CreateWindowExW")
	destroyWindow           = user32.NewProc("DestroyWindow")
	defWindowProc           = user32.NewProc("DefWindowProcW")
	registerRawInputDevices = user32.NewProc("RegisterRawInputDevices")
	getRawInputData         = user32.NewProc("GetRawInputData")
	getRawInputDeviceList   = user32.NewProc("GetRawInputDeviceList")
	getRawInputDeviceInfo   = user32.NewProc("GetRawInputDeviceInfoW")
	getModuleHandle         = kernel32.NewProc("GetModuleHandleW")
)

const (
	whKeyboardLL = 13
	wmKeydown    = 0x0100
	wmKeyup      = 0x0101
	wmSyskeydown = 0x0104
	wmSyskeyup   = 0x0105
	wmInput      = 0x00FF
	pmRemove     = 0x0001

	llkhfExtended = 0x01

	hidUsagePageGeneric = 0x01
	hidUsageKeyboard    = 0x06
	ridevInputsink      = 0x00000100
	ridInput            = 0x10000003
	ridiDeviceName      = 0x20000007
	rimTypeKeyboard     = 1
	rikeyE0             = 0x02

	mapvkVkToChar = 2

	errClassAlreadyExists = 1410
)

// HWND_MESSAGE parents a message-only window, which receives WM_INPUT
// without ever appearing on screen.
const hwndMessage = ^uintptr(2) // (HWND)-3

type kbdllhookstruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

type wndclassex struct {
	cbSize        uint32
	style         uint32
	lpfnWndProc   uintptr
	cbClsExtra    int32
	cbWndExtra    int32
	hInstance     uintptr
	hIcon         uintptr
	hCursor       uintptr
	hbrBackground uintptr
	lpszMenuName  *uint16
	lpszClassName *uint16
	hIconSm       uintptr
}

type rawinputdevice struct {
	usUsagePage uint16
	usUsage     uint16
	dwFlags     uint32
	hwndTarget  uintptr
}

type rawinputheader struct {
	dwType  uint32
	dwSize  uint32
	hDevice uintptr
	wParam  uintptr
}

type rawkeyboard struct {
	makeCode         uint16
	flags            uint16
	reserved         uint16
	vKey             uint16
	message          uint32
	extraInformation uint32
}

type rawinput struct {
	header   rawinputheader
	keyboard rawkeyboard
}

type rawinputdevicelist struct {
	hDevice uintptr
	dwType  uint32
}

// windowsDriver captures keys either through a WH_KEYBOARD_LL hook (default
// mode) or through the Raw Input API on a message-only window (raw mode).
// Both are installed and serviced on a single locked OS thread, so emit is
// invoked serially.
type windowsDriver struct {
	mu   sync.Mutex
	hook uintptr
	hwnd uintptr
	emit func(RawEvent)

	done     chan struct{}
	stopOnce sync.Once
}

func newPlatformDriver() Driver {
	return &windowsDriver{done: make(chan struct{})}
}

func (d *windowsDriver) Run(mode Mode, emit func(RawEvent), ready chan<- Status) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	d.emit = emit

	var st Status
	if mode == ModeRaw {
		st = d.installRawInput()
	} else {
		st = d.installHook()
	}
	ready <- st
	if st != StatusSuccess {
		return
	}

	d.messageLoop()
	d.teardown()
}

func (d *windowsDriver) Stop() {
	d.stopOnce.Do(func() { close(d.done) })
}

func (d *windowsDriver) installHook() Status {
	hookProc := func(nCode int32, wParam uintptr, lParam uintptr) uintptr {
		if nCode >= 0 {
			d.handleHookKey(wParam, (*kbdllhookstruct)(unsafe.Pointer(lParam)))
		}
		r, _, _ := callNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
		return r
	}

	hook, _, err := setWindowsHookEx.Call(
		whKeyboardLL,
		windows.NewCallback(hookProc),
		0,
		0,
	)
	if hook == 0 {
		return errnoStatus(err)
	}

	d.mu.Lock()
	d.hook = hook
	d.mu.Unlock()
	return StatusSuccess
}

func (d *windowsDriver) handleHookKey(wParam uintptr, kb *kbdllhookstruct) {
	var tr Transition
	switch wParam {
	case wmKeydown, wmSyskeydown:
		tr = TransitionDown
	case wmKeyup, wmSyskeyup:
		tr = TransitionUp
	default:
		return
	}
	vk := normalizeHookKey(VirtualKey(kb.vkCode), kb.flags)
	// The low-level hook observes every keyboard but cannot say which one.
	d.emit(RawEvent{VirtualKey: vk, Transition: tr, Char: keyChar(vk)})
}

// normalizeHookKey resolves the generic control and menu codes the hook
// reports on some paths: the extended-key bit says which side the key is on.
func normalizeHookKey(vk VirtualKey, flags uint32) VirtualKey {
	extended := flags&llkhfExtended != 0
	switch vk {
	case VKControl:
		if extended {
			return VKRightControl
		}
		return VKLeftControl
	case VKMenu:
		if extended {
			return VKRightMenu
		}
		return VKLeftMenu
	}
	return vk
}

func (d *windowsDriver) installRawInput() Status {
	className, err := windows.UTF16PtrFromString("KeytapRawInput")
	if err != nil {
		return StatusInstallFailed
	}
	hinst, _, _ := getModuleHandle.Call(0)

	wc := wndclassex{
		cbSize:        uint32(unsafe.Sizeof(wndclassex{})),
		lpfnWndProc:   windows.NewCallback(d.windowProc),
		hInstance:     hinst,
		lpszClassName: className,
	}
	if atom, _, regErr := registerClassEx.Call(uintptr(unsafe.Pointer(&wc))); atom == 0 {
		// A previous hook in this process already registered the class.
		var errno windows.Errno
		if !errors.As(regErr, &errno) || errno != errClassAlreadyExists {
			return errnoStatus(regErr)
		}
	}

	hwnd, _, winErr := createWindowEx.Call(
		0,
		uintptr(unsafe.Pointer(className)),
		0,
		0,
		0, 0, 0, 0,
		hwndMessage,
		0,
		hinst,
		0,
	)
	if hwnd == 0 {
		return errnoStatus(winErr)
	}

	rid := rawinputdevice{
		usUsagePage: hidUsagePageGeneric,
		usUsage:     hidUsageKeyboard,
		dwFlags:     ridevInputsink,
		hwndTarget:  hwnd,
	}
	if ok, _, ridErr := registerRawInputDevices.Call(
		uintptr(unsafe.Pointer(&rid)),
		1,
		uintptr(unsafe.Sizeof(rid)),
	); ok == 0 {
		destroyWindow.Call(hwnd)
		return errnoStatus(ridErr)
	}

	d.mu.Lock()
	d.hwnd = hwnd
	d.mu.Unlock()
	return StatusSuccess
}

func (d *windowsDriver) windowProc(hwnd uintptr, message uint32, wParam, lParam uintptr) uintptr {
	if message == wmInput {
		d.handleRawInput(lParam)
		return 0
	}
	r, _, _ := defWindowProc.Call(hwnd, uintptr(message), wParam, lParam)
	return r
}

func (d *windowsDriver) handleRawInput(lParam uintptr) {
	var size uint32
	headerSize := unsafe.Sizeof(rawinputheader{})

	r, _, _ := getRawInputData.Call(lParam, ridInput, 0, uintptr(unsafe.Pointer(&size)), uintptr(headerSize))
	if r == ^uintptr(0) || size == 0 {
		return
	}
	buf := make([]byte, size)
	r, _, _ = getRawInputData.Call(lParam, ridInput, uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&size)), uintptr(headerSize))
	if r == ^uintptr(0) || r == 0 {
		return
	}

	ri := (*rawinput)(unsafe.Pointer(&buf[0]))
	if ri.header.dwType != rimTypeKeyboard {
		return
	}

	var tr Transition
	switch ri.keyboard.message {
	case wmKeydown, wmSyskeydown:
		tr = TransitionDown
	case wmKeyup, wmSyskeyup:
		tr = TransitionUp
	default:
		return
	}
	vk := VirtualKey(ri.keyboard.vKey)
	if vk == 0xFF {
		// Scancode escape marker, not a key.
		return
	}
	vk = normalizeRawKey(vk, ri.keyboard.makeCode, ri.keyboard.flags)
	d.emit(RawEvent{
		VirtualKey: vk,
		Transition: tr,
		Char:       keyChar(vk),
		Device:     DeviceID(ri.header.hDevice),
	})
}

// normalizeRawKey resolves the generic modifier codes raw input reports:
// shift by scancode, control and menu by the E0 escape flag.
func normalizeRawKey(vk VirtualKey, makeCode uint16, flags uint16) VirtualKey {
	switch vk {
	case VKShift:
		if makeCode == 0x36 {
			return VKRightShift
		}
		return VKLeftShift
	case VKControl:
		if flags&rikeyE0 != 0 {
			return VKRightControl
		}
		return VKLeftControl
	case VKMenu:
		if flags&rikeyE0 != 0 {
			return VKRightMenu
		}
		return VKLeftMenu
	}
	return vk
}

func (d *windowsDriver) messageLoop() {
	var m msg
	for {
		select {
		case <-d.done:
			return
		default:
			r, _, _ := peekMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0, pmRemove)
			if r != 0 {
				translateMessage.Call(uintptr(unsafe.Pointer(&m)))
				dispatchMessage.Call(uintptr(unsafe.Pointer(&m)))
				continue
			}
			// Nothing queued; hook callbacks arrive during the next peek.
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// teardown runs on the same locked thread that installed the hook and
// created the window, as both require their owning thread.
func (d *windowsDriver) teardown() {
	d.mu.Lock()
	hook, hwnd := d.hook, d.hwnd
	d.hook, d.hwnd = 0, 0
	d.mu.Unlock()

	if hook != 0 {
		unhookWindowsHookEx.Call(hook)
	}
	if hwnd != 0 {
		destroyWindow.Call(hwnd)
	}
}

func keyChar(vk VirtualKey) rune {
	r, _, _ := mapVirtualKey.Call(uintptr(vk), mapvkVkToChar)
	ch := rune(uint32(r) &^ 0x80000000) // dead keys carry the high bit
	if ch < 0x20 {
		return 0
	}
	return ch
}

func errnoStatus(err error) Status {
	var errno windows.Errno
	if errors.As(err, &errno) && errno != 0 {
		return Status(errno)
	}
	return StatusInstallFailed
}

func listPlatformKeyboards() (map[DeviceID]string, error) {
	var count uint32
	entrySize := unsafe.Sizeof(rawinputdevicelist{})

	r, _, err := getRawInputDeviceList.Call(0, uintptr(unsafe.Pointer(&count)), uintptr(entrySize))
	if r == ^uintptr(0) {
		return nil, fmt.Errorf("GetRawInputDeviceList failed: %w", err)
	}
	keyboards := make(map[DeviceID]string)
	if count == 0 {
		return keyboards, nil
	}

	list := make([]rawinputdevicelist, count)
	r, _, err = getRawInputDeviceList.Call(uintptr(unsafe.Pointer(&list[0])), uintptr(unsafe.Pointer(&count)), uintptr(entrySize))
	if r == ^uintptr(0) {
		return nil, fmt.Errorf("GetRawInputDeviceList failed: %w", err)
	}

	for _, dev := range list[:r] {
		if dev.dwType != rimTypeKeyboard {
			continue
		}
		keyboards[DeviceID(dev.hDevice)] = rawDeviceName(dev.hDevice)
	}
	return keyboards, nil
}

func rawDeviceName(h uintptr) string {
	var size uint32
	getRawInputDeviceInfo.Call(h, ridiDeviceName, 0, uintptr(unsafe.Pointer(&size)))
	if size == 0 {
		return ""
	}
	buf := make([]uint16, size)
	r, _, _ := getRawInputDeviceInfo.Call(h, ridiDeviceName, uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&size)))
	if r == ^uintptr(0) {
		return ""
	}
	return windows.UTF16ToString(buf)
}
