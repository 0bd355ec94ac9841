package keyboard

import (
	"errors"
	"fmt"
)

// Mode selects how the platform layer captures input.
type Mode int

const (
	// ModeDefault uses the platform's low-level hook. Every key transition
	// is observed but cannot be attributed to a particular device.
	ModeDefault Mode = iota
	// ModeRaw uses the platform's raw-input path, which carries per-device
	// information where the platform provides it.
	ModeRaw
)

func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeRaw:
		return "raw"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Status is the outcome of native hook registration. Zero means the hook is
// live. Positive values are platform error codes passed through unchanged;
// negative values are the driver-level failures below.
type Status int

const (
	StatusSuccess       Status = 0
	StatusUnsupported   Status = -1 // no capture driver for this platform
	StatusNoDevices     Status = -2 // no capturable keyboard found
	StatusInstallFailed Status = -3 // platform refused the hook without an error code
)

// RawEvent is one key transition as delivered by the platform layer, before
// modifier tracking and dispatch.
type RawEvent struct {
	VirtualKey VirtualKey
	Transition Transition
	Char       rune
	Device     DeviceID
}

// Driver is the platform capture layer underneath a Hook. Implementations
// are single-use: one Run per value.
type Driver interface {
	// Run installs the native hook and services it until Stop is called.
	// The registration outcome is reported exactly once on ready, before
	// any event is emitted; when the outcome is not StatusSuccess, Run
	// returns immediately afterwards. Each captured transition is passed
	// to emit from the platform's callback context, one at a time.
	Run(mode Mode, emit func(RawEvent), ready chan<- Status)

	// Stop asks a running hook to unregister, causing Run to return. Safe
	// to call at any point, including before readiness or more than once.
	Stop()
}

// ErrUnsupported reports that this platform has no capture driver.
var ErrUnsupported = errors.New("keyboard: platform not supported")

// RegistrationError is returned by Open when the platform layer could not
// install the hook.
type RegistrationError struct {
	Status Status
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("keyboard: low-level hook registration failed (status %d)", e.Status)
}
