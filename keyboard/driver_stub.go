//go:build !windows && !linux

package keyboard

// stubDriver stands in on platforms without a capture implementation, so
// Open fails at the handshake instead of at link time.
type stubDriver struct{}

func newPlatformDriver() Driver {
	return stubDriver{}
}

func (stubDriver) Run(_ Mode, _ func(RawEvent), ready chan<- Status) {
	ready <- StatusUnsupported
}

func (stubDriver) Stop() {}

func listPlatformKeyboards() (map[DeviceID]string, error) {
	return nil, ErrUnsupported
}
