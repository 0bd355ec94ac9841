package systray

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"time"

	"github.com/getlantern/systray"
)

// Callbacks connects the tray menu to the capture agent
type Callbacks struct {
	// ToggleCapture pauses or resumes the hook and reports whether capture
	// is running afterwards
	ToggleCapture func() bool
	// SessionPresses reports the live press count for the tooltip
	SessionPresses func() int64
}

// Manager manages the system tray icon and menu
type Manager struct {
	webAddr   string
	iconData  []byte
	callbacks Callbacks
	quit      chan struct{}
}

// NewManager creates a new tray manager
func NewManager(webAddr string, iconData []byte, cb Callbacks) *Manager {
	return &Manager{
		webAddr:   webAddr,
		iconData:  iconData,
		callbacks: cb,
		quit:      make(chan struct{}),
	}
}

// Run starts the system tray (blocking call)
func (m *Manager) Run() {
	systray.Run(m.onReady, m.onExit)
}

// Stop stops the system tray
func (m *Manager) Stop() {
	systray.Quit()
}

// WaitForQuit returns a channel that will be closed when user clicks Quit
func (m *Manager) WaitForQuit() <-chan struct{} {
	return m.quit
}

// onReady is called when the systray is ready
func (m *Manager) onReady() {
	if len(m.iconData) > 0 {
		systray.SetIcon(m.iconData)
	}

	systray.SetTitle("keytap")
	systray.SetTooltip("keytap - Keyboard Activity")

	mStatus := systray.AddMenuItem("Capturing", "Current capture state")
	mStatus.Disable()
	systray.AddSeparator()
	mPause := systray.AddMenuItem("Pause capture", "Temporarily stop the keyboard hook")
	mDashboard := systray.AddMenuItem("Open Dashboard", "Open the keytap web dashboard")
	if m.webAddr == "" {
		mDashboard.Hide()
	}
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Exit keytap")

	// Handle menu clicks and keep the tooltip fresh
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-mPause.ClickedCh:
				if m.callbacks.ToggleCapture == nil {
					continue
				}
				if m.callbacks.ToggleCapture() {
					mStatus.SetTitle("Capturing")
					mPause.SetTitle("Pause capture")
				} else {
					mStatus.SetTitle("Paused")
					mPause.SetTitle("Resume capture")
				}

			case <-ticker.C:
				if m.callbacks.SessionPresses != nil {
					systray.SetTooltip(fmt.Sprintf("keytap - %d presses this session", m.callbacks.SessionPresses()))
				}

			case <-mDashboard.ClickedCh:
				m.openDashboard()

			case <-mQuit.ClickedCh:
				slog.Info("User requested quit from system tray")
				close(m.quit)
				systray.Quit()
				return
			}
		}
	}()
}

// onExit is called when the systray is exiting
func (m *Manager) onExit() {
	slog.Info("System tray exited")
}

// openDashboard opens the web dashboard in the default browser
func (m *Manager) openDashboard() {
	url := fmt.Sprintf("http://%s", m.webAddr)
	slog.Info("Opening dashboard", "url", url)

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	default:
		slog.Error("Unsupported platform for opening browser", "platform", runtime.GOOS)
		return
	}

	if err := cmd.Start(); err != nil {
		slog.Error("Failed to open dashboard", "error", err)
	}
}
