package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"keytap/config"
	"keytap/feedback"
	"keytap/keyboard"
	"keytap/storage"
	"keytap/web"
)

// Agent coordinates the keyboard hook, the activity store, the dashboard
// and the key-click feedback.
type Agent struct {
	cfg    *config.Config
	db     *storage.DB
	server *web.Server      // nil when the dashboard is disabled
	player *feedback.Player // nil when feedback is disabled or unavailable

	mu        sync.Mutex // guards hook and sessionID
	hook      *keyboard.Hook
	sessionID int64

	startedAt time.Time
	presses   atomic.Int64

	countsMu sync.Mutex
	counts   map[keyboard.VirtualKey]int64
}

// NewAgent creates a new agent instance
func NewAgent(cfg *config.Config) (*Agent, error) {
	dbPath, err := cfg.StoragePath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage path: %w", err)
	}
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity store: %w", err)
	}

	a := &Agent{
		cfg:    cfg,
		db:     db,
		counts: make(map[keyboard.VirtualKey]int64),
	}

	if cfg.Web.Enabled {
		a.server = web.New(cfg.Web.Listen, db, a)
	}

	if cfg.Feedback.Enabled {
		player, err := feedback.NewPlayer(cfg.Feedback.Volume)
		if err != nil {
			slog.Warn("Key-click feedback unavailable", "error", err)
		} else {
			a.player = player
		}
	}

	return a, nil
}

// Run opens the hook, starts the dashboard and blocks until ctx is
// cancelled, flushing key counts on a ticker along the way.
func (a *Agent) Run(ctx context.Context) error {
	a.startedAt = time.Now()

	a.mu.Lock()
	err := a.openHookLocked(ctx)
	a.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to open keyboard hook: %w", err)
	}

	var webErr <-chan error
	if a.server != nil {
		webErr, err = a.server.Start()
		if err != nil {
			a.shutdown()
			return err
		}
	}

	slog.Info("keytap started", "mode", a.cfg.Mode().String())

	flush := time.NewTicker(time.Duration(a.cfg.Storage.FlushSeconds) * time.Second)
	defer flush.Stop()

	for {
		select {
		case <-ctx.Done():
			return a.shutdown()

		case err := <-webErr:
			slog.Error("Web server failed", "error", err)
			a.shutdown()
			return err

		case <-flush.C:
			a.flushCounts()
		}
	}
}

// openHookLocked installs the hook, attaches the listeners and opens a new
// session. Caller holds a.mu.
func (a *Agent) openHookLocked(ctx context.Context) error {
	hook, err := keyboard.Open(ctx, a.cfg.Mode())
	if err != nil {
		return err
	}

	hook.AddListener(&activityRecorder{agent: a})
	if a.server != nil {
		hook.AddListener(&feedBroadcaster{server: a.server})
	}
	if a.player != nil {
		hook.AddListener(&clicker{player: a.player})
	}

	a.hook = hook
	a.presses.Store(0)

	id, err := a.db.StartSession()
	if err != nil {
		slog.Error("Failed to start session", "error", err)
		id = 0
	}
	a.sessionID = id

	if a.server != nil {
		a.server.BroadcastStatus(true, hook.Mode())
	}
	return nil
}

// ToggleCapture flips between capturing and paused, reporting whether
// capture is running afterwards. Wired to the tray menu.
func (a *Agent) ToggleCapture() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.hook != nil && a.hook.IsAlive() {
		a.pauseLocked()
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.openHookLocked(ctx); err != nil {
		slog.Error("Failed to resume capture", "error", err)
		return false
	}
	slog.Info("Capture resumed")
	return true
}

// pauseLocked tears the hook down and closes the session. Caller holds a.mu.
func (a *Agent) pauseLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.hook.Shutdown(ctx); err != nil {
		slog.Error("Hook shutdown incomplete", "error", err)
	}
	a.hook = nil

	a.flushCounts()
	if a.sessionID != 0 {
		if err := a.db.EndSession(a.sessionID, a.presses.Load()); err != nil {
			slog.Error("Failed to end session", "error", err)
		}
		a.sessionID = 0
	}

	if a.server != nil {
		a.server.BroadcastStatus(false, a.cfg.Mode())
	}
	slog.Info("Capture paused")
}

// SessionPresses reports the live press count. Wired to the tray tooltip.
func (a *Agent) SessionPresses() int64 {
	return a.presses.Load()
}

// Status implements web.StatusSource.
func (a *Agent) Status() web.Status {
	a.mu.Lock()
	hook := a.hook
	a.mu.Unlock()

	st := web.Status{
		UptimeSeconds:  int64(time.Since(a.startedAt).Seconds()),
		SessionPresses: a.presses.Load(),
	}
	if hook != nil {
		st.Capturing = hook.IsAlive()
		st.Mode = hook.Mode().String()
		st.HeldKeys = hook.HeldCount()
	}
	return st
}

// flushCounts swaps the in-memory batch out and persists it
func (a *Agent) flushCounts() {
	a.countsMu.Lock()
	if len(a.counts) == 0 {
		a.countsMu.Unlock()
		return
	}
	batch := a.counts
	a.counts = make(map[keyboard.VirtualKey]int64)
	a.countsMu.Unlock()

	if err := a.db.RecordCounts(batch); err != nil {
		slog.Error("Failed to record key counts", "error", err)
	}
}

// shutdown tears everything down in order: hook, web, store, feedback
func (a *Agent) shutdown() error {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.mu.Lock()
	if a.hook != nil {
		if err := a.hook.Shutdown(ctx); err != nil {
			slog.Error("Hook shutdown incomplete", "error", err)
		}
		a.hook = nil
	}
	sessionID := a.sessionID
	a.sessionID = 0
	a.mu.Unlock()

	a.flushCounts()
	if sessionID != 0 {
		if err := a.db.EndSession(sessionID, a.presses.Load()); err != nil {
			slog.Error("Failed to end session", "error", err)
		}
	}

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("Web server shutdown incomplete", "error", err)
		}
	}

	if err := a.db.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}

	if a.player != nil {
		a.player.Close()
	}

	return nil
}

// activityRecorder tallies presses per key. Only counts are kept; the
// sequence of keys is never recorded.
type activityRecorder struct {
	agent *Agent
}

func (r *activityRecorder) KeyPressed(ev keyboard.KeyEvent) {
	r.agent.presses.Add(1)
	r.agent.countsMu.Lock()
	r.agent.counts[ev.VirtualKey]++
	r.agent.countsMu.Unlock()
}

func (r *activityRecorder) KeyReleased(keyboard.KeyEvent) {}

// feedBroadcaster pushes every dispatched event to the dashboard feed
type feedBroadcaster struct {
	server *web.Server
}

func (b *feedBroadcaster) KeyPressed(ev keyboard.KeyEvent)  { b.server.BroadcastEvent(ev) }
func (b *feedBroadcaster) KeyReleased(ev keyboard.KeyEvent) { b.server.BroadcastEvent(ev) }

// clicker retriggers the feedback sample on every press
type clicker struct {
	player *feedback.Player
}

func (c *clicker) KeyPressed(keyboard.KeyEvent)  { c.player.Trigger() }
func (c *clicker) KeyReleased(keyboard.KeyEvent) {}
