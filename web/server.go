package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"keytap/keyboard"
	"keytap/storage"
)

//go:embed static/*
var staticFiles embed.FS

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local dashboard only
	},
}

// Status is the live state snapshot served by /api/status
type Status struct {
	Capturing      bool   `json:"capturing"`
	Mode           string `json:"mode"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	SessionPresses int64  `json:"session_presses"`
	HeldKeys       int    `json:"held_keys"`
}

// StatusSource is implemented by whoever owns the capture hook
type StatusSource interface {
	Status() Status
}

// Server serves the dashboard, the REST API and the websocket feed
type Server struct {
	addr   string
	db     *storage.DB
	status StatusSource
	hub    *Hub
	srv    *http.Server
}

// New creates a web server; the hub starts immediately so broadcasts are
// accepted before Start
func New(addr string, db *storage.DB, status StatusSource) *Server {
	hub := NewHub()
	go hub.Run()

	return &Server{
		addr:   addr,
		db:     db,
		status: status,
		hub:    hub,
	}
}

// Start begins serving in the background. The returned channel yields the
// listen error, if any.
func (s *Server) Start() (<-chan error, error) {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/stats/daily", s.handleDailyStats)
	mux.HandleFunc("/api/stats/keys", s.handleTopKeys)
	mux.HandleFunc("/api/devices", s.handleDevices)
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Static files
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to load static files: %w", err)
	}
	mux.Handle("/", http.FileServer(http.FS(staticFS)))

	s.srv = &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting web server", "addr", s.addr, "url", fmt.Sprintf("http://%s", s.addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return errCh, nil
}

// Shutdown drains the HTTP server and disconnects the feed clients
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.srv != nil {
		err = s.srv.Shutdown(ctx)
	}
	s.hub.Stop()
	return err
}

// BroadcastEvent pushes one dispatched key event to all connected clients
func (s *Server) BroadcastEvent(ev keyboard.KeyEvent) {
	msg := KeyMessage{
		VirtualKey: uint16(ev.VirtualKey),
		Name:       keyboard.KeyName(ev.VirtualKey),
		Transition: ev.Transition.String(),
		Modifiers:  ev.Modifiers.String(),
		Device:     uint64(ev.Device),
		Time:       ev.Time.Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if ev.Char != 0 {
		msg.Char = string(ev.Char)
	}

	s.hub.BroadcastMessage(Message{Type: MessageTypeKey, Data: msg})
}

// BroadcastStatus announces a capture state change to all connected clients
func (s *Server) BroadcastStatus(capturing bool, mode keyboard.Mode) {
	s.hub.BroadcastMessage(Message{
		Type: MessageTypeStatus,
		Data: StatusMessage{Capturing: capturing, Mode: mode.String()},
	})
}

// handleWebSocket upgrades the connection and attaches it to the hub
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	select {
	case client.hub.register <- client:
	case <-s.hub.stop:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}
