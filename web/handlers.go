package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"keytap/keyboard"
	"keytap/storage"
)

// handleStatus returns the live capture state
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.status.Status())
}

// handleStats returns aggregate activity for the requested range
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			days = d
		}
	}

	overall, err := s.db.GetOverallStats(days)
	if err != nil {
		slog.Error("Failed to get overall stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(overall)
}

// handleDailyStats returns per-day activity for the requested range
func (s *Server) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			days = d
		}
	}

	daily, err := s.db.GetDailyStats(days)
	if err != nil {
		slog.Error("Failed to get daily stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}
	if daily == nil {
		daily = []storage.DailyStats{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(daily)
}

// handleTopKeys returns the most pressed keys for the requested range
func (s *Server) handleTopKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			days = d
		}
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 {
			limit = l
		}
	}

	top, err := s.db.GetTopKeys(days, limit)
	if err != nil {
		slog.Error("Failed to get top keys", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}
	if top == nil {
		top = []storage.KeyStats{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(top)
}

// deviceInfo is one attached keyboard in the /api/devices response
type deviceInfo struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// handleDevices lists the currently attached keyboards
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	devices := []deviceInfo{}
	keyboards, err := keyboard.ListKeyboards()
	if err != nil && !errors.Is(err, keyboard.ErrUnsupported) {
		slog.Error("Failed to list keyboards", "error", err)
		http.Error(w, "Failed to list devices", http.StatusInternalServerError)
		return
	}
	for id, name := range keyboards {
		devices = append(devices, deviceInfo{ID: uint64(id), Name: name})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(devices)
}
