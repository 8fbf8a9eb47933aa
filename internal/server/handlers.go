// Package server exposes HTTP handlers, including WebSocket upgrades and
// health checks.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// WebSocketHandler upgrades GET requests to WebSocket and hands the new
// connection to the hub, which starts its pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, s.hub, s.router, r.RemoteAddr, s.cfg, s.log)
	if !s.hub.Register(client) {
		s.log.Warn("Hub stopped; rejecting connection", "addr", r.RemoteAddr)
		_ = client.Close()
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "GoPresence relay is running!")
}

type healthReport struct {
	Status      string `json:"status"`
	Sessions    int    `json:"sessions"`
	Connections int    `json:"connections"`
	Typing      int    `json:"typing"`
}

// HealthzHandler reports live counters as JSON.
func (s *Server) HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	report := healthReport{
		Status:      "ok",
		Sessions:    s.registry.Len(),
		Connections: s.hub.Count(),
		Typing:      s.typing.Len(),
	}
	if err := json.NewEncoder(w).Encode(report); err != nil {
		s.log.Warn("Error writing health report", "error", err)
	}
}
