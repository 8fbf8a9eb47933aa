// Package server wires HTTP handlers into a ServeMux via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all relay routes:
// the plain health check, the JSON health report and the WebSocket endpoint.
func (s *Server) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/healthz", s.HealthzHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	return mux
}
