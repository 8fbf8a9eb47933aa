// Package server wires the presence coordinator to its WebSocket transport.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gopresence/internal/clock"
	"github.com/Tyrowin/gopresence/internal/presence"
)

// Server is the composition root of one relay instance: one registry, one
// router and one hub of connections. Nothing here is package-global.
type Server struct {
	cfg      Config
	log      *slog.Logger
	origins  originPolicy
	upgrader websocket.Upgrader
	hub      *Hub
	registry *presence.Registry
	typing   *presence.TypingCoordinator
	router   *presence.Router
}

// New builds a Server around store. Router options are appended after the
// ones derived from cfg.
func New(cfg *Config, log *slog.Logger, store presence.Store, opts ...presence.RouterOption) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	sanitized := sanitizeConfig(*cfg)

	registry := presence.NewRegistry()
	publisher := presence.NewPublisher(log, registry)
	typing := presence.NewTypingCoordinator(log, registry, clock.Real(), sanitized.TypingTimeout)
	routerOpts := append([]presence.RouterOption{
		presence.WithHistoryLimit(sanitized.HistoryLimit),
	}, opts...)

	s := &Server{
		cfg:      sanitized,
		log:      log,
		origins:  newOriginPolicy(log, sanitized.AllowedOrigins),
		hub:      NewHub(log),
		registry: registry,
		typing:   typing,
		router:   presence.NewRouter(log, registry, store, publisher, typing, routerOpts...),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	return s
}

// Start runs the hub in a separate goroutine. Call it before serving requests.
func (s *Server) Start() {
	go s.hub.Run()
	s.log.Info("Hub started and ready to manage WebSocket connections")
}

// Shutdown closes every connection and waits for their pumps to exit.
func (s *Server) Shutdown(timeout time.Duration) error {
	return s.hub.Shutdown(timeout)
}

// Handler returns the HTTP routes of the relay.
func (s *Server) Handler() http.Handler {
	return s.SetupRoutes()
}

// Config returns the sanitized configuration in use.
func (s *Server) Config() Config {
	return s.cfg
}

// Registry exposes the live session registry.
func (s *Server) Registry() *presence.Registry {
	return s.registry
}

// Hub exposes the connection hub.
func (s *Server) Hub() *Hub {
	return s.hub
}
