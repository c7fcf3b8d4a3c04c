package main

import (
	"fmt"
	"net/http"

	"github.com/daniacca/mattercore/internal/matter"
	"github.com/daniacca/mattercore/internal/matter/notifiers"
	"github.com/daniacca/mattercore/internal/telemetry"
)

// websocketNotifierID is the id of the built-in websocket stream.
const websocketNotifierID = "websocket"

// Server represents the HTTP server for matterd
type Server struct {
	manager       *matter.WorldManager
	notifications *matter.NotificationManager
	stream        *notifiers.WebSocketNotifier
	metrics       *telemetry.Metrics
	logger        *Logger
	opts          matter.Options
}

// NewServer creates a server with its notification fan-out and metrics.
func NewServer(logger *Logger, opts matter.Options) *Server {
	metrics := telemetry.New()
	nm := matter.NewNotificationManager(logger)
	stream := notifiers.NewWebSocketNotifier(websocketNotifierID, logger)
	if err := nm.RegisterNotifier(stream); err != nil {
		// the manager is fresh, so the id cannot collide
		logger.Errorf("register websocket notifier: %v", err)
	}
	return &Server{
		manager:       matter.NewWorldManager(logger, metrics),
		notifications: nm,
		stream:        stream,
		metrics:       metrics,
		logger:        logger,
		opts:          opts,
	}
}

// LoadWorld builds a registry over src and creates the world, or swaps the
// registry of an existing one. Every reference in the catalog is resolved
// up front so broken catalogs are rejected before any instance uses them.
func (s *Server) LoadWorld(id matter.WorldID, src matter.Source) (created bool, err error) {
	registry := matter.NewRegistryWithLogger(src, s.logger)
	if err := registry.Preload(); err != nil {
		return false, fmt.Errorf("load catalog: %w", err)
	}

	if _, exists := s.manager.GetWorld(id); exists {
		return false, s.manager.UpdateWorldRegistry(id, registry)
	}
	ws, err := s.manager.CreateWorld(id, registry, s.opts)
	if err != nil {
		return false, err
	}
	_ = ws.Do(func(g *matter.Graph) error {
		g.Subscribe(s.notifications.Listener())
		return nil
	})
	return true, nil
}

// Routes returns the HTTP handler serving every endpoint.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.Handle("GET /ws", s.stream)

	mux.HandleFunc("GET /worlds", s.handleListWorlds)
	mux.HandleFunc("PUT /worlds/{world}/catalog", s.handleCatalog)
	mux.HandleFunc("POST /worlds/{world}/catalog", s.handleCatalog)
	mux.HandleFunc("DELETE /worlds/{world}", s.handleDeleteWorld)

	mux.HandleFunc("GET /worlds/{world}/instances", s.handleListInstances)
	mux.HandleFunc("POST /worlds/{world}/instances", s.handleCreateInstance)
	mux.HandleFunc("GET /worlds/{world}/instances/{ref}", s.handleGetInstance)
	mux.HandleFunc("DELETE /worlds/{world}/instances/{ref}", s.handleDeleteInstance)
	mux.HandleFunc("POST /worlds/{world}/instances/{ref}/children", s.handleAddChild)
	mux.HandleFunc("DELETE /worlds/{world}/instances/{ref}/children/{child}", s.handleRemoveChild)

	mux.HandleFunc("POST /worlds/{world}/apply", s.handleApply)
	mux.HandleFunc("POST /worlds/{world}/satisfies", s.handleSatisfies)
	mux.HandleFunc("POST /worlds/{world}/synthesize", s.handleSynthesize)

	mux.HandleFunc("GET /notifiers", s.handleListNotifiers)
	mux.HandleFunc("POST /notifiers", s.handleRegisterNotifier)
	mux.HandleFunc("DELETE /notifiers/{id}", s.handleUnregisterNotifier)
	return mux
}

// Close stops notification delivery and closes every notifier.
func (s *Server) Close() error {
	return s.notifications.Close()
}
