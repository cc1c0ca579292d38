// Package server provides the smilecast HTTP status API and websocket relay.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ayusman/smilecast/internal/server/api"
	"github.com/ayusman/smilecast/internal/store"
)

// Config holds the server configuration. Routes are only registered for
// the parts that are set.
type Config struct {
	// Status returns the current capture status snapshot.
	Status func() any
	// LatestImage is the path of the most recent capture.
	LatestImage string
	Store       *store.Store
	Hub         *Hub
}

// Server represents the HTTP server.
type Server struct {
	config     Config
	router     *chi.Mux
	httpServer *http.Server
	log        zerolog.Logger
	start      time.Time
}

// New creates a new Server with the given configuration.
func New(config Config, logger zerolog.Logger) *Server {
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		log:    logger.With().Str("component", "server").Logger(),
		start:  time.Now(),
	}

	s.router.Use(chiMiddleware.RequestID)
	s.router.Use(chiMiddleware.Recoverer)
	s.router.Use(s.requestLogger)

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.router.Get("/api/health", s.handleHealth)

	if s.config.Status != nil {
		s.router.Get("/api/status", s.handleStatus)
	}
	if s.config.LatestImage != "" {
		s.router.Get("/api/latest", s.handleLatest)
	}

	if s.config.Store != nil {
		eventsHandler := api.NewEventsHandler(s.config.Store)
		uploadsHandler := api.NewUploadsHandler(s.config.Store)
		s.router.Get("/api/events", eventsHandler.List)
		s.router.Get("/api/uploads", uploadsHandler.List)
	}

	if s.config.Hub != nil {
		// The notifier's default URI has no path.
		s.router.Get("/", s.config.Hub.ServePublisher)
		s.router.Get("/publish", s.config.Hub.ServePublisher)
		s.router.Get("/ws", s.config.Hub.ServeViewer)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router returns the chi router.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.config.Status())
}

// handleLatest serves the most recent captured JPEG.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if _, err := os.Stat(s.config.LatestImage); err != nil {
		http.Error(w, "no capture yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, s.config.LatestImage)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// requestLogger logs each request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", chiMiddleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// ListenAndServe serves on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.log.Info().Str("addr", addr).Msg("listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server and closes relay connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.config.Hub != nil {
		s.config.Hub.Close()
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
