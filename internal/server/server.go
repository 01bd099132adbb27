// Package server provides the HTTP API for scoring, expansion, history
// and operational endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/nichescout/nichescout/internal/clientdata"
	"github.com/nichescout/nichescout/internal/history"
	"github.com/nichescout/nichescout/internal/opportunity/handlers"
	"github.com/nichescout/nichescout/internal/ratelimit"
	"github.com/nichescout/nichescout/internal/reliability"
)

// Config holds server dependencies and settings.
type Config struct {
	Port    int
	DevMode bool
	Log     zerolog.Logger

	Opportunity *handlers.Handlers
	Cache       *clientdata.Repository
	History     *history.Repository
	Governor    *ratelimit.Governor
	Backups     *reliability.BackupService // nil when backups are disabled
}

// Server is the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        zerolog.Logger

	cache     *clientdata.Repository
	history   *history.Repository
	governor  *ratelimit.Governor
	backups   *reliability.BackupService
	startTime time.Time
}

// New creates a configured server.
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cache:     cfg.Cache,
		history:   cfg.History,
		governor:  cfg.Governor,
		backups:   cfg.Backups,
		startTime: time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes(cfg.Opportunity)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(120 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes(opp *handlers.Handlers) {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		opp.Routes(r)

		r.Get("/history", s.handleHistoryList)
		r.Get("/history/top", s.handleHistoryTop)
		r.Get("/history/{id}", s.handleHistoryGet)
		r.Get("/history/{id}/snapshot", s.handleHistorySnapshot)

		r.Post("/cache/sweep", s.handleCacheSweep)
		r.Delete("/cache/{table}", s.handleCacheInvalidate)

		r.Get("/system/status", s.handleSystemStatus)

		r.Get("/backups", s.handleBackupList)
		r.Post("/backups", s.handleBackupCreate)
	})
}

// Start begins listening for HTTP requests. It blocks until the server
// stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the router for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// loggingMiddleware logs each request with zerolog.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request handled")
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
