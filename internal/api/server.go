// Package api serves the catalog, frame decoding, log parsing and stored
// history over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"can-decoder/internal/catalog"
	"can-decoder/internal/decoder"

	"github.com/rs/zerolog"
)

// Server represents the HTTP API server
type Server struct {
	server   *http.Server
	catalogs *catalog.Holder
	decoder  *decoder.Decoder
	dbcPath  string
	history  HistoryStore
	logger   zerolog.Logger
}

// ServerConfig holds API server configuration
type ServerConfig struct {
	Port    int
	DBCPath string // reloaded by POST /api/catalog/reload
}

// NewServer creates a new API server instance. history may be nil when no
// database is configured.
func NewServer(config ServerConfig, catalogs *catalog.Holder, history HistoryStore, logger zerolog.Logger) *Server {
	server := &Server{
		catalogs: catalogs,
		decoder:  decoder.New(catalogs),
		dbcPath:  config.DBCPath,
		history:  history,
		logger:   logger.With().Str("component", "api").Logger(),
	}

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.setupRoutes(mux)
	return s.loggingMiddleware(corsMiddleware(mux))
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/catalog", s.handleCatalog)
	mux.HandleFunc("GET /api/catalog/{id}", s.handleCatalogMessage)
	mux.HandleFunc("POST /api/catalog/reload", s.handleReload)
	mux.HandleFunc("POST /api/decode", s.handleDecode)
	mux.HandleFunc("POST /api/parse", s.handleParse)

	mux.HandleFunc("GET /api/signals", s.handleSignals)
	mux.HandleFunc("GET /api/stats/latest", s.handleLatestStats)
}

// handleRoot returns API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"name":    "CAN Decoder API Server",
		"version": "1.0.0",
		"endpoints": map[string]any{
			"health": "/health",
			"catalog": map[string]string{
				"list":    "GET /api/catalog",
				"message": "GET /api/catalog/0x7B",
				"reload":  "POST /api/catalog/reload",
			},
			"decode": "POST /api/decode (body: {can_id, data, interface?}) ?signals=speed:0:16:le:0.01:0",
			"parse":  "POST /api/parse?decode=true (body: candump log lines)",
			"history": map[string]string{
				"signals": "/api/signals?message=Engine&signal=Speed&start_time=2024-01-01T00:00:00Z&limit=100",
				"stats":   "/api/stats/latest?interface=can0",
			},
		},
	}

	respondWithJSON(w, http.StatusOK, info)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	messages := 0
	if c := s.catalogs.Load(); c != nil {
		messages = c.Len()
	}
	history := "disabled"
	if s.history != nil {
		history = "configured"
	}

	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now(),
		"services": map[string]any{
			"api":     "up",
			"catalog": messages,
			"history": history,
		},
	}

	respondWithJSON(w, http.StatusOK, health)
}

// Start starts the API server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("starting HTTP API server")
	return s.server.ListenAndServe()
}

// Stop gracefully stops the API server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("stopping API server")
	return s.server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
