package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fmuoria/recruit-crm/internal/agent"
	"github.com/fmuoria/recruit-crm/internal/config"
	"github.com/fmuoria/recruit-crm/internal/ingestion"
	"github.com/fmuoria/recruit-crm/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// SessionExpiredMessage tells the client to start the import again
const SessionExpiredMessage = "Upload session expired. Please re-upload file."

// Server handles HTTP requests
type Server struct {
	agent *agent.ImportAgent
	cfg   config.ServerConfig
	log   zerolog.Logger
}

// NewServer creates a new API server
func NewServer(a *agent.ImportAgent, cfg config.ServerConfig, log zerolog.Logger) *Server {
	return &Server{
		agent: a,
		cfg:   cfg,
		log:   log,
	}
}

// HTTPServer returns an http.Server listening on the configured port
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
}

// Router returns the HTTP router
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))
	if s.cfg.WriteTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.WriteTimeout))
	}

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/import", func(r chi.Router) {
			r.Post("/upload", s.handleUpload)
			r.Post("/parse", s.handleParse)
			r.Post("/validate", s.handleValidate)
			r.Post("/commit", s.handleCommit)
			r.Post("/mapping/remember", s.handleRemember)
			r.Post("/mapping_summary", s.handleMappingSummary)
			r.Get("/mappings", s.handleMappings)
			r.Get("/uploads", s.handleUploads)
		})
		r.Get("/requirements/{id}/candidates/export", s.handleExport)
		r.Post("/candidates/{id}/status", s.handleStatus)
	})

	return r
}

// handleRoot provides API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "Recruit CRM import",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"POST /api/import/upload":   "Upload a sheet and get suggested column mappings",
			"POST /api/import/parse":    "Preview a sheet or pasted text",
			"POST /api/import/validate": "Validate mapped rows without saving",
			"POST /api/import/commit":   "Insert valid rows into a requirement",
			"GET /api/import/mappings":  "List learned header mappings",
			"GET /health":               "Health check",
		},
	})
}

// handleHealth provides a health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// respondError sends an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"ok":    false,
		"error": message,
	})
}

// respondErr maps a domain error onto a status code. Unknown errors are
// logged and hidden behind a generic message.
func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ingestion.ErrSessionExpired):
		s.respondError(w, http.StatusGone, SessionExpiredMessage)
	case errors.Is(err, ingestion.ErrEmptyInput),
		errors.Is(err, ingestion.ErrUnsupportedFormat),
		errors.Is(err, ingestion.ErrUnreadable):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, agent.ErrDuplicateMapping),
		errors.Is(err, agent.ErrInvalidMode),
		errors.Is(err, agent.ErrNoPairs),
		errors.Is(err, agent.ErrInvalidStatus),
		errors.Is(err, agent.ErrNoRows),
		errors.Is(err, agent.ErrNoMapping):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, agent.ErrInvalidRequirement):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "Not found")
	default:
		s.log.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		s.respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}
