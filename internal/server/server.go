// Package server is the development backend of the Sketchy HTTP API.
//
// It keeps every artifact (uploads, analyses, regenerations, improvements)
// in a ports.RecordStore and delegates the AI work to a Provider.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/sketchy/internal/logging"
	"github.com/aretw0/sketchy/internal/metrics"
	"github.com/aretw0/sketchy/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Limits bounds what the upload endpoint accepts.
type Limits struct {
	// MaxDimension is the longest side kept; larger images are downsized.
	MaxDimension int
	// MaxUploadDimension is the longest side accepted at all.
	MaxUploadDimension int
	// MaxUploadBytes bounds the whole multipart body.
	MaxUploadBytes int64
}

// DefaultLimits mirrors the production backend.
var DefaultLimits = Limits{
	MaxDimension:       2048,
	MaxUploadDimension: 4096,
	MaxUploadBytes:     32 << 20,
}

// Server serves the /api/v1 routes.
type Server struct {
	artifacts artifacts
	provider  Provider
	limits    Limits
	version   string
	metrics   *metrics.Collector
	logger    *slog.Logger

	newID func() string
	now   func() time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithProvider replaces the stub provider.
func WithProvider(p Provider) Option {
	return func(s *Server) {
		s.provider = p
	}
}

// WithLimits overrides DefaultLimits. Zero fields keep the default.
func WithLimits(l Limits) Option {
	return func(s *Server) {
		if l.MaxDimension > 0 {
			s.limits.MaxDimension = l.MaxDimension
		}
		if l.MaxUploadDimension > 0 {
			s.limits.MaxUploadDimension = l.MaxUploadDimension
		}
		if l.MaxUploadBytes > 0 {
			s.limits.MaxUploadBytes = l.MaxUploadBytes
		}
	}
}

// WithMetrics instruments the routes and exposes /metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) {
		s.metrics = c
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithIDGenerator replaces uuid generation, for tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *Server) {
		s.newID = fn
	}
}

// New creates a Server storing artifacts in store.
func New(store ports.RecordStore, opts ...Option) *Server {
	s := &Server{
		artifacts: artifacts{store: store},
		provider:  StubProvider{},
		limits:    DefaultLimits,
		version:   "dev",
		logger:    logging.NewNop(),
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(enableCORS)

	r.Get("/health", s.health)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/upload", s.upload)
		r.Post("/analyze/{imageID}", s.analyze)
		r.Get("/analysis/{analysisID}", s.getAnalysis)
		r.Post("/regenerate/{analysisID}", s.regenerate)
		r.Post("/improve/from_original/{regeneratedID}", s.improveFromOriginal)
		r.Post("/improve/from_improved/{improvedID}", s.improveFromImproved)
		r.Get("/sessions", s.listSessions)
	})

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "sketchy",
		"version": s.version,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// apiError is the error body of every failed request.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, apiError{Error: kind, Message: message})
}
