package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/tappo/tappo/internal/apperr"
	"github.com/tappo/tappo/internal/metrics"
	"github.com/tappo/tappo/internal/middleware"
	"go.uber.org/zap"
)

const (
	defaultSnapshotLimit = 20
	maxBodyBytes         = 16 << 10
	ipLimiterCleanup     = time.Hour
	healthTimeout        = 2 * time.Second
)

// Server wraps the HTTP handlers for ingestion, analytics, rating sync and
// tag redirects.
type Server struct {
	deps      *Dependencies
	validate  *validator.Validate
	rateLimit *middleware.RateLimitMiddleware
	logger    *zap.Logger
}

func NewServer(deps *Dependencies) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Server{
		deps:      deps,
		validate:  validator.New(),
		rateLimit: middleware.NewRateLimitMiddleware(deps.Config.RateLimit, deps.Logger, deps.Metrics),
		logger:    deps.Logger,
	}
}

// Routes builds the router with the middleware chain applied.
func (s *Server) Routes() http.Handler {
	cfg := s.deps.Config
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(s.logger).Handler)
	r.Use(middleware.NewLoggingMiddleware(s.logger, s.deps.Metrics).Handler)
	r.Use(s.rateLimit.Handler)
	r.Use(middleware.NewAuthMiddleware(cfg.Auth, s.logger).Handler)

	r.Get("/health", s.handleHealth)
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, metrics.Handler(s.deps.Gatherer))
	}

	// Public
	r.Post("/api/events", s.handleIngest)
	r.Get("/n/{code}", s.handleTagRedirect)

	// Management
	r.Post("/api/reviews/sync", s.handleReviewSync)
	r.Get("/api/analytics", s.handleAnalytics)
	r.Get("/api/tags/{tagID}/snapshots", s.handleSnapshots)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.errorResponse(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	return r
}

// RunMaintenance periodically drops per-IP rate limiters until ctx is done.
func (s *Server) RunMaintenance(ctx context.Context) {
	ticker := time.NewTicker(ipLimiterCleanup)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.rateLimit.CleanupIPLimiters()
		}
	}
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		s.jsonResponse(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	checks := map[string]string{}
	for name, err := range s.deps.Health(ctx) {
		if err != nil {
			checks[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	s.jsonResponse(w, code, map[string]any{"status": status, "checks": checks})
}

// ---- Responses ----

func (s *Server) jsonResponse(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	s.jsonResponse(w, code, envelope{OK: false, Error: message})
}

// appError answers with the status and message err maps to. Errors outside
// the apperr taxonomy are logged and hidden behind a generic message.
func (s *Server) appError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.HTTPStatus(err)
	if apperr.KindOf(err) == "" {
		s.logger.Error("unhandled error", zap.String("path", r.URL.Path), zap.Error(err))
		s.errorResponse(w, "internal server error", code)
		return
	}
	s.errorResponse(w, err.Error(), code)
}

type envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
