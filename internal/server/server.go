package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lazypower/nudge/internal/engine"
	"github.com/lazypower/nudge/internal/store"
)

// Default per-session event rate.
const (
	DefaultRate  = rate.Limit(20)
	DefaultBurst = 40
)

// Server is the nudge HTTP API server.
type Server struct {
	engine  *engine.Engine
	db      *store.DB
	router  chi.Router
	log     *zap.Logger
	limits  *sessionLimiter
	version string
	started time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithRateLimit sets the per-session event rate. A zero limit disables it.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(s *Server) {
		if limit <= 0 {
			s.limits = nil
			return
		}
		s.limits = newSessionLimiter(limit, burst)
	}
}

// New creates a Server around eng. The journal routes use eng.DB and answer
// 503 when it is nil.
func New(eng *engine.Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine:  eng,
		db:      eng.DB,
		log:     zap.NewNop(),
		limits:  newSessionLimiter(DefaultRate, DefaultBurst),
		version: version,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("http")
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(logRequests(s.log))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.With(s.rateLimit).Post("/events", s.handleEvent)
			r.Get("/scores", s.handleScores)
			r.Get("/interventions", s.handleSessionInterventions)
			r.Delete("/", s.handleEndSession)
		})
		r.Get("/interventions/recent", s.handleRecentInterventions)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"policy":  s.engine.Policy().Name(),
		"db":      false,
	}
	if s.db != nil {
		body["db"] = s.db.Ping() == nil
		body["db_path"] = s.db.Path
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
