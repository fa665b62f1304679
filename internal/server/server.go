package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/1kastner/sherpa/internal/config"
	"github.com/1kastner/sherpa/internal/store"
)

// Server is the sherpa REST API server. It owns one in-memory scheduler per
// study and writes every state change through to the store.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	store     store.Store

	mu      sync.RWMutex
	studies map[string]*studyHandle

	workerKeys *WorkerKeyConfig
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithWorkerKeyConfig enables worker key authentication on worker endpoints.
func WithWorkerKeyConfig(cfg *WorkerKeyConfig) Option {
	return func(s *Server) {
		s.workerKeys = cfg
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, st store.Store, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		store:     st,
		studies:   make(map[string]*studyHandle),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		// Discovery
		r.Get("/", s.handleDiscovery)

		// Health
		r.Get("/health", s.handleHealth)

		// Studies
		r.Route("/studies", func(r chi.Router) {
			r.Get("/", s.handleListStudies)
			r.Post("/", s.handleCreateStudy)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetStudy)
				r.Get("/trials", s.handleListTrials)
				r.Get("/trials/{tid}", s.handleGetTrial)
				r.Post("/trials/{tid}/abandon", s.handleAbandonTrial)
				r.Get("/observations", s.handleListObservations)
				r.Get("/best", s.handleBestResult)
				r.Get("/rungs", s.handleRungs)
			})
		})

		// Workers (trial pull protocol)
		r.Route("/workers", func(r chi.Router) {
			r.Use(workerAuthMiddleware(s.workerKeys, s.logger))
			r.Get("/", s.handleListWorkers)
			r.Post("/", s.handleRegisterWorker)
			r.Route("/{id}", func(r chi.Router) {
				r.Put("/heartbeat", s.handleWorkerHeartbeat)
				r.Delete("/", s.handleDeregisterWorker)
				r.Get("/work", s.handleWorkerCheckout)
				r.Put("/trials/{tid}/report", s.handleWorkerReport)
			})
		})

		// SSE endpoints for real-time updates
		r.Route("/sse", func(r chi.Router) {
			r.Get("/studies/{id}", s.handleSSEStudy)
		})
	})
}
