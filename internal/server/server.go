// Package server implements the licenscan HTTP API.
//
// The API exposes scanning as a service: clients POST a lockfile and get
// back resolved licenses, and previously run scans can be listed and
// fetched from the history store.
//
// # Endpoints
//
//   - GET  /healthz: liveness probe
//   - POST /v1/scans: scan an uploaded lockfile
//   - GET  /v1/scans: list recent scans
//   - GET  /v1/scans/{id}: fetch one scan by ID
//
// # Usage
//
//	srv := server.New(server.Options{Store: store.NewMemoryStore()})
//	http.ListenAndServe(":8080", srv)
package server

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/licenscan/licenscan/pkg/cache"
	"github.com/licenscan/licenscan/pkg/registry"
	"github.com/licenscan/licenscan/pkg/store"
)

// Options configures the server.
type Options struct {
	// Store archives completed scans. Defaults to an in-memory store.
	Store store.Store

	// Cache backs the resolution engine. Defaults to no caching.
	Cache cache.Store

	// Registry overrides resolver endpoints, mainly for tests.
	Registry registry.Options

	// Workers is the engine's worker count. Zero selects the default.
	Workers int

	Logger *log.Logger
}

// Server is the licenscan HTTP API. It implements http.Handler.
type Server struct {
	router chi.Router
	store  store.Store
	cache  cache.Store
	opts   Options
	logger *log.Logger
}

var _ http.Handler = (*Server)(nil)

// New creates a server with all routes registered.
func New(opts Options) *Server {
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewNullStore()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	s := &Server{
		store:  opts.Store,
		cache:  opts.Cache,
		opts:   opts,
		logger: opts.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(requestLogger(opts.Logger))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/scans", s.handleCreateScan)
		r.Get("/scans", s.handleListScans)
		r.Get("/scans/{id}", s.handleGetScan)
	})
	s.router = r

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
