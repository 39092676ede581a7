// Package server exposes the layout pipeline over HTTP.
//
// # Endpoints
//
//	GET    /healthz                   liveness and build info
//	POST   /v1/layouts                compute a layout from an inline profile
//	GET    /v1/layouts                list stored runs, newest first
//	GET    /v1/layouts/{id}           a stored run with its layout
//	GET    /v1/layouts/{id}/{format}  one rendered artifact (clusters, symorder, ...)
//	DELETE /v1/layouts/{id}           remove a run
//
// Errors are JSON objects {"error": {"code", "message"}} with the status
// chosen by errors.HTTPStatus.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/blockorder/pkg/layout"
	"github.com/matzehuels/blockorder/pkg/pipeline"
	"github.com/matzehuels/blockorder/pkg/store"
)

// Options configures a Server.
type Options struct {
	Runner *pipeline.Runner
	Store  store.Store
	Logger *log.Logger

	// Params are the defaults for request fields left unset.
	Params  layout.Params
	Workers int

	// TTL is how long runs are kept. Zero uses store.DefaultTTL.
	TTL time.Duration
	// MaxBodyBytes limits request bodies. Zero means 32 MiB.
	MaxBodyBytes int64
	// Timeout bounds one layout computation. Zero means 2 minutes.
	Timeout time.Duration
}

// Server serves the HTTP API.
type Server struct {
	runner  *pipeline.Runner
	store   store.Store
	logger  *log.Logger
	params  layout.Params
	workers int
	ttl     time.Duration
	maxBody int64
	timeout time.Duration
}

// New creates a server. Runner and Store are required.
func New(opts Options) *Server {
	s := &Server{
		runner:  opts.Runner,
		store:   opts.Store,
		logger:  opts.Logger,
		params:  opts.Params,
		workers: opts.Workers,
		ttl:     opts.TTL,
		maxBody: opts.MaxBodyBytes,
		timeout: opts.Timeout,
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.params == (layout.Params{}) {
		s.params = layout.DefaultParams()
	}
	if s.ttl <= 0 {
		s.ttl = store.DefaultTTL
	}
	if s.maxBody <= 0 {
		s.maxBody = 32 << 20
	}
	if s.timeout <= 0 {
		s.timeout = 2 * time.Minute
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1/layouts", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/", s.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Delete("/", s.handleDelete)
			r.Get("/{format}", s.handleArtifact)
		})
	})
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != http.ErrServerClosed {
		return err
	}
	return nil
}
