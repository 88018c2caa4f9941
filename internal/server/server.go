// Package server exposes the transfer engine over an HTTP API: mapping
// status checks, the save-trigger webhook, and manual runs.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/fieldshift-labs/fieldshift/internal/transfer"
	"github.com/fieldshift-labs/fieldshift/pkg/core"
)

// Server is the HTTP API server.
type Server struct {
	store   core.Store
	service *transfer.Service
	port    int
	logger  *slog.Logger
}

// Config holds configuration for the API server.
type Config struct {
	Store   core.Store
	Service *transfer.Service
	Port    int
	Logger  *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		store:   cfg.Store,
		service: cfg.Service,
		port:    cfg.Port,
		logger:  logger,
	}
}

// Serve starts the API server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting API server", "addr", addr)

	eg, egctx := errgroup.WithContext(ctx)

	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
	)
	s.routes(r)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// routes wires the API endpoints.
func (s *Server) routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/configs", s.ListConfigs)
		r.Post("/configs/{name}/run", s.RunConfig)
		r.Get("/runs/{id}", s.GetRun)
		r.Post("/mappings/check", s.CheckMapping)
		r.Post("/triggers/save", s.SaveTrigger)
	})
}
