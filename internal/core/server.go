// Package core provides the API chassis for the prediction service: a chi
// router with the cross-cutting middleware chain (panic recovery, request
// ids, structured request logging) applied before requests reach domain
// handlers.
package core

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maxdesanta/ac02-be-cron-job/internal/config"
)

// RouteRegistrar attaches one domain handler's routes to the v1 group. The
// indirection keeps core free of handler imports.
type RouteRegistrar func(r chi.Router)

// Server holds the router and the cross-cutting dependencies handlers share.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	HealthProbes []HealthProbe
	V1Routes     []RouteRegistrar

	router *chi.Mux
}

// NewServer builds the server with fail-fast checks on required
// dependencies. The caller mounts routes afterwards via MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Server{
		Config: cfg,
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// MountRoutes registers the global middleware chain, the /v1 group, and the
// health endpoint. Middleware order matters: Recoverer is outermost so it
// catches panics from everything below, RequestID runs before the logger so
// log lines carry the correlation id.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))

	s.router.Route("/v1", func(r chi.Router) {
		for _, registrar := range s.V1Routes {
			registrar(r)
		}
	})

	s.router.Get("/health", s.HandleHealth)
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
