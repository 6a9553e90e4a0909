// Package server provides HTTP server lifecycle management.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/querylab/sift/internal/core/api"
	"github.com/querylab/sift/internal/core/auth"
	"github.com/querylab/sift/internal/core/config"
)

// HTTPServer manages the search API server lifecycle.
type HTTPServer struct {
	server *http.Server
	config *config.ServerConfig
	log    zerolog.Logger
}

// NewHTTPServer creates the HTTP server with routing, request logging and
// optional API key authentication. A nil authenticator leaves the API open;
// the health endpoint is always unauthenticated so probes work either way.
func NewHTTPServer(cfg *config.ServerConfig, service *api.Service, authenticator *auth.Authenticator, log zerolog.Logger) (*HTTPServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/v1", func(r chi.Router) {
		if authenticator != nil {
			r.Use(authenticator.Middleware)
		}
		r.Post("/search", service.Search)
		r.Post("/searches", service.CreateSavedSearch)
		r.Get("/searches", service.ListSavedSearches)
		r.Get("/searches/{searchID}", service.GetSavedSearch)
		r.Delete("/searches/{searchID}", service.DeleteSavedSearch)
		r.Post("/searches/{searchID}/results", service.ExecuteSavedSearch)
	})

	return &HTTPServer{
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		config: cfg,
		log:    log,
	}, nil
}

// Start binds the listener and serves requests until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests, forcing close when ctx expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// requestLogger emits one structured line per request after it completes.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
