// Package web provides the HTTP API of the sync engine: trigger surfaces,
// status, drift validation, run-log export and metrics.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/sheetsync/internal/config"
	"github.com/JonMunkholm/sheetsync/internal/core"
	"github.com/JonMunkholm/sheetsync/internal/web/middleware"
)

// Server is the HTTP server for the sync API.
type Server struct {
	service  *core.Service
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server
	limiters []*rateLimiter
}

// NewServer creates a Server with middleware and routes installed.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newLimiter(s.cfg.Rate.RequestsPerMinute).middleware)
	}
}

func (s *Server) setupRoutes() {
	admin := middleware.RequireRole(s.cfg.Security.RoleHeader, core.RoleAdmin)

	// Run triggers are exempt from the request timeout; a run outlives it.
	var timeout chi.Middlewares
	if s.cfg.Server.RequestTimeout > 0 {
		timeout = append(timeout, chimw.Timeout(s.cfg.Server.RequestTimeout))
	}

	s.router.With(timeout...).Get("/healthz", s.handleHealth)
	if s.cfg.Metrics.Enabled {
		s.router.With(timeout...).Handle(s.cfg.Metrics.Path, promhttp.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.With(timeout...).Get("/sheets", s.handleListSheets)

		r.Route("/sync", func(r chi.Router) {
			r.With(timeout...).Get("/status", s.handleStatus)

			// Run triggers share a tighter per-client budget.
			r.Group(func(r chi.Router) {
				if s.cfg.Rate.Enabled && s.cfg.Rate.TriggerLimit > 0 {
					r.Use(s.newLimiter(s.cfg.Rate.TriggerLimit).middleware)
				}

				r.With(middleware.CronSecret(s.cfg.Security.CronSecret)).Post("/cron", s.handleCronSync)
				r.With(admin).Post("/", s.handleSync)
				r.With(admin).Post("/full-reset", s.handleFullReset)
			})

			r.Group(func(r chi.Router) {
				r.Use(timeout...)
				r.With(admin).Get("/validate", s.handleValidate)
				r.With(admin).Get("/logs/export", s.handleExportLogs)
			})
		})
	})
}

func (s *Server) newLimiter(perMinute int) *rateLimiter {
	rl := newRateLimiter(perMinute, time.Minute)
	s.limiters = append(s.limiters, rl)
	return rl
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
