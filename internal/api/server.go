package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-finance/kestrel/internal/blob"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/notify"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, blobs blob.Store, svc *scoring.Service, registry *rules.Registry, notifier *notify.Notifier, version string, topRiskLimit int) *Server {
	handler := NewHandler(repo, cache, blobs, svc, registry, notifier, version, topRiskLimit)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no identity required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (authenticated upstream; identity headers required)
	router.Route("/", func(r chi.Router) {
		r.Use(IdentityMiddleware)

		// Agent field activity
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(domain.RoleAgent))
			r.Post("/transactions", handler.CreateTransaction)
			r.Post("/check-ins", handler.CreateCheckIn)
		})

		// Auditor workflow
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(domain.RoleAuditor))
			r.Post("/audits", handler.CreateAudit)
		})

		// Any authenticated user
		r.Get("/users/profile", handler.GetProfile)
		r.Get("/notifications", handler.ListNotifications)

		// Oversight dashboards
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(domain.RoleAdmin, domain.RoleBankOfficer))
			r.Get("/admin/stats", handler.AdminStats)
			r.Get("/admin/agent-scores", handler.AgentScores)
		})

		// Rule management (admin only)
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(domain.RoleAdmin))
			r.Get("/admin/rules", handler.ListRules)
			r.Patch("/admin/rules/{name}", handler.UpdateRule)
		})
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
