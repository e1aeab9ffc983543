// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the policy decision engine and the workflow
// services over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/flowgate/flowgate/internal/abac"
	"github.com/flowgate/flowgate/internal/metrics"
	"github.com/flowgate/flowgate/internal/server/middleware/logger"
	"github.com/flowgate/flowgate/internal/workflow"
	"github.com/flowgate/flowgate/pkg/middleware"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// Config holds the HTTP server configuration.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server wraps an HTTP server with lifecycle management.
type Server struct {
	httpServer      *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// New assembles the route table and creates the server.
func New(
	cfg Config,
	db *gorm.DB,
	engine *abac.Engine,
	policies *abac.PolicyService,
	workflows *workflow.Service,
	m *metrics.Metrics,
	log *slog.Logger,
) *Server {
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	handlers := NewHandlers(engine, policies, workflows)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeSuccessResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(r.Context()) != nil {
			writeErrorResponse(w, http.StatusServiceUnavailable, "database unavailable", CodeInternalError)
			return
		}
		writeSuccessResponse(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.Handle("GET /metrics", m.Handler())

	base := middleware.NewRouteBuilder(mux).With(
		logger.Middleware(log),
		SubjectMiddleware(db),
	)

	// Policy management is restricted to administrators; the rest of
	// the API relies on service-level visibility and policy checks.
	admin := base.Group(RequireRoles(engine, []string{"admin"}, false, "manage", "Policy"))
	admin.HandleFunc("POST /api/v1/policies", handlers.CreatePolicy)
	admin.HandleFunc("PUT /api/v1/policies/{id}", handlers.UpdatePolicy)
	admin.HandleFunc("DELETE /api/v1/policies/{id}", handlers.DeletePolicy)
	admin.HandleFunc("PUT /api/v1/subjects/{id}/profile", handlers.UpdateSubjectProfile)
	admin.HandleFunc("PUT /api/v1/resources/{type}/{id}/attributes", handlers.SetResourceAttribute)
	admin.HandleFunc("GET /api/v1/audit-logs", handlers.ListAuditLogs)

	base.HandleFunc("GET /api/v1/policies", handlers.ListPolicies)
	base.HandleFunc("GET /api/v1/policies/{id}", handlers.GetPolicy)
	base.HandleFunc("POST /api/v1/access/check", handlers.CheckAccess)
	base.HandleFunc("GET /api/v1/subjects/{id}/profile", handlers.GetSubjectProfile)

	base.HandleFunc("GET /api/v1/workflows", handlers.ListWorkflows)
	base.HandleFunc("POST /api/v1/workflows/graph", handlers.SaveWorkflowGraph)
	base.HandleFunc("GET /api/v1/workflows/{id}", handlers.GetWorkflow)
	base.HandleFunc("DELETE /api/v1/workflows/{id}", handlers.DeleteWorkflow)
	base.HandleFunc("POST /api/v1/workflows/{id}/publish", handlers.PublishWorkflow)
	base.HandleFunc("POST /api/v1/workflows/{id}/clone", handlers.CloneWorkflow)
	base.HandleFunc("GET /api/v1/workflows/{id}/versions", handlers.ListVersions)
	base.HandleFunc("GET /api/v1/workflows/{id}/stages", handlers.ListStages)
	base.HandleFunc("GET /api/v1/workflow-templates", handlers.ListTemplates)
	base.HandleFunc("GET /api/v1/workflow-templates/{id}", handlers.GetTemplate)
	base.HandleFunc("POST /api/v1/workflow-templates/{id}", handlers.CreateFromTemplate)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      mux,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		logger:          log.With("module", "server"),
		shutdownTimeout: shutdownTimeout,
	}
}

// Run starts the server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
