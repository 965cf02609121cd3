package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"convertcli/internal/config"
	"convertcli/internal/storage"
	"convertcli/pkg/contracts"
	v1 "convertcli/pkg/contracts/api/v1"
)

// Server is the license server's HTTP front.
type Server struct {
	httpServer *http.Server
	store      *storage.Store
	logger     *slog.Logger
}

// NewServer wires the router and handlers.
func NewServer(cfg config.ServerConfig, store *storage.Store, logger *slog.Logger) *Server {
	s := &Server{
		store:  store,
		logger: logger.With(slog.String("component", "http_server")),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/healthz", s.health)
	r.Mount("/api/license", NewLicenseHandler(store, logger).Routes())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Start blocks serving HTTP until Shutdown or failure.
func (s *Server) Start() error {
	s.logger.Info("license server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := v1.HealthResponse{
		Status:   "ok",
		Database: "ok",
		Version:  contracts.Version,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = err.Error()
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, resp)
}
