// AngelaMos | 2026
// server.go

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/siliconforge/eda-backend/internal/config"
)

type Server struct {
	httpServer *http.Server
	router     chi.Router
	cfg        config.ServerConfig
}

func New(cfg config.ServerConfig) *Server {
	router := chi.NewRouter()

	return &Server{
		router: router,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:         cfg.Address(),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) Start() error {
	slog.Info("http server listening", "addr", s.cfg.Address())

	if err := s.httpServer.ListenAndServe(); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}

	return nil
}

// Shutdown stops accepting new connections, waits drainDelay so load
// balancers observe the failing readiness probe, then drains in-flight
// requests within the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context, drainDelay time.Duration) error {
	if drainDelay > 0 {
		select {
		case <-time.After(drainDelay):
		case <-ctx.Done():
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	return nil
}
