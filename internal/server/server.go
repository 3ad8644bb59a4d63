// Package server wires the reference sync server: router, middleware and the
// HTTP server lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/iudanet/gophsync/internal/server/handlers"
	"github.com/iudanet/gophsync/internal/server/middleware"
	"github.com/iudanet/gophsync/internal/server/storage"
)

// Store is the storage the server needs
type Store interface {
	storage.EntityStorage
	handlers.Pinger
}

// Config holds server settings
type Config struct {
	Address         string
	Version         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RateWindow      time.Duration
	RateLimit       int // 0 отключает ограничение
	MaxBatchSize    int
}

// Server represents the sync HTTP server
type Server struct {
	logger  *slog.Logger
	limiter *middleware.RateLimiter
	handler http.Handler
	cfg     Config
}

// New creates the server and its router
func New(cfg Config, store Store, logger *slog.Logger) *Server {
	s := &Server{
		logger: logger,
		cfg:    cfg,
	}
	if cfg.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow, logger)
	}
	s.handler = NewRouter(cfg, store, s.limiter, logger)
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// NewRouter builds the chi router. A nil limiter disables rate limiting.
func NewRouter(cfg Config, store Store, limiter *middleware.RateLimiter, logger *slog.Logger) http.Handler {
	syncHandler := handlers.NewSyncHandler(logger, store)
	syncHandler.SetMaxBatchSize(cfg.MaxBatchSize)
	healthHandler := handlers.NewHealthHandler(logger, store, cfg.Version)

	r := chi.NewRouter()

	// Глобальные middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger, "/health"))
	r.Use(middleware.Recovery(logger))

	r.Get("/health", healthHandler.Health)

	r.Route("/api/v1/sync/{type}", func(r chi.Router) {
		if limiter != nil {
			// Ограничиваем только запись: чтение изменений дешевое
			r.With(limiter.Middleware).Post("/batch", syncHandler.UploadBatch)
		} else {
			r.Post("/batch", syncHandler.UploadBatch)
		}
		r.Get("/changes", syncHandler.GetChanges)
	})

	return r
}

// Run serves on cfg.Address until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", "address", ln.Addr().String())
		// ErrServerClosed ожидаем после Shutdown
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.stop()
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutdown initiated")

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.stop()
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("Shutdown complete")
	return nil
}

func (s *Server) stop() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}
