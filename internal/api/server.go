package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/wonny/rgm/pkg/config"
	"github.com/wonny/rgm/pkg/logger"
)

const (
	defaultWriteTimeout    = 120 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// Server serves the scenario API until its context ends.
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	httpServer      *http.Server
	logger          *logger.Logger
	env             string
	shutdownTimeout time.Duration
}

// New creates a new API server. A synchronous POST /api/scenarios runs estimation
// inside the request, so the write timeout comes from WriteTimeout, not a fixed value.
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	write := cfg.WriteTimeout
	if write <= 0 {
		write = defaultWriteTimeout
	}
	shutdown := cfg.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = defaultShutdownTimeout
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      write,
			IdleTimeout:       60 * time.Second,
		},
		logger:          log,
		env:             cfg.Env,
		shutdownTimeout: shutdown,
	}
}

// OnShutdown registers a hook run when shutdown starts. http.Server does not track
// hijacked connections, so the websocket feed closes its subscribers here.
func (s *Server) OnShutdown(fn func()) {
	s.httpServer.RegisterOnShutdown(fn)
}

// Serve accepts connections on ln until ctx is done, then drains in-flight
// scenario requests for at most the shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.WithFields(map[string]interface{}{
		"addr":          ln.Addr().String(),
		"env":           s.env,
		"write_timeout": s.httpServer.WriteTimeout.String(),
	}).Info("Starting API server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// ListenAndServe binds the configured port and serves until ctx is done
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Shutdown stops accepting scenarios and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
