package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/render"

	apperrors "github.com/tendant/simple-oidc/pkg/errors"
)

// Server wraps an http.Server with a draining flag and an in-flight counter.
// Once Shutdown starts, routes guarded by RejectWhenDraining answer 503 while
// requests already running are given until the shutdown deadline to finish.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration

	draining atomic.Bool
	inFlight atomic.Int64
}

// Option configures a Server
type Option func(*Server)

// WithTimeouts sets the read and write timeouts of the underlying http.Server
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		s.httpServer.ReadTimeout = read
		s.httpServer.WriteTimeout = write
	}
}

// WithShutdownTimeout bounds how long Shutdown waits for in-flight requests
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// New creates a Server listening on addr. The handler is wrapped so every
// request is counted while it runs.
func New(addr string, handler http.Handler, opts ...Option) *Server {
	s := &Server{shutdownTimeout: 15 * time.Second}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.track(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Draining reports whether shutdown has begun
func (s *Server) Draining() bool {
	return s.draining.Load()
}

// InFlight returns the number of requests currently being served
func (s *Server) InFlight() int64 {
	return s.inFlight.Load()
}

func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.inFlight.Add(1)
		defer s.inFlight.Add(-1)
		next.ServeHTTP(w, r)
	})
}

// RejectWhenDraining refuses new login attempts once shutdown has begun
func (s *Server) RejectWhenDraining(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.draining.Load() {
			w.Header().Set("Connection", "close")
			w.Header().Set("Retry-After", "5")
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{
				"error":             apperrors.OAuthTemporarilyUnavailable,
				"error_description": "server is shutting down",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Serve accepts connections on l until Shutdown is called
func (s *Server) Serve(l net.Listener) error {
	slog.Info("HTTP server listening", "addr", l.Addr().String())
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured address and serves until Shutdown
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(l)
}

// Shutdown flips the draining flag, then waits for in-flight requests up to
// the shutdown timeout. Requests still running at the deadline are abandoned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.draining.Store(true)
	slog.Info("Draining HTTP server", "in_flight", s.inFlight.Load(), "timeout", s.shutdownTimeout)

	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Warn("Shutdown deadline reached, closing remaining connections",
			"in_flight", s.inFlight.Load(), "error", err)
		if closeErr := s.httpServer.Close(); closeErr != nil {
			return fmt.Errorf("close: %w", closeErr)
		}
		return err
	}
	slog.Info("HTTP server stopped")
	return nil
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// ctx is already done; the drain gets its own deadline
	if err := s.Shutdown(context.Background()); err != nil {
		return err
	}
	return <-errCh
}
