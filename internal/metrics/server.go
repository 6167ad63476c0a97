// Package metrics implements metrics server.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"firestige.xyz/wire/internal/log"
)

// Server exposes a Prometheus gatherer over HTTP while a replay runs.
type Server struct {
	addr     string
	path     string
	gatherer prometheus.Gatherer
	logger   log.Logger

	listener net.Listener
	server   *http.Server
	done     chan struct{}
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithGatherer serves g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) { s.gatherer = g }
}

// NewServer creates a metrics server for addr. An empty path means /metrics.
func NewServer(addr, path string, logger log.Logger, opts ...ServerOption) *Server {
	if path == "" {
		path = "/metrics"
	}
	s := &Server{
		addr:     addr,
		path:     path,
		gatherer: prometheus.DefaultGatherer,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return HandlerFor(prometheus.DefaultGatherer)
}

// HandlerFor returns the HTTP handler serving g. Collection errors are
// logged and the metrics that could be gathered are still served.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError})
}

// Start binds the listen address and serves in the background. A bind
// failure is returned here rather than logged later.
func (s *Server) Start(_ context.Context) error {
	if s.server != nil {
		return fmt.Errorf("metrics server already started on %s", s.Addr())
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics server listen on %s: %w", s.addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(s.path, HandlerFor(s.gatherer))

	s.listener = ln
	s.done = make(chan struct{})
	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.WithFields(map[string]interface{}{"addr": ln.Addr().String(), "path": s.path}).Info("metrics server listening")

	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("metrics server error")
		}
	}()
	return nil
}

// Addr returns the bound address once started, so ":0" resolves to the
// chosen port.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down and waits for the serve loop to exit.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}
	<-s.done
	s.server = nil
	s.logger.Debug("metrics server stopped")
	return nil
}
