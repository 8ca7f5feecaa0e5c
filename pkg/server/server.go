package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"prism-gw/prism/pkg/config"
	"prism-gw/prism/pkg/keypool"
	"prism-gw/prism/pkg/telemetry/metrics"
	"prism-gw/prism/pkg/upstream"
)

// Dispatcher relays one inbound request through the key pool.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *upstream.Request) (*upstream.Result, error)
}

// UsageReader reports per-key trailing window usage for the status
// endpoint.
type UsageReader interface {
	Usage(key string) int
}

// Server is the gateway's HTTP front. It exposes the relay endpoint, the
// pool status and reset operations, health, and the metrics scrape.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// Options configures a Server.
type Options struct {
	// Config supplies listen address and timeouts.
	Config config.ServerConfig

	// Dispatcher serves the relay endpoint.
	Dispatcher Dispatcher

	// Store backs the status and reset endpoints.
	Store *keypool.Store

	// Usage augments the status endpoint with rate window usage. May be
	// nil.
	Usage UsageReader

	// AccessTokens are the accepted inbound bearer tokens. Empty
	// disables inbound authentication.
	AccessTokens []string

	// Metrics serves the scrape endpoint. nil serves 404 there.
	Metrics *metrics.Collector

	// Logger receives request and lifecycle records. nil falls back to
	// the process default.
	Logger *slog.Logger
}

// New builds a Server. Run starts it.
func New(opts Options) (*Server, error) {
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("server: dispatcher is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("server: key store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &handlers{
		dispatcher: opts.Dispatcher,
		store:      opts.Store,
		usage:      opts.Usage,
		logger:     logger,
	}

	mux := http.NewServeMux()
	auth := authMiddleware(opts.AccessTokens, logger)
	mux.Handle("POST /v1/generate", auth(http.HandlerFunc(h.generate)))
	mux.Handle("GET /v1/keys", auth(http.HandlerFunc(h.listKeys)))
	mux.Handle("POST /v1/keys/reset", auth(http.HandlerFunc(h.resetKeys)))
	mux.HandleFunc("GET /healthz", h.health)
	mux.Handle("GET /metrics", opts.Metrics.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:           opts.Config.ListenAddress,
			Handler:        mux,
			ReadTimeout:    opts.Config.ReadTimeout,
			WriteTimeout:   opts.Config.WriteTimeout,
			IdleTimeout:    opts.Config.IdleTimeout,
			MaxHeaderBytes: opts.Config.MaxHeaderBytes,
		},
		shutdownTimeout: opts.Config.ShutdownTimeout,
		logger:          logger,
	}, nil
}

// Run serves until ctx is canceled, then drains connections within the
// shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.logger.Info("http server draining")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return <-errCh
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
