package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aretw0/sketchy/internal/config"
	"github.com/aretw0/sketchy/internal/metrics"
	"github.com/aretw0/sketchy/internal/server"
	"github.com/aretw0/sketchy/pkg/adapters/memory"
	"github.com/aretw0/sketchy/pkg/adapters/redis"
	"github.com/aretw0/sketchy/pkg/ports"
	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions contains the configuration of the 'serve' command.
type ServeOptions struct {
	Config  config.Config
	Debug   bool
	Version string
}

// Serve runs the development backend until ctx is cancelled.
func Serve(ctx context.Context, opts ServeOptions) error {
	cfg := opts.Config
	logger, err := NewLogger(cfg.Log, opts.Debug)
	if err != nil {
		return err
	}

	store, closeStore, err := openArtifactStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeQuietly(logger, closeStore)

	collector := metrics.NewCollector("sketchy")
	srv := server.New(store,
		server.WithLogger(logger),
		server.WithMetrics(collector),
		server.WithVersion(opts.Version),
		server.WithLimits(server.Limits{
			MaxDimension:       cfg.Server.MaxDimension,
			MaxUploadDimension: cfg.Server.MaxUploadDimension,
			MaxUploadBytes:     cfg.Server.MaxUploadBytes,
		}),
	)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return listenAndShutdown(ctx, httpSrv, logger)
}

func openArtifactStore(ctx context.Context, cfg config.Config) (ports.RecordStore, func() error, error) {
	switch cfg.Server.Store {
	case "", "memory":
		return memory.NewStore(), func() error { return nil }, nil
	case "redis":
		rc := cfg.Store.Redis
		rs := redis.New(rc.Addr, rc.Password, rc.DB,
			redis.WithPrefix(rc.Prefix+"artifacts:"),
			redis.WithTTL(cfg.Server.ArtifactTTL),
		)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("cannot reach redis at %s: %w", rc.Addr, err)
		}
		return rs, rs.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown server store %q", cfg.Server.Store)
}

// listenAndShutdown serves until ctx is done, then drains outstanding
// requests for at most shutdownTimeout.
func listenAndShutdown(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", ln.Addr().String())
		serverErrors <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
			return srv.Close()
		}
		logger.Info("Server stopped gracefully")
		return nil
	}
}

// serveMetrics exposes the collector on addr in the background.
func serveMetrics(addr string, collector *metrics.Collector, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	r := chi.NewRouter()
	r.Handle("/metrics", collector.Handler())
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics server stopped", "error", err)
		}
	}()
	logger.Debug("Metrics exposed", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
