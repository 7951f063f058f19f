package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/sketchy/internal/config"
	"github.com/aretw0/sketchy/internal/logging"
	"github.com/aretw0/sketchy/pkg/adapters/file"
	"github.com/aretw0/sketchy/pkg/adapters/memory"
	"github.com/aretw0/sketchy/pkg/adapters/redis"
	"github.com/aretw0/sketchy/pkg/persistence/middleware"
	"github.com/aretw0/sketchy/pkg/ports"
)

// NewLogger builds the application logger. debug overrides the configured level.
func NewLogger(cfg config.LogConfig, debug bool) (*slog.Logger, error) {
	if debug {
		return logging.New(slog.LevelDebug), nil
	}
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(level), nil
}

// OpenStore creates the record store selected by cfg, wrapped in the
// encryption middleware when a key is configured. The returned closer
// releases connections held by the store.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (ports.RecordStore, func() error, error) {
	noop := func() error { return nil }

	var (
		store  ports.RecordStore
		closer = noop
	)
	switch cfg.Driver {
	case "memory":
		store = memory.NewStore()
	case "", "file":
		store = file.New(cfg.Dir)
	case "redis":
		rs := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, noop, fmt.Errorf("cannot reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		store, closer = rs, rs.Close
	default:
		return nil, noop, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	logger.Debug("Record store ready", "driver", cfg.Driver)

	if cfg.EncryptionKey != "" {
		key, err := middleware.DecodeKey(cfg.EncryptionKey)
		if err != nil {
			_ = closer()
			return nil, noop, err
		}
		store = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})(store)
		logger.Debug("Record encryption enabled")
	}
	return store, closer, nil
}

// closeQuietly is used on exit paths where a close error has nowhere to go.
func closeQuietly(logger *slog.Logger, c func() error) {
	if err := c(); err != nil {
		logger.Warn("Failed to close store", "error", err)
	}
}
