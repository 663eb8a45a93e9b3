package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/store"
	"github.com/xraph/flowsync/store/memory"
	"github.com/xraph/flowsync/store/mongo"
	"github.com/xraph/flowsync/store/postgres"
	"github.com/xraph/flowsync/store/redis"
	"github.com/xraph/flowsync/store/sqlite"
)

// Ensure every backend satisfies the aggregate store at compile time.
var (
	_ store.Store = (*memory.Store)(nil)
	_ store.Store = (*redis.Store)(nil)
	_ store.Store = (*mongo.Store)(nil)
	_ store.Store = (*postgres.Store)(nil)
	_ store.Store = (*sqlite.Store)(nil)
)

// OpenStore opens the backend selected by cfg.Driver. The returned store
// owns its connection; Close releases it.
func OpenStore(ctx context.Context, cfg flowsync.StoreConfig, logger *slog.Logger) (store.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		s   store.Store
		err error
	)
	switch cfg.Driver {
	case "", "memory":
		return memory.New(), nil
	case "redis":
		s, err = redis.Open(ctx, cfg.DSN, redis.WithLogger(logger))
	case "mongo":
		s, err = mongo.Open(ctx, cfg.DSN, cfg.Database, mongo.WithLogger(logger))
	case "postgres":
		s, err = postgres.New(ctx, cfg.DSN, postgres.WithLogger(logger))
	case "sqlite":
		s, err = sqlite.Open(ctx, cfg.DSN, sqlite.WithLogger(logger))
	default:
		return nil, fmt.Errorf("engine: unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
