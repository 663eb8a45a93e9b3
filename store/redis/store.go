package redis

import (
	"context"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/queue"
	"github.com/xraph/flowsync/secret"
	"github.com/xraph/flowsync/tenant"
)

// Compile-time interface checks.
var (
	_ tenant.Store = (*Store)(nil)
	_ queue.Store  = (*Store)(nil)
	_ dlq.Store    = (*Store)(nil)
	_ secret.Store = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithKeyPrefix overrides the "flowsync:" key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keys = keyspace(prefix) }
}

// Store implements the composite store.Store interface backed by Redis.
type Store struct {
	client goredis.UniversalClient
	keys   keyspace
	logger *slog.Logger
	owned  bool
}

// New creates a Redis-backed store. The caller owns the client.
func New(client goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, keys: defaultPrefix, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open parses a redis:// URL, connects, and returns a store that closes
// the client on Close.
func Open(ctx context.Context, url string, opts ...Option) (*Store, error) {
	o, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := goredis.NewClient(o)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	s := New(client, opts...)
	s.owned = true
	return s, nil
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.UniversalClient { return s.client }

// Migrate is a no-op for Redis.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client when the store opened it.
func (s *Store) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}
