// Package store defines the aggregate persistence interface. Each
// subsystem (tenant, queue, dlq, secret) defines its own store interface
// and the composite Store composes them all. Backends: Memory, Redis,
// MongoDB, Postgres, and SQLite.
package store

import (
	"context"

	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/queue"
	"github.com/xraph/flowsync/secret"
	"github.com/xraph/flowsync/tenant"
)

// Store is the aggregate persistence interface. A single backend
// implements every subsystem store.
type Store interface {
	tenant.Store
	queue.Store
	dlq.Store
	secret.Store

	// Migrate creates or updates the schema and indexes.
	Migrate(ctx context.Context) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases the connection.
	Close() error
}
