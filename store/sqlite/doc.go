// Package sqlite implements the flowsync store on SQLite using sqlx and the
// pure-Go modernc.org/sqlite driver. It suits single-node deployments and
// local development where running Redis, MongoDB, or Postgres is overkill.
//
//	store, err := sqlite.Open(ctx, "/var/lib/flowsync/flowsync.db")
//	if err != nil { ... }
//	defer store.Close()
//	err = store.Migrate(ctx)
//
// Timestamps are stored as Unix nanoseconds so ordering and range filters
// compare integers. Schema changes are embedded golang-migrate files.
package sqlite
