// Package tenant defines the Tenant record, its embedded flow
// configurations, and the persistence contract the orchestrator relies on.
//
// A Tenant is read page by page and rewritten only with a conditional
// replace that carries the ETag observed on read. A stale ETag fails with
// a *ConflictError that unwraps to flowsync.ErrConcurrencyConflict.
package tenant
