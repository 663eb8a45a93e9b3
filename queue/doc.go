// Package queue defines the durable, at-least-once job queue the
// orchestrator pushes to and the worker pool consumes from.
//
// Payloads are opaque strings (encoded job messages). A consumer claims a
// batch with a visibility lease:
//
//	ds, _ := store.ClaimMessages(ctx, "flow-jobs", 10, 5*time.Minute)
//
// A claimed [Delivery] stays hidden until the lease expires. The consumer
// then either acknowledges it (removing it), or asks for a retry after a
// delay. A consumer that crashes without doing either loses its lease and
// the delivery becomes visible again, which is why flows must be
// idempotent.
//
// Every claim increments [Delivery.Attempt], so the attempt count survives
// crashes as well as explicit retries.
package queue
