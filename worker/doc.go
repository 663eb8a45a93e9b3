// Package worker consumes the flow queue. A [Handler] decodes one queued
// message and runs the named flow for the named tenant through the
// middleware chain. A [Pool] claims deliveries with bounded concurrency
// and settles each one: acknowledged on success, retried with backoff on
// failure, dead-lettered when the failure is permanent or attempts run
// out.
package worker
