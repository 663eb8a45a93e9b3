// Package middleware provides composable middleware around flow runs.
//
// A [Middleware] wraps the call that runs one flow for one tenant.
// Middleware are composed into a chain using [Chain] and applied before
// each flow runs. The first middleware in the slice is the outermost
// wrapper.
//
//	// logging → recover → flow
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] logs tenant, flow, duration and outcome
//   - [Recover] converts panics into errors
//   - [Timeout] cancels the flow context after a fixed duration
//   - [Tracing] wraps the run in an OpenTelemetry span
//   - [Metrics] records per-flow duration and outcome counters
//
// Middleware must return the error from next unchanged so callers can
// match it with errors.Is.
package middleware
