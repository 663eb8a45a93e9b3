// Package observability provides OpenTelemetry metrics for flowsync.
// The MetricsExtension implements lifecycle hooks to record system-wide
// counters for flow enqueues, runs, retries, dead letters, and
// orchestrator passes.
//
// For per-run tracing and duration histograms, see middleware.Tracing and
// middleware.Metrics.
package observability
