// Package flowsync provides a multi-tenant flow scheduler for Go. Tenants
// own named flows on independent cron schedules; an orchestrator pass
// enqueues every due flow onto a durable queue, and a worker pool runs each
// queued flow with tenant-scoped credentials and at-least-once delivery.
//
// flowsync is designed as a library, not a service. Import it, configure a
// store, and register flows as ordinary Go types at startup.
//
// # Quick Start
//
//	eng, err := engine.Build(flowsync.DefaultConfig(),
//	    engine.WithStore(memory.New()),
//	    engine.WithFlows(flows.Definitions()...),
//	)
//
// # Architecture
//
// Each subsystem (tenant, queue, dlq, secret) defines its own store
// interface. A single backend (memory, redis, mongo, postgres) implements
// the ones it supports.
//
// The pipeline is:
//
//	cron.Scheduler → queue → worker.Pool → worker.Handler → flow.Registry → flow.Task
package flowsync
