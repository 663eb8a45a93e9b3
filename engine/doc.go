// Package engine wires every flowsync subsystem together from a
// flowsync.Config: the store backend, flow registry, secret provider,
// orchestrator, dispatch handler, worker pool, and extension registry.
//
// # Building an Engine
//
//	cfg, err := flowsync.LoadConfig("flowsync.yaml")
//	eng, err := engine.Build(ctx, cfg,
//	    engine.WithFlows(flows.Definitions()...),
//	    engine.WithExtension(myExtension),
//	)
//	defer eng.Close()
//
// # Running
//
// Start launches the worker pool and the pass trigger. With a
// Scheduler.TriggerSpec the pass runs on a seconds-precision cron host;
// without one it runs on a fixed ticker every Scheduler.Interval. The same
// host logs a liveness heartbeat on Scheduler.HeartbeatSpec.
//
//	if err := eng.Start(ctx); err != nil { ... }
//	defer eng.Stop(shutdownCtx)
//
// RunPass and EnqueueNow serve the admin API and CLI.
//
// # Options
//
//   - [WithStore] use an already open store instead of opening one
//   - [WithFlows] register flow definitions
//   - [WithExtension] register a lifecycle extension
//   - [WithMiddleware] append a middleware after the default chain
//   - [WithBackoff] set the retry backoff strategy
//   - [WithTracerProvider] and [WithMeterProvider] set OTel providers
package engine
