// Package ext defines the extension system for flowsync.
//
// Extensions are notified of lifecycle events and can react to them:
// recording metrics, writing audit logs, paging someone. Each lifecycle
// hook is a separate interface so extensions opt in only to the events
// they care about.
//
// # Implementing an Extension
//
//	type Pager struct{}
//
//	func (p *Pager) Name() string { return "pager" }
//
//	func (p *Pager) OnFlowDeadLettered(ctx context.Context, e *dlq.Entry) error {
//	    return page(ctx, e.TenantID, e.FlowName, e.Error)
//	}
//
// # Hooks
//
//   - [FlowEnqueued] the orchestrator queued a due flow
//   - [FlowStarted] a worker began running a flow
//   - [FlowCompleted] a flow run returned without error
//   - [FlowFailed] a flow run returned an error (every attempt)
//   - [FlowRetrying] a failed delivery will be redelivered
//   - [FlowDeadLettered] a delivery was moved to the dead letter queue
//   - [PassCompleted] an orchestrator pass finished
//   - [Shutdown] the engine is stopping
//
// Hook errors are logged and never propagated.
package ext
