package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/flowsync/cron"
	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/job"
	"github.com/xraph/flowsync/queue"
)

// entry pairs a hook implementation with the extension name captured at
// registration time.
type entry[H any] struct {
	name string
	hook H
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	flowEnqueued     []entry[FlowEnqueued]
	flowStarted      []entry[FlowStarted]
	flowCompleted    []entry[FlowCompleted]
	flowFailed       []entry[FlowFailed]
	flowRetrying     []entry[FlowRetrying]
	flowDeadLettered []entry[FlowDeadLettered]
	passCompleted    []entry[PassCompleted]
	shutdown         []entry[Shutdown]
}

// Registry satisfies the orchestrator's emitter contract.
var _ cron.Emitter = (*Registry)(nil)

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order. Register
// must not be called concurrently with the Emit methods.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(FlowEnqueued); ok {
		r.flowEnqueued = append(r.flowEnqueued, entry[FlowEnqueued]{name, h})
	}
	if h, ok := e.(FlowStarted); ok {
		r.flowStarted = append(r.flowStarted, entry[FlowStarted]{name, h})
	}
	if h, ok := e.(FlowCompleted); ok {
		r.flowCompleted = append(r.flowCompleted, entry[FlowCompleted]{name, h})
	}
	if h, ok := e.(FlowFailed); ok {
		r.flowFailed = append(r.flowFailed, entry[FlowFailed]{name, h})
	}
	if h, ok := e.(FlowRetrying); ok {
		r.flowRetrying = append(r.flowRetrying, entry[FlowRetrying]{name, h})
	}
	if h, ok := e.(FlowDeadLettered); ok {
		r.flowDeadLettered = append(r.flowDeadLettered, entry[FlowDeadLettered]{name, h})
	}
	if h, ok := e.(PassCompleted); ok {
		r.passCompleted = append(r.passCompleted, entry[PassCompleted]{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, entry[Shutdown]{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// EmitFlowEnqueued notifies all extensions that implement FlowEnqueued.
func (r *Registry) EmitFlowEnqueued(ctx context.Context, msg job.Message, nextRun time.Time) {
	for _, e := range r.flowEnqueued {
		if err := e.hook.OnFlowEnqueued(ctx, msg, nextRun); err != nil {
			r.logHookError("OnFlowEnqueued", e.name, err)
		}
	}
}

// EmitFlowStarted notifies all extensions that implement FlowStarted.
func (r *Registry) EmitFlowStarted(ctx context.Context, d *queue.Delivery, msg job.Message) {
	for _, e := range r.flowStarted {
		if err := e.hook.OnFlowStarted(ctx, d, msg); err != nil {
			r.logHookError("OnFlowStarted", e.name, err)
		}
	}
}

// EmitFlowCompleted notifies all extensions that implement FlowCompleted.
func (r *Registry) EmitFlowCompleted(ctx context.Context, d *queue.Delivery, msg job.Message, elapsed time.Duration) {
	for _, e := range r.flowCompleted {
		if err := e.hook.OnFlowCompleted(ctx, d, msg, elapsed); err != nil {
			r.logHookError("OnFlowCompleted", e.name, err)
		}
	}
}

// EmitFlowFailed notifies all extensions that implement FlowFailed.
func (r *Registry) EmitFlowFailed(ctx context.Context, d *queue.Delivery, msg job.Message, flowErr error) {
	for _, e := range r.flowFailed {
		if err := e.hook.OnFlowFailed(ctx, d, msg, flowErr); err != nil {
			r.logHookError("OnFlowFailed", e.name, err)
		}
	}
}

// EmitFlowRetrying notifies all extensions that implement FlowRetrying.
func (r *Registry) EmitFlowRetrying(ctx context.Context, d *queue.Delivery, delay time.Duration) {
	for _, e := range r.flowRetrying {
		if err := e.hook.OnFlowRetrying(ctx, d, delay); err != nil {
			r.logHookError("OnFlowRetrying", e.name, err)
		}
	}
}

// EmitFlowDeadLettered notifies all extensions that implement FlowDeadLettered.
func (r *Registry) EmitFlowDeadLettered(ctx context.Context, de *dlq.Entry) {
	for _, e := range r.flowDeadLettered {
		if err := e.hook.OnFlowDeadLettered(ctx, de); err != nil {
			r.logHookError("OnFlowDeadLettered", e.name, err)
		}
	}
}

// EmitPassCompleted notifies all extensions that implement PassCompleted.
func (r *Registry) EmitPassCompleted(ctx context.Context, report *cron.PassReport) {
	for _, e := range r.passCompleted {
		if err := e.hook.OnPassCompleted(ctx, report); err != nil {
			r.logHookError("OnPassCompleted", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
