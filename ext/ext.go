package ext

import (
	"context"
	"time"

	"github.com/xraph/flowsync/cron"
	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/job"
	"github.com/xraph/flowsync/queue"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// FlowEnqueued is called after the orchestrator queues a due flow.
type FlowEnqueued interface {
	OnFlowEnqueued(ctx context.Context, msg job.Message, nextRun time.Time) error
}

// FlowStarted is called when a worker begins running a flow.
type FlowStarted interface {
	OnFlowStarted(ctx context.Context, d *queue.Delivery, msg job.Message) error
}

// FlowCompleted is called after a flow run succeeds.
type FlowCompleted interface {
	OnFlowCompleted(ctx context.Context, d *queue.Delivery, msg job.Message, elapsed time.Duration) error
}

// FlowFailed is called every time handling a delivery fails. msg is zero
// when the payload did not decode.
type FlowFailed interface {
	OnFlowFailed(ctx context.Context, d *queue.Delivery, msg job.Message, err error) error
}

// FlowRetrying is called when a failed delivery is scheduled for
// redelivery.
type FlowRetrying interface {
	OnFlowRetrying(ctx context.Context, d *queue.Delivery, delay time.Duration) error
}

// FlowDeadLettered is called after a delivery is moved to the DLQ.
type FlowDeadLettered interface {
	OnFlowDeadLettered(ctx context.Context, entry *dlq.Entry) error
}

// PassCompleted is called after each orchestrator pass.
type PassCompleted interface {
	OnPassCompleted(ctx context.Context, report *cron.PassReport) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
