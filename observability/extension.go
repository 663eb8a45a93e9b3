package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/flowsync/cron"
	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/ext"
	"github.com/xraph/flowsync/job"
	"github.com/xraph/flowsync/queue"
)

// Compile-time interface checks.
var (
	_ ext.Extension        = (*MetricsExtension)(nil)
	_ ext.FlowEnqueued     = (*MetricsExtension)(nil)
	_ ext.FlowCompleted    = (*MetricsExtension)(nil)
	_ ext.FlowFailed       = (*MetricsExtension)(nil)
	_ ext.FlowRetrying     = (*MetricsExtension)(nil)
	_ ext.FlowDeadLettered = (*MetricsExtension)(nil)
	_ ext.PassCompleted    = (*MetricsExtension)(nil)
)

// meterName is the instrumentation scope for lifecycle metrics.
const meterName = "github.com/xraph/flowsync/observability"

// MetricsExtension records lifecycle metrics. Register it as an extension
// to track enqueue rates, run outcomes, retries, dead letters, and the
// outcome of each orchestrator pass.
type MetricsExtension struct {
	FlowEnqueued     metric.Int64Counter
	FlowCompleted    metric.Int64Counter
	FlowFailed       metric.Int64Counter
	FlowRetried      metric.Int64Counter
	FlowDeadLettered metric.Int64Counter

	Passes             metric.Int64Counter
	PassDuration       metric.Float64Histogram
	MalformedSchedules metric.Int64Counter
	Conflicts          metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter. Instrument creation errors yield noop instruments.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	passDuration, _ := meter.Float64Histogram("flowsync.pass.duration",
		metric.WithDescription("Duration of orchestrator passes in seconds"),
		metric.WithUnit("s"),
	)

	return &MetricsExtension{
		FlowEnqueued:       counter("flowsync.flow.enqueued", "Flows queued by the orchestrator"),
		FlowCompleted:      counter("flowsync.flow.completed", "Flow runs that succeeded"),
		FlowFailed:         counter("flowsync.flow.failed", "Flow run attempts that failed"),
		FlowRetried:        counter("flowsync.flow.retried", "Failed deliveries scheduled for redelivery"),
		FlowDeadLettered:   counter("flowsync.flow.dead_lettered", "Deliveries moved to the dead letter queue"),
		Passes:             counter("flowsync.pass.completed", "Orchestrator passes completed"),
		PassDuration:       passDuration,
		MalformedSchedules: counter("flowsync.pass.malformed_schedules", "Flows with unparseable cron expressions"),
		Conflicts:          counter("flowsync.pass.conflicts", "Tenant writes lost to a concurrent writer"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func flowAttr(flow string) metric.AddOption {
	return metric.WithAttributes(attribute.String("flow", flow))
}

// ── Flow lifecycle hooks ────────────────────────────

// OnFlowEnqueued implements ext.FlowEnqueued.
func (m *MetricsExtension) OnFlowEnqueued(ctx context.Context, msg job.Message, _ time.Time) error {
	m.FlowEnqueued.Add(ctx, 1, flowAttr(msg.FlowName))
	return nil
}

// OnFlowCompleted implements ext.FlowCompleted.
func (m *MetricsExtension) OnFlowCompleted(ctx context.Context, _ *queue.Delivery, msg job.Message, _ time.Duration) error {
	m.FlowCompleted.Add(ctx, 1, flowAttr(msg.FlowName))
	return nil
}

// OnFlowFailed implements ext.FlowFailed.
func (m *MetricsExtension) OnFlowFailed(ctx context.Context, _ *queue.Delivery, msg job.Message, _ error) error {
	m.FlowFailed.Add(ctx, 1, flowAttr(msg.FlowName))
	return nil
}

// OnFlowRetrying implements ext.FlowRetrying.
func (m *MetricsExtension) OnFlowRetrying(ctx context.Context, _ *queue.Delivery, _ time.Duration) error {
	m.FlowRetried.Add(ctx, 1)
	return nil
}

// OnFlowDeadLettered implements ext.FlowDeadLettered.
func (m *MetricsExtension) OnFlowDeadLettered(ctx context.Context, e *dlq.Entry) error {
	m.FlowDeadLettered.Add(ctx, 1, flowAttr(e.FlowName))
	return nil
}

// ── Orchestrator hooks ──────────────────────────────

// OnPassCompleted implements ext.PassCompleted.
func (m *MetricsExtension) OnPassCompleted(ctx context.Context, r *cron.PassReport) error {
	m.Passes.Add(ctx, 1)
	m.PassDuration.Record(ctx, r.Duration.Seconds())
	if r.MalformedSchedules > 0 {
		m.MalformedSchedules.Add(ctx, int64(r.MalformedSchedules))
	}
	if r.Conflicts > 0 {
		m.Conflicts.Add(ctx, int64(r.Conflicts))
	}
	return nil
}
