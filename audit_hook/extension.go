package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/flowsync/cron"
	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/ext"
	"github.com/xraph/flowsync/job"
	"github.com/xraph/flowsync/queue"
)

// Compile-time interface checks.
var (
	_ ext.Extension        = (*Extension)(nil)
	_ ext.FlowEnqueued     = (*Extension)(nil)
	_ ext.FlowStarted      = (*Extension)(nil)
	_ ext.FlowCompleted    = (*Extension)(nil)
	_ ext.FlowFailed       = (*Extension)(nil)
	_ ext.FlowRetrying     = (*Extension)(nil)
	_ ext.FlowDeadLettered = (*Extension)(nil)
	_ ext.PassCompleted    = (*Extension)(nil)
)

// Recorder persists audit events.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit record.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// LogRecorder returns a Recorder that writes each event as one structured
// log line. Critical events are logged at error level and warnings at warn.
func LogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, evt *AuditEvent) error {
		level := slog.LevelInfo
		switch evt.Severity {
		case SeverityWarning:
			level = slog.LevelWarn
		case SeverityCritical:
			level = slog.LevelError
		}

		attrs := []slog.Attr{
			slog.String("action", evt.Action),
			slog.String("resource", evt.Resource),
			slog.String("resource_id", evt.ResourceID),
			slog.String("category", evt.Category),
			slog.String("outcome", evt.Outcome),
		}
		if evt.Reason != "" {
			attrs = append(attrs, slog.String("reason", evt.Reason))
		}
		meta := make([]any, 0, len(evt.Metadata))
		for k, v := range evt.Metadata {
			meta = append(meta, slog.Any(k, v))
		}
		if len(meta) > 0 {
			attrs = append(attrs, slog.Group("meta", meta...))
		}

		logger.LogAttrs(ctx, level, "audit", attrs...)
		return nil
	})
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges flowsync lifecycle events to an audit trail.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through r.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Flow lifecycle hooks ────────────────────────────

// OnFlowEnqueued implements ext.FlowEnqueued. A zero nextRun marks an
// on-demand enqueue.
func (e *Extension) OnFlowEnqueued(ctx context.Context, msg job.Message, nextRun time.Time) error {
	kv := []any{"flow", msg.FlowName, "on_demand", nextRun.IsZero()}
	if !nextRun.IsZero() {
		kv = append(kv, "next_run_utc", nextRun.UTC().Format(time.RFC3339))
	}
	return e.record(ctx, ActionFlowEnqueued, SeverityInfo, OutcomeSuccess,
		ResourceTenant, msg.TenantID, CategoryFlow, nil, kv...)
}

// OnFlowStarted implements ext.FlowStarted.
func (e *Extension) OnFlowStarted(ctx context.Context, d *queue.Delivery, msg job.Message) error {
	return e.record(ctx, ActionFlowStarted, SeverityInfo, OutcomeSuccess,
		ResourceTenant, msg.TenantID, CategoryFlow, nil,
		"flow", msg.FlowName,
		"delivery_id", d.ID.String(),
		"attempt", d.Attempt,
	)
}

// OnFlowCompleted implements ext.FlowCompleted.
func (e *Extension) OnFlowCompleted(ctx context.Context, d *queue.Delivery, msg job.Message, elapsed time.Duration) error {
	return e.record(ctx, ActionFlowCompleted, SeverityInfo, OutcomeSuccess,
		ResourceTenant, msg.TenantID, CategoryFlow, nil,
		"flow", msg.FlowName,
		"delivery_id", d.ID.String(),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnFlowFailed implements ext.FlowFailed. Payloads that never decoded are
// recorded against the delivery.
func (e *Extension) OnFlowFailed(ctx context.Context, d *queue.Delivery, msg job.Message, flowErr error) error {
	if msg.TenantID == "" {
		return e.record(ctx, ActionFlowFailed, SeverityWarning, OutcomeFailure,
			ResourceDelivery, d.ID.String(), CategoryFlow, flowErr,
			"attempt", d.Attempt,
		)
	}
	return e.record(ctx, ActionFlowFailed, SeverityWarning, OutcomeFailure,
		ResourceTenant, msg.TenantID, CategoryFlow, flowErr,
		"flow", msg.FlowName,
		"delivery_id", d.ID.String(),
		"attempt", d.Attempt,
	)
}

// OnFlowRetrying implements ext.FlowRetrying.
func (e *Extension) OnFlowRetrying(ctx context.Context, d *queue.Delivery, delay time.Duration) error {
	return e.record(ctx, ActionFlowRetrying, SeverityWarning, OutcomeFailure,
		ResourceDelivery, d.ID.String(), CategoryFlow, nil,
		"attempt", d.Attempt,
		"delay_ms", delay.Milliseconds(),
		"last_error", d.LastError,
	)
}

// OnFlowDeadLettered implements ext.FlowDeadLettered.
func (e *Extension) OnFlowDeadLettered(ctx context.Context, entry *dlq.Entry) error {
	var cause error
	if entry.Error != "" {
		cause = errors.New(entry.Error)
	}
	return e.record(ctx, ActionFlowDeadLettered, SeverityCritical, OutcomeFailure,
		ResourceDLQEntry, entry.ID.String(), CategoryFlow, cause,
		"tenant_id", entry.TenantID,
		"flow", entry.FlowName,
		"delivery_id", entry.DeliveryID.String(),
		"attempts", entry.Attempts,
	)
}

// ── Orchestrator hooks ──────────────────────────────

// OnPassCompleted implements ext.PassCompleted.
func (e *Extension) OnPassCompleted(ctx context.Context, report *cron.PassReport) error {
	outcome := OutcomeSuccess
	if report.EnqueueFailures > 0 || report.UpdateFailures > 0 {
		outcome = OutcomeFailure
	}
	return e.record(ctx, ActionPassCompleted, SeverityInfo, outcome,
		ResourcePass, report.ID.String(), CategoryPass, nil,
		"tenants_scanned", report.TenantsScanned,
		"flows_enqueued", report.FlowsEnqueued,
		"conflicts", report.Conflicts,
		"duration_ms", report.Duration.Milliseconds(),
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// kvPairs are added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}
