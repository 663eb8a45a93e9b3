package ext_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xraph/flowsync/cron"
	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/ext"
	"github.com/xraph/flowsync/job"
	"github.com/xraph/flowsync/queue"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnFlowEnqueued(context.Context, job.Message, time.Time) error {
	e.calls = append(e.calls, "OnFlowEnqueued")
	return nil
}

func (e *allHooksExt) OnFlowStarted(context.Context, *queue.Delivery, job.Message) error {
	e.calls = append(e.calls, "OnFlowStarted")
	return nil
}

func (e *allHooksExt) OnFlowCompleted(context.Context, *queue.Delivery, job.Message, time.Duration) error {
	e.calls = append(e.calls, "OnFlowCompleted")
	return nil
}

func (e *allHooksExt) OnFlowFailed(context.Context, *queue.Delivery, job.Message, error) error {
	e.calls = append(e.calls, "OnFlowFailed")
	return nil
}

func (e *allHooksExt) OnFlowRetrying(context.Context, *queue.Delivery, time.Duration) error {
	e.calls = append(e.calls, "OnFlowRetrying")
	return nil
}

func (e *allHooksExt) OnFlowDeadLettered(context.Context, *dlq.Entry) error {
	e.calls = append(e.calls, "OnFlowDeadLettered")
	return nil
}

func (e *allHooksExt) OnPassCompleted(context.Context, *cron.PassReport) error {
	e.calls = append(e.calls, "OnPassCompleted")
	return nil
}

func (e *allHooksExt) OnShutdown(context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// passOnlyExt only implements PassCompleted.
type passOnlyExt struct {
	reports []*cron.PassReport
}

func (e *passOnlyExt) Name() string { return "pass-only" }

func (e *passOnlyExt) OnPassCompleted(_ context.Context, r *cron.PassReport) error {
	e.reports = append(e.reports, r)
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnShutdown(context.Context) error {
	return errors.New("shutdown boom")
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	d := &queue.Delivery{}
	msg := job.Message{TenantID: "t", FlowName: "f"}

	r.EmitFlowEnqueued(ctx, msg, time.Now())
	r.EmitFlowStarted(ctx, d, msg)
	r.EmitFlowCompleted(ctx, d, msg, time.Second)
	r.EmitFlowFailed(ctx, d, msg, errors.New("fail"))
	r.EmitFlowRetrying(ctx, d, time.Second)
	r.EmitFlowDeadLettered(ctx, &dlq.Entry{})
	r.EmitPassCompleted(ctx, &cron.PassReport{})
	r.EmitShutdown(ctx)

	expected := []string{
		"OnFlowEnqueued", "OnFlowStarted", "OnFlowCompleted", "OnFlowFailed",
		"OnFlowRetrying", "OnFlowDeadLettered", "OnPassCompleted", "OnShutdown",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	po := &passOnlyExt{}
	r.Register(all)
	r.Register(po)

	ctx := context.Background()
	report := &cron.PassReport{FlowsEnqueued: 3}
	r.EmitPassCompleted(ctx, report)
	r.EmitShutdown(ctx)

	if len(po.reports) != 1 || po.reports[0] != report {
		t.Errorf("pass-only reports = %v", po.reports)
	}
	if len(all.calls) != 2 {
		t.Errorf("all-hooks calls = %v", all.calls)
	}
	if got := len(r.Extensions()); got != 2 {
		t.Errorf("Extensions = %d, want 2", got)
	}
}

func TestRegistry_HookErrorsAreLoggedNotPropagated(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r := ext.NewRegistry(logger)
	all := &allHooksExt{}
	r.Register(&failingExt{})
	r.Register(all)

	r.EmitShutdown(context.Background())

	if len(all.calls) != 1 {
		t.Errorf("later extension not notified after failure: %v", all.calls)
	}
	out := buf.String()
	if !strings.Contains(out, "extension hook error") || !strings.Contains(out, "failing") {
		t.Errorf("log output = %q", out)
	}
}

func TestRegistry_Empty(t *testing.T) {
	r := ext.NewRegistry(nil)
	// No extensions: emit calls must not panic.
	r.EmitFlowEnqueued(context.Background(), job.Message{}, time.Now())
	r.EmitShutdown(context.Background())
}
