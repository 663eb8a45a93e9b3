package engine_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/engine"
	"github.com/xraph/flowsync/flow"
	"github.com/xraph/flowsync/job"
	"github.com/xraph/flowsync/queue"
	"github.com/xraph/flowsync/secret"
	"github.com/xraph/flowsync/store/memory"
	"github.com/xraph/flowsync/tenant"
)

// ──────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────

type recordingTask struct {
	mu      sync.Mutex
	tenants []string
	err     error
}

func (r *recordingTask) Run(_ context.Context, tenantID string, _ secret.Accessor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants = append(r.tenants, tenantID)
	return r.err
}

func (r *recordingTask) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tenants)
}

type lifecycleExt struct {
	completed atomic.Int64
	shutdown  atomic.Int64
}

func (e *lifecycleExt) Name() string { return "lifecycle" }

func (e *lifecycleExt) OnFlowCompleted(context.Context, *queue.Delivery, job.Message, time.Duration) error {
	e.completed.Add(1)
	return nil
}

func (e *lifecycleExt) OnShutdown(context.Context) error {
	e.shutdown.Add(1)
	return nil
}

func testConfig() flowsync.Config {
	cfg := flowsync.DefaultConfig()
	cfg.Scheduler.TriggerSpec = ""
	cfg.Scheduler.HeartbeatSpec = ""
	cfg.Worker.PollInterval = 10 * time.Millisecond
	cfg.Queue.BackoffInitial = time.Millisecond
	cfg.Queue.BackoffMax = time.Millisecond
	return cfg
}

func seedTenant(t *testing.T, s *memory.Store, tid string) {
	t.Helper()
	tn := &tenant.Tenant{
		TenantID: tid,
		Flows:    []tenant.FlowConfig{{Name: "fake-flow", Enabled: true, Cron: "0 0 * * * *"}},
	}
	if err := s.CreateTenant(context.Background(), tn); err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
}

func build(t *testing.T, cfg flowsync.Config, s *memory.Store, task flow.Task, opts ...engine.Option) *engine.Engine {
	t.Helper()
	base := []engine.Option{
		engine.WithStore(s),
		engine.WithLogger(slog.New(slog.DiscardHandler)),
		engine.WithFlows(flow.Definition{Name: "fake-flow", New: flow.Static(task)}),
	}
	eng, err := engine.Build(context.Background(), cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = eng.Stop(ctx)
		_ = eng.Close()
	})
	return eng
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// ──────────────────────────────────────────────────
// Build
// ──────────────────────────────────────────────────

func TestBuild_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Worker.Concurrency = 0
	if _, err := engine.Build(context.Background(), cfg, engine.WithStore(memory.New())); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestBuild_DuplicateFlows(t *testing.T) {
	task := &recordingTask{}
	_, err := engine.Build(context.Background(), testConfig(),
		engine.WithStore(memory.New()),
		engine.WithFlows(
			flow.Definition{Name: "fake-flow", New: flow.Static(task)},
			flow.Definition{Name: "FAKE-FLOW", New: flow.Static(task)},
		),
	)
	if !errors.Is(err, flowsync.ErrDuplicateFlow) {
		t.Fatalf("Build = %v, want ErrDuplicateFlow", err)
	}
}

func TestBuild_OpensMemoryStoreFromConfig(t *testing.T) {
	eng, err := engine.Build(context.Background(), testConfig(), engine.WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := eng.Store().Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := eng.Store().Ping(context.Background()); !errors.Is(err, flowsync.ErrStoreClosed) {
		t.Errorf("Ping after Close = %v, want ErrStoreClosed", err)
	}
}

func TestBuild_SecretsDriver(t *testing.T) {
	s := memory.New()

	cfg := testConfig()
	eng := build(t, cfg, s, &recordingTask{})
	if eng.Secrets() != s {
		t.Error("store secrets driver should read from the backend store")
	}

	cfg.Secrets.Driver = "memory"
	eng = build(t, cfg, s, &recordingTask{})
	if eng.Secrets() == s {
		t.Error("memory secrets driver should not share the backend store")
	}
}

// ──────────────────────────────────────────────────
// Running
// ──────────────────────────────────────────────────

func TestEngine_EndToEnd_PassDispatchesFlows(t *testing.T) {
	s := memory.New()
	seedTenant(t, s, "acme")
	seedTenant(t, s, "globex")

	task := &recordingTask{}
	tracker := &lifecycleExt{}
	eng := build(t, testConfig(), s, task, engine.WithExtension(tracker))

	// With no trigger spec the ticker runs a pass immediately.
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "both tenants to run", func() bool { return tracker.completed.Load() == 2 })

	for _, tid := range []string{"acme", "globex"} {
		got, err := s.GetTenant(context.Background(), tid)
		if err != nil {
			t.Fatalf("GetTenant: %v", err)
		}
		if got.Flows[0].NextRunUTC == nil {
			t.Errorf("%s watermark not advanced", tid)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := eng.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if tracker.shutdown.Load() != 1 {
		t.Errorf("shutdown hooks = %d, want 1", tracker.shutdown.Load())
	}
	if n, _ := s.CountMessages(context.Background(), eng.Config().Queue.Name); n != 0 {
		t.Errorf("queue depth = %d, want 0", n)
	}
}

func TestEngine_CronTrigger(t *testing.T) {
	s := memory.New()
	seedTenant(t, s, "acme")

	cfg := testConfig()
	cfg.Scheduler.TriggerSpec = "* * * * * *"
	task := &recordingTask{}
	eng := build(t, cfg, s, task)

	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "cron-triggered pass", func() bool { return task.Count() == 1 })
}

func TestEngine_StartRejectsBadTriggerSpec(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.TriggerSpec = "not a cron"
	eng := build(t, cfg, memory.New(), &recordingTask{})

	if err := eng.Start(context.Background()); err == nil {
		t.Fatal("expected error for malformed trigger spec")
	}
}

func TestEngine_FailingFlowDeadLetters(t *testing.T) {
	s := memory.New()
	seedTenant(t, s, "acme")

	cfg := testConfig()
	cfg.Queue.MaxAttempts = 2
	task := &recordingTask{err: errors.New("upstream down")}
	eng := build(t, cfg, s, task)

	if _, err := eng.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "dead letter", func() bool {
		n, _ := eng.DLQService().Count(context.Background())
		return n == 1
	})
	if got := task.Count(); got != 2 {
		t.Errorf("runs = %d, want 2", got)
	}

	entries, err := eng.DLQService().List(context.Background(), dlq.ListOpts{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if entries[0].TenantID != "acme" || entries[0].FlowName != "fake-flow" {
		t.Errorf("entry = %+v", entries[0])
	}
	if !strings.Contains(entries[0].Error, "upstream down") {
		t.Errorf("entry error = %q", entries[0].Error)
	}
}

func TestEngine_StopIdempotent(t *testing.T) {
	eng := build(t, testConfig(), memory.New(), &recordingTask{})
	if err := eng.Stop(context.Background()); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if err := eng.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := eng.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

// ──────────────────────────────────────────────────
// EnqueueNow
// ──────────────────────────────────────────────────

func TestEnqueueNow(t *testing.T) {
	s := memory.New()
	seedTenant(t, s, "acme")
	eng := build(t, testConfig(), s, &recordingTask{})
	ctx := context.Background()

	if _, err := eng.EnqueueNow(ctx, "acme", "nope"); !errors.Is(err, flowsync.ErrUnknownFlow) {
		t.Errorf("unknown flow = %v, want ErrUnknownFlow", err)
	}
	if _, err := eng.EnqueueNow(ctx, "ghost", "fake-flow"); !errors.Is(err, flowsync.ErrTenantNotFound) {
		t.Errorf("unknown tenant = %v, want ErrTenantNotFound", err)
	}

	d, err := eng.EnqueueNow(ctx, "acme", "Fake-Flow")
	if err != nil {
		t.Fatalf("EnqueueNow: %v", err)
	}
	msg, err := job.Decode(d.Payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.TenantID != "acme" || msg.FlowName != "Fake-Flow" {
		t.Errorf("message = %+v", msg)
	}

	got, err := s.GetTenant(ctx, "acme")
	if err != nil {
		t.Fatalf("GetTenant: %v", err)
	}
	if got.Flows[0].NextRunUTC != nil {
		t.Error("EnqueueNow must not touch the watermark")
	}
}

// ──────────────────────────────────────────────────
// Logger and store selection
// ──────────────────────────────────────────────────

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	engine.NewLogger(flowsync.LogConfig{Level: "warn", Format: "json"}, &buf).Info("hidden")
	engine.NewLogger(flowsync.LogConfig{Level: "warn", Format: "json"}, &buf).Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line written at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("json output = %q", out)
	}

	buf.Reset()
	engine.NewLogger(flowsync.LogConfig{Level: "debug", Format: "text"}, &buf).Debug("dbg")
	if !strings.Contains(buf.String(), "msg=dbg") {
		t.Errorf("text output = %q", buf.String())
	}
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	if _, err := engine.OpenStore(context.Background(), flowsync.StoreConfig{Driver: "cosmos"}, nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
