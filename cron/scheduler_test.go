package cron_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/cron"
	"github.com/xraph/flowsync/job"
	"github.com/xraph/flowsync/store/memory"
	"github.com/xraph/flowsync/tenant"
)

// enqueueSpy records payloads and can fail selected flows.
type enqueueSpy struct {
	mu       sync.Mutex
	messages []job.Message
	failFlow string
}

func (e *enqueueSpy) Enqueue(_ context.Context, payload string) error {
	msg, err := job.Decode(payload)
	if err != nil {
		return err
	}
	if msg.FlowName == e.failFlow {
		return errors.New("queue unavailable")
	}
	e.mu.Lock()
	e.messages = append(e.messages, msg)
	e.mu.Unlock()
	return nil
}

func (e *enqueueSpy) Messages() []job.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]job.Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// stubEmitter counts emitted events.
type stubEmitter struct {
	enqueued atomic.Int32
	passes   atomic.Int32
}

func (e *stubEmitter) EmitFlowEnqueued(context.Context, job.Message, time.Time) { e.enqueued.Add(1) }
func (e *stubEmitter) EmitPassCompleted(context.Context, *cron.PassReport)     { e.passes.Add(1) }

// racingStore lets a competing writer bump a tenant between the pass's
// read and its conditional replace.
type racingStore struct {
	*memory.Store
	raceTenant string
}

func (r *racingStore) ReplaceTenant(ctx context.Context, t *tenant.Tenant) error {
	if t.TenantID == r.raceTenant {
		cur, err := r.Store.GetTenant(ctx, t.TenantID)
		if err != nil {
			return err
		}
		cur.Name = "edited by admin"
		if err := r.Store.ReplaceTenant(ctx, cur); err != nil {
			return err
		}
	}
	return r.Store.ReplaceTenant(ctx, t)
}

// failingListStore fails ListTenants after the first page.
type failingListStore struct {
	*memory.Store
	calls atomic.Int32
}

func (f *failingListStore) ListTenants(ctx context.Context, cursor string, limit int) (*tenant.Page, error) {
	if f.calls.Add(1) > 1 {
		return nil, errors.New("store timeout")
	}
	return f.Store.ListTenants(ctx, cursor, limit)
}

var passNow = time.Date(2025, 1, 1, 0, 10, 0, 0, time.UTC)

func fixedClock() time.Time { return passNow }

func seedTenant(t *testing.T, s *memory.Store, tid string, flows ...tenant.FlowConfig) {
	t.Helper()
	if err := s.CreateTenant(context.Background(), &tenant.Tenant{TenantID: tid, Flows: flows}); err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
}

func ptr(t time.Time) *time.Time { return &t }

func nextRun(t *testing.T, s *memory.Store, tid, flow string) *time.Time {
	t.Helper()
	tn, err := s.GetTenant(context.Background(), tid)
	if err != nil {
		t.Fatalf("GetTenant: %v", err)
	}
	fc, ok := tn.Flow(flow)
	if !ok {
		t.Fatalf("flow %q missing on %q", flow, tid)
	}
	return fc.NextRunUTC
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRunPass_EnqueuesDueAndAdvancesWatermark(t *testing.T) {
	s := memory.New()
	spy := &enqueueSpy{}
	emitter := &stubEmitter{}

	seedTenant(t, s, "tenant-a",
		tenant.FlowConfig{Name: "never-run", Enabled: true, Cron: "0 0 * * * *"},
		tenant.FlowConfig{Name: "overdue", Enabled: true, Cron: "0 0 */2 * * *", NextRunUTC: ptr(passNow.Add(-time.Minute))},
		tenant.FlowConfig{Name: "exactly-now", Enabled: true, Cron: "0 0 13 * * *", NextRunUTC: ptr(passNow)},
		tenant.FlowConfig{Name: "future", Enabled: true, Cron: "0 0 * * * *", NextRunUTC: ptr(passNow.Add(time.Minute))},
		tenant.FlowConfig{Name: "disabled", Enabled: false, Cron: "0 0 * * * *"},
	)

	sched := cron.NewScheduler(s, spy, emitter, nil, cron.WithClock(fixedClock))
	report, err := sched.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}

	if report.FlowsDue != 3 || report.FlowsEnqueued != 3 || report.TenantsUpdated != 1 {
		t.Errorf("report = %+v", report)
	}
	if !report.Now.Equal(passNow) {
		t.Errorf("report.Now = %v, want %v", report.Now, passNow)
	}

	got := make(map[string]bool)
	for _, m := range spy.Messages() {
		if m.TenantID != "tenant-a" {
			t.Errorf("TenantID = %q", m.TenantID)
		}
		got[m.FlowName] = true
	}
	for _, name := range []string{"never-run", "overdue", "exactly-now"} {
		if !got[name] {
			t.Errorf("%s not enqueued", name)
		}
	}
	if got["future"] || got["disabled"] {
		t.Errorf("enqueued flows that were not due: %v", got)
	}

	want := map[string]time.Time{
		"never-run":   time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC),
		"overdue":     time.Date(2025, 1, 1, 2, 0, 0, 0, time.UTC),
		"exactly-now": time.Date(2025, 1, 1, 13, 0, 0, 0, time.UTC),
		"future":      passNow.Add(time.Minute),
	}
	for name, w := range want {
		if n := nextRun(t, s, "tenant-a", name); n == nil || !n.Equal(w) {
			t.Errorf("%s NextRunUTC = %v, want %v", name, n, w)
		}
	}
	if nextRun(t, s, "tenant-a", "disabled") != nil {
		t.Error("disabled flow watermark should stay nil")
	}

	if emitter.enqueued.Load() != 3 || emitter.passes.Load() != 1 {
		t.Errorf("emitter enqueued=%d passes=%d", emitter.enqueued.Load(), emitter.passes.Load())
	}
}

func TestRunPass_SecondPassIsQuiet(t *testing.T) {
	s := memory.New()
	spy := &enqueueSpy{}
	seedTenant(t, s, "tenant-a", tenant.FlowConfig{Name: "hourly", Enabled: true, Cron: "0 0 * * * *"})

	sched := cron.NewScheduler(s, spy, nil, nil, cron.WithClock(fixedClock))
	if _, err := sched.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass 1: %v", err)
	}
	report, err := sched.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass 2: %v", err)
	}
	if report.FlowsDue != 0 || len(spy.Messages()) != 1 {
		t.Errorf("second pass fired again: report=%+v messages=%d", report, len(spy.Messages()))
	}
}

func TestRunPass_TenantIsolationOnConflict(t *testing.T) {
	base := memory.New()
	s := &racingStore{Store: base, raceTenant: "tenant-b"}
	spy := &enqueueSpy{}

	for _, tid := range []string{"tenant-a", "tenant-b", "tenant-c"} {
		seedTenant(t, base, tid, tenant.FlowConfig{Name: "hourly", Enabled: true, Cron: "0 0 * * * *"})
	}

	sched := cron.NewScheduler(s, spy, nil, nil, cron.WithClock(fixedClock))
	report, err := sched.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}

	if report.Conflicts != 1 || report.TenantsUpdated != 2 || report.FlowsEnqueued != 3 {
		t.Errorf("report = %+v", report)
	}
	if nextRun(t, base, "tenant-b", "hourly") != nil {
		t.Error("conflicting tenant's watermark should not be advanced")
	}
	for _, tid := range []string{"tenant-a", "tenant-c"} {
		if nextRun(t, base, tid, "hourly") == nil {
			t.Errorf("%s watermark not advanced", tid)
		}
	}

	// The skipped tenant is re-evaluated and re-fired on the next pass.
	s.raceTenant = ""
	report, err = sched.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass 2: %v", err)
	}
	if report.FlowsEnqueued != 1 || report.Conflicts != 0 {
		t.Errorf("second report = %+v", report)
	}
}

func TestRunPass_EnqueueFailureKeepsWatermark(t *testing.T) {
	s := memory.New()
	spy := &enqueueSpy{failFlow: "broken-queue"}

	seedTenant(t, s, "tenant-a",
		tenant.FlowConfig{Name: "broken-queue", Enabled: true, Cron: "0 0 * * * *"},
		tenant.FlowConfig{Name: "fine", Enabled: true, Cron: "0 0 * * * *"},
	)
	seedTenant(t, s, "tenant-b", tenant.FlowConfig{Name: "fine", Enabled: true, Cron: "0 0 * * * *"})

	sched := cron.NewScheduler(s, spy, nil, nil, cron.WithClock(fixedClock))
	report, err := sched.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if report.EnqueueFailures != 1 || report.FlowsEnqueued != 2 {
		t.Errorf("report = %+v", report)
	}
	if nextRun(t, s, "tenant-a", "broken-queue") != nil {
		t.Error("watermark advanced despite enqueue failure")
	}
	if nextRun(t, s, "tenant-a", "fine") == nil || nextRun(t, s, "tenant-b", "fine") == nil {
		t.Error("healthy flows were not advanced")
	}
}

func TestRunPass_MalformedCronFallsBack(t *testing.T) {
	s := memory.New()
	spy := &enqueueSpy{}

	seedTenant(t, s, "tenant-a",
		tenant.FlowConfig{Name: "bad-cron", Enabled: true, Cron: "every hour please"},
		tenant.FlowConfig{Name: "good", Enabled: true, Cron: "0 0 * * * *"},
	)

	sched := cron.NewScheduler(s, spy, nil, nil, cron.WithClock(fixedClock))
	report, err := sched.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if report.MalformedSchedules != 1 || report.FlowsEnqueued != 2 {
		t.Errorf("report = %+v", report)
	}
	if n := nextRun(t, s, "tenant-a", "bad-cron"); n == nil || !n.Equal(passNow.Add(cron.FallbackDelay)) {
		t.Errorf("bad-cron NextRunUTC = %v, want now+1h", n)
	}
	if n := nextRun(t, s, "tenant-a", "good"); n == nil || !n.Equal(time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC)) {
		t.Errorf("good NextRunUTC = %v", n)
	}
}

func TestRunPass_Paginates(t *testing.T) {
	s := memory.New()
	spy := &enqueueSpy{}
	for _, tid := range []string{"t-1", "t-2", "t-3", "t-4", "t-5"} {
		seedTenant(t, s, tid, tenant.FlowConfig{Name: "hourly", Enabled: true, Cron: "0 0 * * * *"})
	}

	sched := cron.NewScheduler(s, spy, nil, nil, cron.WithClock(fixedClock), cron.WithPageSize(2))
	report, err := sched.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if report.TenantsScanned != 5 || len(spy.Messages()) != 5 {
		t.Errorf("report = %+v, messages = %d", report, len(spy.Messages()))
	}
}

func TestRunPass_PageErrorAborts(t *testing.T) {
	s := &failingListStore{Store: memory.New()}
	for _, tid := range []string{"t-1", "t-2", "t-3"} {
		seedTenant(t, s.Store, tid, tenant.FlowConfig{Name: "hourly", Enabled: true, Cron: "0 0 * * * *"})
	}

	sched := cron.NewScheduler(s, &enqueueSpy{}, nil, nil, cron.WithClock(fixedClock), cron.WithPageSize(2))
	report, err := sched.RunPass(context.Background())
	if err == nil {
		t.Fatal("expected page error")
	}
	if report.TenantsScanned != 2 {
		t.Errorf("TenantsScanned = %d, want 2 (first page processed)", report.TenantsScanned)
	}
}

func TestRunPass_CancelledContext(t *testing.T) {
	s := memory.New()
	seedTenant(t, s, "t-1", tenant.FlowConfig{Name: "hourly", Enabled: true, Cron: "0 0 * * * *"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sched := cron.NewScheduler(s, &enqueueSpy{}, nil, nil, cron.WithClock(fixedClock))
	if _, err := sched.RunPass(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRunPass_OverlappingPassesFireOnce(t *testing.T) {
	s := memory.New()
	spy := &enqueueSpy{}
	for _, tid := range []string{"t-1", "t-2", "t-3", "t-4"} {
		seedTenant(t, s, tid, tenant.FlowConfig{Name: "hourly", Enabled: true, Cron: "0 0 * * * *"})
	}

	// Two schedulers over one store model two hosts racing.
	a := cron.NewScheduler(s, spy, nil, nil, cron.WithClock(fixedClock))
	b := cron.NewScheduler(s, spy, nil, nil, cron.WithClock(fixedClock))

	var wg sync.WaitGroup
	for _, sched := range []*cron.Scheduler{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := sched.RunPass(context.Background()); err != nil {
				t.Errorf("RunPass: %v", err)
			}
		}()
	}
	wg.Wait()

	// Every tenant's watermark is advanced exactly once and never lost.
	for _, tid := range []string{"t-1", "t-2", "t-3", "t-4"} {
		if nextRun(t, s, tid, "hourly") == nil {
			t.Errorf("%s watermark missing", tid)
		}
	}
	// Duplicates are allowed (at-least-once), misses are not.
	if n := len(spy.Messages()); n < 4 || n > 8 {
		t.Errorf("messages = %d, want between 4 and 8", n)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := memory.New()
	spy := &enqueueSpy{}
	seedTenant(t, s, "t-1", tenant.FlowConfig{Name: "hourly", Enabled: true, Cron: "0 0 * * * *"})

	sched := cron.NewScheduler(s, spy, nil, nil, cron.WithInterval(20*time.Millisecond))
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Double start should be no-op.
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for len(spy.Messages()) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for first pass")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	if err := sched.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := sched.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if n := len(spy.Messages()); n != 1 {
		t.Errorf("messages = %d, want 1 (watermark prevents refire within the hour)", n)
	}
}

func TestMalformedScheduleError_IsSentinel(t *testing.T) {
	_, err := cron.NextOccurrence("nope", passNow)
	if !errors.Is(err, flowsync.ErrMalformedSchedule) {
		t.Errorf("err = %v", err)
	}
}
