package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/id"
	"github.com/xraph/flowsync/job"
	"github.com/xraph/flowsync/tenant"
)

// Enqueuer pushes an encoded job message onto the durable queue.
// queue.Producer satisfies this interface.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload string) error
}

// Emitter receives orchestrator lifecycle events.
// ext.Registry satisfies this interface.
type Emitter interface {
	EmitFlowEnqueued(ctx context.Context, msg job.Message, nextRun time.Time)
	EmitPassCompleted(ctx context.Context, report *PassReport)
}

// PassReport summarizes one orchestrator pass.
type PassReport struct {
	ID       id.PassID     `json:"id"`
	Now      time.Time     `json:"now"`
	Duration time.Duration `json:"duration"`

	TenantsScanned     int `json:"tenants_scanned"`
	FlowsDue           int `json:"flows_due"`
	FlowsEnqueued      int `json:"flows_enqueued"`
	EnqueueFailures    int `json:"enqueue_failures"`
	MalformedSchedules int `json:"malformed_schedules"`
	TenantsUpdated     int `json:"tenants_updated"`
	Conflicts          int `json:"conflicts"`
	UpdateFailures     int `json:"update_failures"`
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval sets the period of the Start loop.
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.interval = d }
}

// WithPageSize sets how many tenants are read per store page.
func WithPageSize(n int) SchedulerOption {
	return func(s *Scheduler) { s.pageSize = n }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// WithEvaluator shares a parsed-schedule cache with other components.
func WithEvaluator(e *Evaluator) SchedulerOption {
	return func(s *Scheduler) { s.evaluator = e }
}

// WithTracer sets the tracer used for pass spans.
func WithTracer(t trace.Tracer) SchedulerOption {
	return func(s *Scheduler) { s.tracer = t }
}

// Scheduler is the orchestrator. Each pass enqueues every due tenant flow
// and advances its watermark with an optimistic-concurrency write.
type Scheduler struct {
	tenants   tenant.Store
	enqueuer  Enqueuer
	emitter   Emitter
	evaluator *Evaluator
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time

	interval time.Duration
	pageSize int

	// passMu keeps passes from overlapping within one process.
	passMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a Scheduler. emitter may be nil.
func NewScheduler(
	tenants tenant.Store,
	enqueuer Enqueuer,
	emitter Emitter,
	logger *slog.Logger,
	opts ...SchedulerOption,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		tenants:  tenants,
		enqueuer: enqueuer,
		emitter:  emitter,
		logger:   logger,
		now:      time.Now,
		interval: time.Hour,
		pageSize: 100,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.evaluator == nil {
		s.evaluator = defaultEvaluator
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("github.com/xraph/flowsync/cron")
	}
	if s.pageSize <= 0 {
		s.pageSize = 100
	}
	return s
}

// Start runs a pass immediately and then on every interval until Stop.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.tickLoop(s.stopCh)
	s.logger.Info("orchestrator started", slog.Duration("interval", s.interval))
	return nil
}

// Stop signals the loop to exit and waits for an in-flight pass to finish.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("orchestrator stopped")
	return nil
}

func (s *Scheduler) tickLoop(stopCh <-chan struct{}) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runLogged(ctx)
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Scheduler) runLogged(ctx context.Context) {
	if _, err := s.RunPass(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("orchestrator pass failed", slog.String("error", err.Error()))
	}
}

// RunPass performs one full orchestrator pass. Per-tenant and per-flow
// failures are logged and counted in the report. Only a failure to read a
// page of tenants, or ctx cancellation, aborts the pass and is returned.
func (s *Scheduler) RunPass(ctx context.Context) (PassReport, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	start := time.Now()
	report := PassReport{ID: id.NewPassID(), Now: s.now().UTC()}

	ctx, span := s.tracer.Start(ctx, "flowsync.orchestrator.pass",
		trace.WithAttributes(
			attribute.String("flowsync.pass.id", report.ID.String()),
			attribute.String("flowsync.pass.now", report.Now.Format(time.RFC3339)),
		),
	)
	defer span.End()

	err := s.scan(ctx, &report)
	report.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("flowsync.pass.tenants_scanned", report.TenantsScanned),
		attribute.Int("flowsync.pass.flows_enqueued", report.FlowsEnqueued),
		attribute.Int("flowsync.pass.conflicts", report.Conflicts),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}
	span.SetStatus(codes.Ok, "")

	s.logger.Info("orchestrator pass completed",
		slog.String("pass_id", report.ID.String()),
		slog.Int("tenants_scanned", report.TenantsScanned),
		slog.Int("flows_due", report.FlowsDue),
		slog.Int("flows_enqueued", report.FlowsEnqueued),
		slog.Int("enqueue_failures", report.EnqueueFailures),
		slog.Int("malformed_schedules", report.MalformedSchedules),
		slog.Int("tenants_updated", report.TenantsUpdated),
		slog.Int("conflicts", report.Conflicts),
		slog.Duration("elapsed", report.Duration),
	)
	if s.emitter != nil {
		s.emitter.EmitPassCompleted(ctx, &report)
	}
	return report, nil
}

func (s *Scheduler) scan(ctx context.Context, report *PassReport) error {
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := s.tenants.ListTenants(ctx, cursor, s.pageSize)
		if err != nil {
			return fmt.Errorf("cron: list tenants after %q: %w", cursor, err)
		}

		for _, t := range page.Tenants {
			if err := ctx.Err(); err != nil {
				return err
			}
			report.TenantsScanned++
			s.processTenant(ctx, t, report)
		}

		if page.Next == "" || len(page.Tenants) == 0 {
			return nil
		}
		cursor = page.Next
	}
}

// processTenant fires every due flow on t and persists the advanced
// watermarks with a single conditional replace.
func (s *Scheduler) processTenant(ctx context.Context, t *tenant.Tenant, report *PassReport) {
	now := report.Now
	dirty := false

	for i := range t.Flows {
		fc := &t.Flows[i]
		if !fc.Due(now) {
			continue
		}
		report.FlowsDue++

		msg := job.Message{TenantID: t.TenantID, FlowName: fc.Name}
		if err := s.enqueue(ctx, msg); err != nil {
			report.EnqueueFailures++
			s.logger.Error("flow enqueue failed",
				slog.String("tenant_id", t.TenantID),
				slog.String("flow", fc.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		report.FlowsEnqueued++

		next, err := s.evaluator.Next(fc.Cron, now)
		if err != nil {
			report.MalformedSchedules++
			next = now.Add(FallbackDelay)
			s.logger.Error("flow schedule malformed, using fallback",
				slog.String("tenant_id", t.TenantID),
				slog.String("flow", fc.Name),
				slog.String("cron", fc.Cron),
				slog.Time("next_run", next),
				slog.String("error", err.Error()),
			)
		}
		fc.NextRunUTC = &next
		dirty = true

		if s.emitter != nil {
			s.emitter.EmitFlowEnqueued(ctx, msg, next)
		}
		s.logger.Debug("flow enqueued",
			slog.String("tenant_id", t.TenantID),
			slog.String("flow", fc.Name),
			slog.Time("next_run", next),
		)
	}

	if !dirty {
		return
	}

	err := s.tenants.ReplaceTenant(ctx, t)
	switch {
	case err == nil:
		report.TenantsUpdated++
	case errors.Is(err, flowsync.ErrConcurrencyConflict):
		report.Conflicts++
		s.logger.Warn("tenant update conflict, skipping until next pass",
			slog.String("tenant_id", t.TenantID),
			slog.String("etag", t.ETag),
		)
	default:
		report.UpdateFailures++
		s.logger.Error("tenant update failed",
			slog.String("tenant_id", t.TenantID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Scheduler) enqueue(ctx context.Context, msg job.Message) error {
	payload, err := msg.Encode()
	if err != nil {
		return err
	}
	return s.enqueuer.Enqueue(ctx, payload)
}
