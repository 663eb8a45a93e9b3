package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/backoff"
	"github.com/xraph/flowsync/cron"
	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/ext"
	"github.com/xraph/flowsync/flow"
	"github.com/xraph/flowsync/job"
	mw "github.com/xraph/flowsync/middleware"
	"github.com/xraph/flowsync/observability"
	"github.com/xraph/flowsync/queue"
	"github.com/xraph/flowsync/secret"
	"github.com/xraph/flowsync/store"
	"github.com/xraph/flowsync/store/memory"
	"github.com/xraph/flowsync/worker"
)

const instrumentationName = "github.com/xraph/flowsync"

// Engine owns one running flowsync node.
type Engine struct {
	cfg    flowsync.Config
	logger *slog.Logger

	store      store.Store
	ownsStore  bool
	secrets    secret.Store
	flows      *flow.Registry
	extensions *ext.Registry
	producer   *queue.Producer
	dlqService *dlq.Service
	scheduler  *cron.Scheduler
	handler    *worker.Handler
	pool       *worker.Pool

	defs     []flow.Definition
	exts     []ext.Extension
	mws      []mw.Middleware
	bo       backoff.Strategy
	schedOps []cron.SchedulerOption

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	mu        sync.Mutex
	running   bool
	runCancel context.CancelFunc
	host      *cronlib.Cron
	tickerRun bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore uses s instead of opening the backend named in the config.
// The caller keeps ownership of s.
func WithStore(s store.Store) Option {
	return func(eng *Engine) { eng.store = s }
}

// WithLogger sets the engine logger. The default is built from the Log
// section of the config and writes to stderr.
func WithLogger(logger *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = logger }
}

// WithFlows registers flow definitions.
func WithFlows(defs ...flow.Definition) Option {
	return func(eng *Engine) { eng.defs = append(eng.defs, defs...) }
}

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.exts = append(eng.exts, e) }
}

// WithMiddleware appends middleware after the default chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m) }
}

// WithBackoff sets the retry backoff strategy. The default is exponential
// with jitter between Queue.BackoffInitial and Queue.BackoffMax.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) { eng.bo = b }
}

// WithSchedulerOptions passes extra options to the orchestrator.
func WithSchedulerOptions(opts ...cron.SchedulerOption) Option {
	return func(eng *Engine) { eng.schedOps = append(eng.schedOps, opts...) }
}

// WithTracerProvider sets a custom OTel TracerProvider. If not set, the
// global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for both the metrics
// middleware and the observability extension. If not set, the global
// provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// Build validates cfg and wires an Engine. Unless WithStore is given the
// backend named in cfg.Store is opened and migrated here, and Close
// releases it. A store passed with WithStore must already be migrated.
func Build(ctx context.Context, cfg flowsync.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	eng := &Engine{cfg: cfg}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.logger == nil {
		eng.logger = NewLogger(cfg.Log, os.Stderr)
	}

	if eng.store == nil {
		s, err := OpenStore(ctx, cfg.Store, eng.logger)
		if err != nil {
			return nil, err
		}
		eng.store = s
		eng.ownsStore = true
		if err := s.Migrate(ctx); err != nil {
			_ = eng.Close()
			return nil, fmt.Errorf("engine: migrate store: %w", err)
		}
	}

	if err := eng.wire(); err != nil {
		_ = eng.Close()
		return nil, err
	}
	return eng, nil
}

func (eng *Engine) wire() error {
	cfg := eng.cfg
	logger := eng.logger

	eng.flows = flow.NewRegistry()
	if err := eng.flows.RegisterAll(eng.defs...); err != nil {
		return fmt.Errorf("engine: register flows: %w", err)
	}

	switch cfg.Secrets.Driver {
	case "memory":
		eng.secrets = memory.New()
	default:
		eng.secrets = eng.store
	}

	if eng.bo == nil {
		eng.bo = backoff.NewExponentialWithJitter(cfg.Queue.BackoffInitial, cfg.Queue.BackoffMax)
	}

	var (
		tracingMw mw.Middleware
		metricsMw mw.Middleware
		obsExt    *observability.MetricsExtension
	)
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
		eng.schedOps = append(eng.schedOps, cron.WithTracer(eng.tracerProvider.Tracer(instrumentationName+"/cron")))
	} else {
		tracingMw = mw.Tracing()
	}
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationName))
		obsExt = observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter(instrumentationName + "/observability"))
	} else {
		metricsMw = mw.Metrics()
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions = ext.NewRegistry(logger)
	eng.extensions.Register(obsExt)
	for _, e := range eng.exts {
		eng.extensions.Register(e)
	}

	// recover → tracing → metrics → logging → timeout → user middleware.
	chain := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.Timeout(cfg.Worker.FlowTimeout, logger),
	}
	chain = append(chain, eng.mws...)

	eng.producer = queue.NewProducer(eng.store, cfg.Queue.Name)
	eng.dlqService = dlq.NewService(eng.store, eng.store)
	eng.handler = worker.NewHandler(eng.flows, secret.NewStoreProvider(eng.secrets), chain...)
	eng.pool = worker.NewPool(
		eng.store,
		cfg.Queue.Name,
		eng.handler,
		eng.dlqService,
		eng.extensions,
		logger,
		worker.WithPoolConcurrency(cfg.Worker.Concurrency),
		worker.WithPollInterval(cfg.Worker.PollInterval),
		worker.WithVisibilityTimeout(cfg.Queue.VisibilityTimeout),
		worker.WithMaxAttempts(cfg.Queue.MaxAttempts),
		worker.WithBackoff(eng.bo),
	)

	schedOpts := []cron.SchedulerOption{
		cron.WithInterval(cfg.Scheduler.Interval),
		cron.WithPageSize(cfg.Scheduler.PageSize),
	}
	schedOpts = append(schedOpts, eng.schedOps...)
	eng.scheduler = cron.NewScheduler(eng.store, eng.producer, eng.extensions, logger, schedOpts...)
	return nil
}

// Start launches the worker pool and the pass trigger. It returns
// immediately.
func (eng *Engine) Start(ctx context.Context) error {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	if err := eng.pool.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("engine: start pool: %w", err)
	}

	host := newCronHost(eng.logger)
	passScheduled, err := eng.scheduleTriggers(runCtx, host)
	if err != nil {
		cancel()
		_ = eng.pool.Stop(ctx)
		return err
	}
	host.Start()

	if !passScheduled {
		if err := eng.scheduler.Start(runCtx); err != nil {
			cancel()
			<-host.Stop().Done()
			_ = eng.pool.Stop(ctx)
			return fmt.Errorf("engine: start orchestrator: %w", err)
		}
		eng.tickerRun = true
	}

	eng.host = host
	eng.runCancel = cancel
	eng.running = true

	eng.logger.Info("engine started",
		slog.String("worker_id", eng.pool.WorkerID().String()),
		slog.String("store", eng.cfg.Store.Driver),
		slog.String("trigger", eng.triggerDescription()),
	)
	return nil
}

func (eng *Engine) triggerDescription() string {
	if eng.cfg.Scheduler.TriggerSpec != "" {
		return eng.cfg.Scheduler.TriggerSpec
	}
	return "every " + eng.cfg.Scheduler.Interval.String()
}

// Stop halts the triggers, drains the worker pool, and notifies
// extensions. In-flight flows are cancelled when ctx expires.
func (eng *Engine) Stop(ctx context.Context) error {
	eng.mu.Lock()
	if !eng.running {
		eng.mu.Unlock()
		return nil
	}
	eng.running = false
	host, cancel, tickerRun := eng.host, eng.runCancel, eng.tickerRun
	eng.host, eng.runCancel, eng.tickerRun = nil, nil, false
	eng.mu.Unlock()

	// Waits for a running pass; cancelling first makes that quick.
	cancel()
	select {
	case <-host.Stop().Done():
	case <-ctx.Done():
		eng.logger.Warn("cron host stop timed out")
	}
	if tickerRun {
		if err := eng.scheduler.Stop(ctx); err != nil {
			eng.logger.Error("orchestrator stop error", slog.String("error", err.Error()))
		}
	}

	err := eng.pool.Stop(ctx)
	eng.extensions.EmitShutdown(ctx)
	eng.logger.Info("engine stopped")
	return err
}

// Close releases the store when the engine opened it.
func (eng *Engine) Close() error {
	if !eng.ownsStore || eng.store == nil {
		return nil
	}
	return eng.store.Close()
}

// RunPass runs one orchestrator pass now.
func (eng *Engine) RunPass(ctx context.Context) (cron.PassReport, error) {
	return eng.scheduler.RunPass(ctx)
}

// EnqueueNow pushes one job for (tenantID, flowName) outside the schedule.
// The tenant must exist and the flow must be registered; the tenant's
// watermark is not touched.
func (eng *Engine) EnqueueNow(ctx context.Context, tenantID, flowName string) (*queue.Delivery, error) {
	if !eng.flows.Has(flowName) {
		return nil, &flow.UnknownFlowError{Name: flowName}
	}
	if _, err := eng.store.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	msg := job.Message{TenantID: tenantID, FlowName: flowName}
	payload, err := msg.Encode()
	if err != nil {
		return nil, err
	}
	d, err := eng.producer.Push(ctx, payload)
	if err != nil {
		return nil, err
	}

	eng.extensions.EmitFlowEnqueued(ctx, msg, time.Time{})
	eng.logger.Info("flow enqueued on demand",
		slog.String("tenant_id", tenantID),
		slog.String("flow", flowName),
		slog.String("delivery_id", d.ID.String()),
	)
	return d, nil
}

// Config returns the configuration the engine was built from.
func (eng *Engine) Config() flowsync.Config { return eng.cfg }

// Logger returns the engine logger.
func (eng *Engine) Logger() *slog.Logger { return eng.logger }

// Store returns the backend store.
func (eng *Engine) Store() store.Store { return eng.store }

// Secrets returns the store flow credentials are read from.
func (eng *Engine) Secrets() secret.Store { return eng.secrets }

// Flows returns the flow registry.
func (eng *Engine) Flows() *flow.Registry { return eng.flows }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// DLQService returns the dead-letter service for replay and inspection.
func (eng *Engine) DLQService() *dlq.Service { return eng.dlqService }

// Scheduler returns the orchestrator.
func (eng *Engine) Scheduler() *cron.Scheduler { return eng.scheduler }

// Pool returns the worker pool.
func (eng *Engine) Pool() *worker.Pool { return eng.pool }
