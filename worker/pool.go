package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/backoff"
	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/ext"
	"github.com/xraph/flowsync/id"
	"github.com/xraph/flowsync/job"
	"github.com/xraph/flowsync/queue"
)

// Pool claims deliveries from one queue and runs them through a Handler
// with bounded concurrency.
type Pool struct {
	store      queue.Store
	queue      string
	handler    *Handler
	dlq        *dlq.Service
	extensions *ext.Registry
	logger     *slog.Logger

	concurrency  int
	pollInterval time.Duration
	visibility   time.Duration
	leaseEvery   time.Duration
	maxAttempts  int
	backoff      backoff.Strategy
	workerID     id.WorkerID

	sem        *semaphore.Weighted
	stopCh     chan struct{}
	loopCtx    context.Context
	loopCancel context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	activeJobs map[string]*activeDelivery
	activeMu   sync.Mutex

	leaseStop chan struct{}
	leaseWg   sync.WaitGroup
}

type activeDelivery struct {
	d      *queue.Delivery
	cancel context.CancelFunc

	// mu orders lease extensions before settlement; once settled is set
	// the lease is never extended again.
	mu      sync.Mutex
	settled bool
}

// extend renews the lease unless the delivery has been settled.
func (a *activeDelivery) extend(ctx context.Context, store queue.Store, visibility time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.settled {
		return nil
	}
	return store.ExtendLease(ctx, a.d, visibility)
}

func (a *activeDelivery) settle() {
	a.mu.Lock()
	a.settled = true
	a.mu.Unlock()
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the maximum number of flows run at once.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithPollInterval sets how long the pool waits after finding the queue
// empty or failing to claim.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.pollInterval = d }
}

// WithVisibilityTimeout sets how long a claimed delivery stays hidden.
func WithVisibilityTimeout(d time.Duration) PoolOption {
	return func(p *Pool) { p.visibility = d }
}

// WithLeaseInterval sets how often the leases of running deliveries are
// extended. It defaults to half the visibility timeout.
func WithLeaseInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.leaseEvery = d }
}

// WithMaxAttempts sets how many deliveries a message gets before it is
// dead-lettered.
func WithMaxAttempts(n int) PoolOption {
	return func(p *Pool) { p.maxAttempts = n }
}

// WithBackoff sets the redelivery delay strategy.
func WithBackoff(s backoff.Strategy) PoolOption {
	return func(p *Pool) { p.backoff = s }
}

// NewPool creates a worker pool consuming queueName. dlqService may be
// nil, in which case exhausted deliveries are logged and acknowledged.
func NewPool(
	store queue.Store,
	queueName string,
	handler *Handler,
	dlqService *dlq.Service,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	p := &Pool{
		store:        store,
		queue:        queueName,
		handler:      handler,
		dlq:          dlqService,
		extensions:   extensions,
		logger:       logger,
		concurrency:  10,
		pollInterval: time.Second,
		visibility:   15 * time.Minute,
		maxAttempts:  5,
		backoff:      backoff.DefaultStrategy(),
		workerID:     id.NewWorkerID(),
		activeJobs:   make(map[string]*activeDelivery),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	if p.leaseEvery <= 0 {
		p.leaseEvery = p.visibility / 2
	}
	if p.leaseEvery <= 0 {
		p.leaseEvery = time.Millisecond
	}
	if p.extensions == nil {
		p.extensions = ext.NewRegistry(logger)
	}
	p.sem = semaphore.NewWeighted(int64(p.concurrency))
	return p
}

// WorkerID returns the pool's unique identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the claim loop. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.loopCtx, p.loopCancel = context.WithCancel(context.Background())

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.String("queue", p.queue),
		slog.Int("concurrency", p.concurrency),
	)

	p.leaseStop = make(chan struct{})
	p.leaseWg.Add(1)
	go p.leaseLoop()

	p.wg.Add(1)
	go p.claimLoop()
	return nil
}

// Stop stops claiming and waits for in-flight flows. When ctx expires
// first, in-flight flows are cancelled and Stop waits for them to return.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	close(p.stopCh)
	p.loopCancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active flows")
		p.cancelActiveJobs()
		<-done
	}

	// Leases are renewed until the last in-flight flow has settled.
	close(p.leaseStop)
	p.leaseWg.Wait()
	return nil
}

// claimLoop acquires a concurrency slot, claims as many deliveries as
// there are free slots, and hands each to its own goroutine.
func (p *Pool) claimLoop() {
	defer p.wg.Done()

	for {
		if err := p.sem.Acquire(p.loopCtx, 1); err != nil {
			return
		}
		slots := 1
		for slots < p.concurrency && p.sem.TryAcquire(1) {
			slots++
		}

		deliveries, err := p.store.ClaimMessages(p.loopCtx, p.queue, slots, p.visibility)
		if err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Error("claim error",
				slog.String("queue", p.queue),
				slog.String("error", err.Error()),
			)
		}

		if unused := slots - len(deliveries); unused > 0 {
			p.sem.Release(int64(unused))
		}

		for _, d := range deliveries {
			p.wg.Add(1)
			go func(d *queue.Delivery) {
				defer p.wg.Done()
				defer p.sem.Release(1)
				p.process(d)
			}(d)
		}

		if len(deliveries) == 0 && !p.sleep() {
			return
		}
		if p.stopped() {
			return
		}
	}
}

// process runs one delivery and settles it.
func (p *Pool) process(d *queue.Delivery) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = queue.WithDelivery(ctx, d)

	key := d.ID.String()
	active := p.trackJob(key, d, cancel)
	defer p.untrackJob(key)

	// The message is decoded here for hooks only; Handle reports decode
	// failures itself.
	msg, decodeErr := job.Decode(d.Payload)
	if decodeErr == nil {
		p.extensions.EmitFlowStarted(ctx, d, msg)
	}

	start := time.Now()
	err := p.handler.Handle(ctx, d.Payload)
	elapsed := time.Since(start)
	active.settle()

	// Settle on a fresh context so a cancelled flow can still be acked.
	settleCtx := context.Background()

	if err == nil {
		if ackErr := p.store.AckMessage(settleCtx, d); ackErr != nil {
			p.logger.Error("ack failed",
				slog.String("delivery_id", key),
				slog.String("error", ackErr.Error()),
			)
		}
		p.extensions.EmitFlowCompleted(settleCtx, d, msg, elapsed)
		return
	}

	p.extensions.EmitFlowFailed(settleCtx, d, msg, err)

	if IsPermanent(err) || d.Attempt >= p.maxAttempts {
		p.deadLetter(settleCtx, d, err)
		return
	}
	p.retry(settleCtx, d, err)
}

func (p *Pool) retry(ctx context.Context, d *queue.Delivery, cause error) {
	delay := p.backoff.Delay(d.Attempt)
	d.LastError = cause.Error()

	if err := p.store.RetryMessage(ctx, d, delay); err != nil {
		p.logger.Error("failed to schedule redelivery",
			slog.String("delivery_id", d.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	p.extensions.EmitFlowRetrying(ctx, d, delay)
	p.logger.Info("delivery scheduled for retry",
		slog.String("delivery_id", d.ID.String()),
		slog.Int("attempt", d.Attempt),
		slog.Int("max_attempts", p.maxAttempts),
		slog.Duration("delay", delay),
		slog.String("error", cause.Error()),
	)
}

func (p *Pool) deadLetter(ctx context.Context, d *queue.Delivery, cause error) {
	if p.dlq != nil {
		entry, err := p.dlq.Push(ctx, d, cause)
		if err != nil {
			// Leave the delivery leased; it reappears after the visibility
			// timeout and is dead-lettered again.
			p.logger.Error("failed to push delivery to DLQ",
				slog.String("delivery_id", d.ID.String()),
				slog.String("error", err.Error()),
			)
			return
		}
		p.extensions.EmitFlowDeadLettered(ctx, entry)
	}

	if err := p.store.AckMessage(ctx, d); err != nil {
		p.logger.Error("ack after dead-letter failed",
			slog.String("delivery_id", d.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	p.logger.Warn("delivery dead-lettered",
		slog.String("delivery_id", d.ID.String()),
		slog.Int("attempt", d.Attempt),
		slog.Bool("permanent", IsPermanent(cause)),
		slog.String("error", cause.Error()),
	)
}

// leaseLoop extends the visibility lease of every running delivery so a
// flow that outlives the visibility timeout is not claimed again.
func (p *Pool) leaseLoop() {
	defer p.leaseWg.Done()

	ticker := time.NewTicker(p.leaseEvery)
	defer ticker.Stop()

	for {
		select {
		case <-p.leaseStop:
			return
		case <-ticker.C:
			p.extendLeases()
		}
	}
}

func (p *Pool) extendLeases() {
	p.activeMu.Lock()
	running := make([]*activeDelivery, 0, len(p.activeJobs))
	for _, a := range p.activeJobs {
		running = append(running, a)
	}
	p.activeMu.Unlock()

	for _, a := range running {
		d := a.d
		err := a.extend(context.Background(), p.store, p.visibility)
		switch {
		case err == nil:
		case errors.Is(err, flowsync.ErrDeliveryNotFound):
			// Removed outside this pool, e.g. acked by a worker that claimed
			// it after an earlier lease lapsed.
			p.logger.Warn("lease extension skipped, delivery gone",
				slog.String("delivery_id", d.ID.String()),
			)
		default:
			p.logger.Warn("lease extension failed",
				slog.String("delivery_id", d.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// sleep waits one poll interval. It returns false when the pool stopped.
func (p *Pool) sleep() bool {
	select {
	case <-time.After(p.pollInterval):
		return true
	case <-p.stopCh:
		return false
	}
}

func (p *Pool) stopped() bool {
	select {
	case <-p.stopCh:
		return true
	default:
		return false
	}
}

func (p *Pool) trackJob(key string, d *queue.Delivery, cancel context.CancelFunc) *activeDelivery {
	a := &activeDelivery{d: d, cancel: cancel}
	p.activeMu.Lock()
	p.activeJobs[key] = a
	p.activeMu.Unlock()
	return a
}

func (p *Pool) untrackJob(key string) {
	p.activeMu.Lock()
	delete(p.activeJobs, key)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveJobs() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for key, a := range p.activeJobs {
		p.logger.Warn("cancelling active flow", slog.String("delivery_id", key))
		a.cancel()
	}
}
