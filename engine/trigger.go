package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	cronlib "github.com/robfig/cron/v3"
)

// cronLogger adapts slog to the robfig cron logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron host: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{slog.String("error", err.Error())}, keysAndValues...)
	l.logger.Error("cron host: "+msg, args...)
}

// newCronHost builds a seconds-precision cron host that skips a firing
// while the previous run of the same job is still going.
func newCronHost(logger *slog.Logger) *cronlib.Cron {
	cl := cronLogger{logger: logger}
	return cronlib.New(
		cronlib.WithSeconds(),
		cronlib.WithLogger(cl),
		cronlib.WithChain(
			cronlib.Recover(cl),
			cronlib.SkipIfStillRunning(cl),
		),
	)
}

// scheduleTriggers registers the pass and heartbeat jobs on host. It
// reports whether the pass job was registered.
func (eng *Engine) scheduleTriggers(ctx context.Context, host *cronlib.Cron) (bool, error) {
	sc := eng.cfg.Scheduler
	passScheduled := false

	if sc.TriggerSpec != "" {
		if _, err := host.AddFunc(sc.TriggerSpec, func() { eng.runPassLogged(ctx) }); err != nil {
			return false, fmt.Errorf("engine: trigger spec %q: %w", sc.TriggerSpec, err)
		}
		passScheduled = true
	}
	if sc.HeartbeatSpec != "" {
		if _, err := host.AddFunc(sc.HeartbeatSpec, func() { eng.heartbeat(ctx) }); err != nil {
			return false, fmt.Errorf("engine: heartbeat spec %q: %w", sc.HeartbeatSpec, err)
		}
	}
	return passScheduled, nil
}

func (eng *Engine) runPassLogged(ctx context.Context) {
	if _, err := eng.scheduler.RunPass(ctx); err != nil && !errors.Is(err, context.Canceled) {
		eng.logger.Error("orchestrator pass failed", slog.String("error", err.Error()))
	}
}

// heartbeat logs liveness along with queue and dead-letter depth.
func (eng *Engine) heartbeat(ctx context.Context) {
	attrs := []any{
		slog.String("worker_id", eng.pool.WorkerID().String()),
		slog.String("queue", eng.cfg.Queue.Name),
	}
	if n, err := eng.store.CountMessages(ctx, eng.cfg.Queue.Name); err == nil {
		attrs = append(attrs, slog.Int64("queue_depth", n))
	}
	if n, err := eng.dlqService.Count(ctx); err == nil {
		attrs = append(attrs, slog.Int64("dead_letters", n))
	}
	eng.logger.Info("heartbeat", attrs...)
}
