package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/flowsync/job"
)

// Timeout returns middleware that bounds each flow run by d. When the
// deadline passes the flow context is cancelled; the flow is expected to
// return promptly. A non-positive d disables the bound.
func Timeout(d time.Duration, logger *slog.Logger) Middleware {
	return func(ctx context.Context, m job.Message, next Handler) error {
		if d <= 0 {
			return next(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		err := next(ctx)
		if ctx.Err() == context.DeadlineExceeded {
			logger.Warn("flow exceeded timeout",
				slog.String("tenant_id", m.TenantID),
				slog.String("flow", m.FlowName),
				slog.Duration("timeout", d),
			)
		}
		return err
	}
}
