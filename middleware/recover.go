package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/flowsync/job"
)

// Recover returns middleware that recovers from panics in the chain.
// Panics are converted to errors and logged with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, m job.Message, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("flow panicked",
					slog.String("tenant_id", m.TenantID),
					slog.String("flow", m.FlowName),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				retErr = fmt.Errorf("panic in flow %s: %v", m, r)
			}
		}()
		return next(ctx)
	}
}
