package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/flowsync/job"
)

// Logging returns middleware that logs flow start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, m job.Message, next Handler) error {
		deliveryID, attempt := deliveryAttrs(ctx)
		logger.Info("flow started",
			slog.String("tenant_id", m.TenantID),
			slog.String("flow", m.FlowName),
			slog.String("delivery_id", deliveryID),
			slog.Int("attempt", attempt),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("flow failed",
				slog.String("tenant_id", m.TenantID),
				slog.String("flow", m.FlowName),
				slog.String("delivery_id", deliveryID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("flow completed",
				slog.String("tenant_id", m.TenantID),
				slog.String("flow", m.FlowName),
				slog.String("delivery_id", deliveryID),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
