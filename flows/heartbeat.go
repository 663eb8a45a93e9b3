package flows

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/flowsync/secret"
)

// Heartbeat logs that a tenant's schedule fired. When the tenant has a
// heartbeat/token credential it is read to prove secret access works; a
// missing credential is not an error.
type Heartbeat struct {
	logger *slog.Logger
}

// NewHeartbeat returns a Heartbeat writing to logger.
func NewHeartbeat(logger *slog.Logger) *Heartbeat {
	if logger == nil {
		logger = slog.Default()
	}
	return &Heartbeat{logger: logger}
}

// Run implements flow.Task.
func (h *Heartbeat) Run(ctx context.Context, tenantID string, secrets secret.Accessor) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	hasToken := false
	if _, err := secrets.Get(ctx, "heartbeat", "token"); err != nil {
		if !secret.IsNotFound(err) {
			return fmt.Errorf("heartbeat: read token: %w", err)
		}
	} else {
		hasToken = true
	}

	h.logger.InfoContext(ctx, "heartbeat",
		slog.String("tenant_id", tenantID),
		slog.Bool("credentials", hasToken),
	)
	return nil
}
