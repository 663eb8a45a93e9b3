package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/flow"
	"github.com/xraph/flowsync/job"
	"github.com/xraph/flowsync/middleware"
	"github.com/xraph/flowsync/scope"
	"github.com/xraph/flowsync/secret"
)

// Handler runs one queued flow message.
type Handler struct {
	flows   *flow.Registry
	secrets secret.Provider
	mw      middleware.Middleware
}

// NewHandler creates a Handler resolving flows from flows and credentials
// from secrets. Middleware wrap every flow run, outermost first.
func NewHandler(flows *flow.Registry, secrets secret.Provider, mws ...middleware.Middleware) *Handler {
	return &Handler{
		flows:   flows,
		secrets: secrets,
		mw:      middleware.Chain(mws...),
	}
}

// Handle decodes encoded and runs the flow it names. Payloads that do not
// decode return an error matching flowsync.ErrMalformedMessage; errors
// from the flow itself are returned unchanged.
func (h *Handler) Handle(ctx context.Context, encoded string) error {
	msg, err := job.Decode(encoded)
	if err != nil {
		return err
	}
	return h.Run(ctx, msg)
}

// Run runs msg's flow for msg's tenant with a tenant-scoped secret
// accessor. An unregistered flow returns *flow.UnknownFlowError without
// running anything.
func (h *Handler) Run(ctx context.Context, msg job.Message) error {
	accessor, err := h.secrets.ForTenant(ctx, msg.TenantID)
	if err != nil {
		return fmt.Errorf("worker: secrets for tenant %q: %w", msg.TenantID, err)
	}

	task, err := h.flows.Resolve(msg.FlowName)
	if err != nil {
		return err
	}

	ctx = scope.Restore(ctx, msg.TenantID, msg.FlowName)
	return h.mw(ctx, msg, func(ctx context.Context) error {
		return task.Run(ctx, msg.TenantID, accessor)
	})
}

// IsPermanent reports whether err can never succeed on redelivery.
func IsPermanent(err error) bool {
	return errors.Is(err, flowsync.ErrMalformedMessage)
}
