package middleware

import (
	"context"

	"github.com/xraph/flowsync/job"
	"github.com/xraph/flowsync/queue"
)

// Handler is the terminal function that runs the flow.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It receives the
// current context, the message being handled, and the next handler to
// call. Middleware MUST call next to continue the chain unless
// short-circuiting.
type Middleware func(ctx context.Context, m job.Message, next Handler) error

// Chain composes multiple middleware into a single Middleware.
//
// Example: Chain(logging, recover, tracing) executes as:
//
//	logging → recover → tracing → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, m job.Message, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, m, prev)
			}
		}
		return h(ctx)
	}
}

// deliveryAttrs returns the delivery ID and attempt from ctx, or zero
// values when the flow is run outside a worker.
func deliveryAttrs(ctx context.Context) (string, int) {
	if d, ok := queue.DeliveryFromContext(ctx); ok {
		return d.ID.String(), d.Attempt
	}
	return "", 0
}
