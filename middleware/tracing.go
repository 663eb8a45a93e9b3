package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/flowsync/job"
)

// tracerName is the instrumentation scope name for flow tracing.
const tracerName = "github.com/xraph/flowsync"

// Tracing returns middleware that wraps each flow run in an OpenTelemetry
// span using the global TracerProvider.
//
// Span attributes: flowsync.tenant_id, flowsync.flow, flowsync.delivery_id,
// flowsync.attempt.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, m job.Message, next Handler) error {
		deliveryID, attempt := deliveryAttrs(ctx)
		ctx, span := tracer.Start(ctx, "flowsync.flow.run",
			trace.WithAttributes(
				attribute.String("flowsync.tenant_id", m.TenantID),
				attribute.String("flowsync.flow", m.FlowName),
				attribute.String("flowsync.delivery_id", deliveryID),
				attribute.Int("flowsync.attempt", attempt),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	}
}
