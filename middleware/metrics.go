package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/flowsync/job"
)

// meterName is the instrumentation scope name for flow metrics.
const meterName = "github.com/xraph/flowsync"

// Metrics returns middleware that records per-flow metrics using the
// global MeterProvider.
//
// Instruments:
//   - flowsync.flow.duration (Float64Histogram): run time in seconds
//   - flowsync.flow.runs (Int64Counter): total runs
//
// Both carry the attributes flow and status ("ok" or "error"). Tenant IDs
// are left off to keep cardinality bounded.
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error the API returns noop instruments.
	duration, _ := meter.Float64Histogram(
		"flowsync.flow.duration",
		metric.WithDescription("Duration of flow runs in seconds"),
		metric.WithUnit("s"),
	)
	runs, _ := meter.Int64Counter(
		"flowsync.flow.runs",
		metric.WithDescription("Total number of flow runs"),
		metric.WithUnit("{run}"),
	)

	return func(ctx context.Context, m job.Message, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}
		attrs := metric.WithAttributes(
			attribute.String("flow", m.FlowName),
			attribute.String("status", status),
		)
		duration.Record(ctx, elapsed, attrs)
		runs.Add(ctx, 1, attrs)

		return err
	}
}
