package calendar

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/rbaliyan/calendar"
)

// otelInstrumentation holds OpenTelemetry instrumentation for the calendar service.
type otelInstrumentation struct {
	enabled bool

	// Tracing
	tracingEnabled bool
	tracer         trace.Tracer

	// Metrics
	metricsEnabled bool

	// Event operations
	createLatency metric.Float64Histogram
	createCount   metric.Int64Counter
	createErrors  metric.Int64Counter
	getLatency    metric.Float64Histogram
	getCount      metric.Int64Counter
	getErrors     metric.Int64Counter
	listLatency   metric.Float64Histogram
	listCount     metric.Int64Counter
	listErrors    metric.Int64Counter

	// Mutations
	mutateLatency metric.Float64Histogram
	mutateCount   metric.Int64Counter
	mutateErrors  metric.Int64Counter
	deleteLatency metric.Float64Histogram
	deleteCount   metric.Int64Counter
	deleteErrors  metric.Int64Counter

	// Invitation dispatch
	dispatchLatency  metric.Float64Histogram
	dispatchCount    metric.Int64Counter
	dispatchErrors   metric.Int64Counter
	dispatchFailures metric.Int64Counter
}

// newOtelInstrumentation creates new OTel instrumentation from options.
func newOtelInstrumentation(opts *options) (*otelInstrumentation, error) {
	o := &otelInstrumentation{
		enabled:        opts.tracingEnabled || opts.metricsEnabled,
		tracingEnabled: opts.tracingEnabled,
		metricsEnabled: opts.metricsEnabled,
	}

	if !o.enabled {
		return o, nil
	}

	// Initialize tracer
	if opts.tracingEnabled {
		tp := opts.tracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		o.tracer = tp.Tracer(instrumentationName)
	}

	// Initialize metrics
	if opts.metricsEnabled {
		mp := opts.meterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		if err := o.initMetrics(mp); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// initMetrics initializes all metric instruments.
func (o *otelInstrumentation) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)

	var err error

	// Create metrics
	o.createLatency, err = meter.Float64Histogram(
		"calendar.create.duration",
		metric.WithDescription("Duration of create operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.createCount, err = meter.Int64Counter(
		"calendar.create.count",
		metric.WithDescription("Number of events created"),
	)
	if err != nil {
		return err
	}

	o.createErrors, err = meter.Int64Counter(
		"calendar.create.errors",
		metric.WithDescription("Number of create errors"),
	)
	if err != nil {
		return err
	}

	// Get metrics
	o.getLatency, err = meter.Float64Histogram(
		"calendar.get.duration",
		metric.WithDescription("Duration of get operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.getCount, err = meter.Int64Counter(
		"calendar.get.count",
		metric.WithDescription("Number of get operations"),
	)
	if err != nil {
		return err
	}

	o.getErrors, err = meter.Int64Counter(
		"calendar.get.errors",
		metric.WithDescription("Number of get errors"),
	)
	if err != nil {
		return err
	}

	// List metrics
	o.listLatency, err = meter.Float64Histogram(
		"calendar.list.duration",
		metric.WithDescription("Duration of list operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.listCount, err = meter.Int64Counter(
		"calendar.list.count",
		metric.WithDescription("Number of list operations"),
	)
	if err != nil {
		return err
	}

	o.listErrors, err = meter.Int64Counter(
		"calendar.list.errors",
		metric.WithDescription("Number of list errors"),
	)
	if err != nil {
		return err
	}

	// Mutation metrics
	o.mutateLatency, err = meter.Float64Histogram(
		"calendar.mutate.duration",
		metric.WithDescription("Duration of mutation operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.mutateCount, err = meter.Int64Counter(
		"calendar.mutate.count",
		metric.WithDescription("Number of mutation operations"),
	)
	if err != nil {
		return err
	}

	o.mutateErrors, err = meter.Int64Counter(
		"calendar.mutate.errors",
		metric.WithDescription("Number of mutation errors"),
	)
	if err != nil {
		return err
	}

	// Delete metrics
	o.deleteLatency, err = meter.Float64Histogram(
		"calendar.delete.duration",
		metric.WithDescription("Duration of delete operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.deleteCount, err = meter.Int64Counter(
		"calendar.delete.count",
		metric.WithDescription("Number of delete operations"),
	)
	if err != nil {
		return err
	}

	o.deleteErrors, err = meter.Int64Counter(
		"calendar.delete.errors",
		metric.WithDescription("Number of delete errors"),
	)
	if err != nil {
		return err
	}

	// Dispatch metrics
	o.dispatchLatency, err = meter.Float64Histogram(
		"calendar.dispatch.duration",
		metric.WithDescription("Duration of invitation dispatch operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.dispatchCount, err = meter.Int64Counter(
		"calendar.dispatch.count",
		metric.WithDescription("Number of invitation dispatch operations"),
	)
	if err != nil {
		return err
	}

	o.dispatchErrors, err = meter.Int64Counter(
		"calendar.dispatch.errors",
		metric.WithDescription("Number of dispatch errors"),
	)
	if err != nil {
		return err
	}

	o.dispatchFailures, err = meter.Int64Counter(
		"calendar.dispatch.recipient_failures",
		metric.WithDescription("Number of per-recipient delivery failures"),
	)
	if err != nil {
		return err
	}

	return nil
}

// startSpan starts a new span if tracing is enabled.
// Caller should call the returned function with the operation error when done.
func (o *otelInstrumentation) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if !o.tracingEnabled || o.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// recordCreate records create operation metrics.
func (o *otelInstrumentation) recordCreate(ctx context.Context, duration time.Duration, err error) {
	if !o.metricsEnabled {
		return
	}

	o.createLatency.Record(ctx, duration.Seconds())
	o.createCount.Add(ctx, 1)
	if err != nil {
		o.createErrors.Add(ctx, 1)
	}
}

// recordGet records get operation metrics.
func (o *otelInstrumentation) recordGet(ctx context.Context, duration time.Duration, err error) {
	if !o.metricsEnabled {
		return
	}

	o.getLatency.Record(ctx, duration.Seconds())
	o.getCount.Add(ctx, 1)
	if err != nil {
		o.getErrors.Add(ctx, 1)
	}
}

// recordList records list operation metrics.
func (o *otelInstrumentation) recordList(ctx context.Context, duration time.Duration, resultCount int, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Int("result_count", resultCount),
	)

	o.listLatency.Record(ctx, duration.Seconds(), attrs)
	o.listCount.Add(ctx, 1, attrs)
	if err != nil {
		o.listErrors.Add(ctx, 1, attrs)
	}
}

// recordMutate records mutation operation metrics.
func (o *otelInstrumentation) recordMutate(ctx context.Context, duration time.Duration, operation string, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
	)

	o.mutateLatency.Record(ctx, duration.Seconds(), attrs)
	o.mutateCount.Add(ctx, 1, attrs)
	if err != nil {
		o.mutateErrors.Add(ctx, 1, attrs)
	}
}

// recordDelete records delete operation metrics.
func (o *otelInstrumentation) recordDelete(ctx context.Context, duration time.Duration, err error) {
	if !o.metricsEnabled {
		return
	}

	o.deleteLatency.Record(ctx, duration.Seconds())
	o.deleteCount.Add(ctx, 1)
	if err != nil {
		o.deleteErrors.Add(ctx, 1)
	}
}

// recordDispatch records invitation dispatch metrics.
func (o *otelInstrumentation) recordDispatch(ctx context.Context, duration time.Duration, attempted, failed int, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Int("attempted", attempted),
	)

	o.dispatchLatency.Record(ctx, duration.Seconds(), attrs)
	o.dispatchCount.Add(ctx, 1, attrs)
	if failed > 0 {
		o.dispatchFailures.Add(ctx, int64(failed), attrs)
	}
	if err != nil {
		o.dispatchErrors.Add(ctx, 1, attrs)
	}
}
