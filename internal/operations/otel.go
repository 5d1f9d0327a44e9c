package operations

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"skuforecast/internal/errors"
	"skuforecast/internal/infrastructure"
)

// RunTracer provides OpenTelemetry instrumentation for forecasting runs
type RunTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.RunMetrics
}

// NewRunTracer creates a run tracer from telemetry; nil means no-op
func NewRunTracer(telemetry *infrastructure.Telemetry) (*RunTracer, error) {
	if telemetry == nil {
		telemetry = infrastructure.NoopTelemetry()
	}
	metrics, err := infrastructure.NewRunMetrics(telemetry.Meter)
	if err != nil {
		return nil, err
	}
	return &RunTracer{tracer: telemetry.Tracer, metrics: metrics}, nil
}

// TraceRun creates the root span of a run
func (rt *RunTracer) TraceRun(ctx context.Context, state *RunState) (context.Context, trace.Span) {
	return rt.tracer.Start(ctx, "forecast.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", state.ID),
			attribute.String("run.input", state.Request.InputPath),
			attribute.String("run.output", state.Request.OutputPath),
		),
	)
}

// TraceStep creates a span for one step, named forecast.<step id>
func (rt *RunTracer) TraceStep(ctx context.Context, runID string, step Step) (context.Context, trace.Span) {
	return rt.tracer.Start(ctx, "forecast."+step.ID(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("step.id", step.ID()),
			attribute.String("step.name", step.Name()),
		),
	)
}

// RecordStepCompletion ends a step span and records its duration
func (rt *RunTracer) RecordStepCompletion(ctx context.Context, span trace.Span, stepID string, duration time.Duration, err error) {
	span.SetAttributes(attribute.Float64("step.duration_seconds", duration.Seconds()))
	if err != nil {
		infrastructure.RecordError(ctx, err,
			trace.WithAttributes(
				attribute.String("step.id", stepID),
				attribute.String("error.kind", string(errors.KindOf(err))),
			),
		)
		span.SetStatus(codes.Error, "step failed")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	rt.metrics.RecordStage(ctx, stepID, duration, err)
}

// RecordRunCompletion ends the run span and counts the run
func (rt *RunTracer) RecordRunCompletion(ctx context.Context, span trace.Span, state *RunState, err error) {
	span.SetAttributes(
		attribute.String("run.status", string(state.Status)),
		attribute.Int("run.forecasts", len(state.Results)),
	)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		span.SetStatus(codes.Error, "run failed")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	rt.metrics.RecordRun(ctx, err)
}

// AddCount increments one of the record counters by n
func (rt *RunTracer) AddCount(ctx context.Context, counter metric.Int64Counter, n int) {
	if counter == nil || n <= 0 {
		return
	}
	counter.Add(ctx, int64(n))
}

// Metrics returns the instruments used by steps
func (rt *RunTracer) Metrics() *infrastructure.RunMetrics {
	return rt.metrics
}
