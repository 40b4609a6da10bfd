package structured

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/vinayprograms/parliament/internal/structured"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)

	attemptCounter, _   = meter.Int64Counter("parliament.gateway.attempts", metric.WithDescription("Structured output attempts"))
	exhaustedCounter, _ = meter.Int64Counter("parliament.gateway.exhausted", metric.WithDescription("Generations that ran out of attempts"))
)

func startGenerateSpan(ctx context.Context, name string, maxAttempts int) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "gateway."+name)
	span.SetAttributes(
		attribute.String("gateway.name", name),
		attribute.Int("gateway.max_attempts", maxAttempts),
	)
	return ctx, span
}

func endGenerateSpan(span trace.Span, attempts int, err error) {
	span.SetAttributes(attribute.Int("gateway.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func startAttemptSpan(ctx context.Context, name string, n int) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "gateway.attempt")
	span.SetAttributes(
		attribute.String("gateway.name", name),
		attribute.Int("gateway.attempt", n),
	)
	return ctx, span
}

func endAttemptSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

func recordAttempt(ctx context.Context, name string, ok bool) {
	if attemptCounter == nil {
		return
	}
	attemptCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gateway.name", name),
		attribute.Bool("gateway.ok", ok),
	))
}

func recordExhausted(ctx context.Context, name string) {
	if exhaustedCounter == nil {
		return
	}
	exhaustedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("gateway.name", name)))
}
