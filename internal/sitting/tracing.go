package sitting

import (
	"context"

	"github.com/vinayprograms/parliament/internal/bill"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/vinayprograms/parliament/internal/sitting")

func startSittingSpan(ctx context.Context, b *bill.Bill) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sitting", trace.WithAttributes(
		attribute.String("bill.id", b.ID().String()),
		attribute.Int("bill.version", b.Version()),
		attribute.String("bill.title", b.Title()),
	))
}

func startPhaseSpan(ctx context.Context, phase string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sitting."+phase)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
