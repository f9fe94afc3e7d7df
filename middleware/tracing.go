package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aidlink/triage/request"
)

// tracerName is the instrumentation scope name for triage tracing.
const tracerName = "github.com/aidlink/triage"

// Tracing returns middleware that wraps request execution in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a pass-through
// with zero overhead.
//
// Span attributes include: triage.request.id, triage.request.type,
// triage.priority, triage.client_id. On error, the span status is set to
// codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, req *request.Request, next Handler) error {
		ctx, span := tracer.Start(ctx, "triage.request.execute",
			trace.WithAttributes(
				attribute.String("triage.request.id", req.ID.String()),
				attribute.String("triage.request.type", req.Type),
				attribute.String("triage.priority", req.Priority.String()),
				attribute.String("triage.client_id", req.ClientID),
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
