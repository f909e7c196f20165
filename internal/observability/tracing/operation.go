package tracing

import (
	"context"

	obscontext "github.com/smallbiznis/queueline/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const queueTracerName = "queueline/queue"

// StartOperation opens an internal span for one queue operation.
func StartOperation(ctx context.Context, operation string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(queueTracerName).Start(ctx, "queue."+operation, trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String("queue.operation", operation))
	if actor := obscontext.ActorIDFromContext(ctx); actor != "" {
		span.SetAttributes(attribute.String("queue.actor_id", actor))
	}
	return ctx, span
}

// EndOperation closes span. A non-empty rejection marks an expected negative
// outcome (empty queue, already queued) and does not flag the span as failed.
func EndOperation(span trace.Span, err error, rejection string) {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case rejection != "":
		span.SetAttributes(attribute.String("queue.rejection", rejection))
	default:
		if safeErr := SafeError(err); safeErr != nil {
			span.RecordError(safeErr)
		}
		span.SetStatus(codes.Error, "queue operation failed")
	}
	span.End()
}
