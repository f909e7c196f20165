package tracing

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/queueline/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// routeOperations names the queue operation served by each route.
var routeOperations = map[string]string{
	"/join_queue":   "join",
	"/leave_queue":  "leave",
	"/call_next":    "call_next",
	"/queue_status": "status",
	"/all_queues":   "list_waiting",
	"/queue_stats":  "stats",
	"/tickets":      "list_tickets",
}

// GinMiddleware opens a server span per request. The span is renamed to the
// matched route once routing is done and tagged with the queue operation,
// the acting user and any ticket number the handler published.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("queueline/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		method := strings.ToUpper(c.Request.Method)
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		span.SetName("HTTP " + method + " " + route)
		span.SetAttributes(SafeAttributes(requestAttributes(c, route, time.Since(start))...)...)

		if c.Writer.Status() >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
	}
}

func requestAttributes(c *gin.Context, route string, elapsed time.Duration) []attribute.KeyValue {
	// handlers swap the request context, so read ids after c.Next
	ctx := c.Request.Context()
	attrs := []attribute.KeyValue{
		attribute.String("http.method", c.Request.Method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", c.Writer.Status()),
		attribute.Int64("http.server_duration_ms", elapsed.Milliseconds()),
	}
	if op, ok := routeOperations[route]; ok {
		attrs = append(attrs, attribute.String("queue.operation", op))
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		attrs = append(attrs, attribute.String("request_id", requestID))
	}
	if actor := obscontext.ActorIDFromContext(ctx); actor != "" {
		attrs = append(attrs, attribute.String("queue.actor_id", actor))
	}
	if ticket := c.GetString("ticket_number"); ticket != "" {
		attrs = append(attrs, attribute.String("queue.ticket_number", ticket))
	}
	return attrs
}
