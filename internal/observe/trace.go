package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the Herald tracer.
const tracerName = "github.com/novakeep/herald"

// Tracer returns the Herald [trace.Tracer] from the globally registered
// provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a named span. The caller must call span.End().
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// CorrelationID returns the active trace ID from ctx, or "" when ctx carries
// no span with a valid trace ID. It is surfaced as the X-Correlation-ID
// response header so webhook callers can quote it when reporting problems.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
