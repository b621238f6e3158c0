package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installTestTracer swaps in a TracerProvider backed by an in-memory
// exporter and restores the previous global on cleanup.
func installTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))

	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

func TestStartSpanRecordsNamedSpan(t *testing.T) {
	exp := installTestTracer(t)

	ctx, span := StartSpan(context.Background(), "utterance")
	if CorrelationID(ctx) == "" {
		t.Error("StartSpan produced no trace ID")
	}
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "utterance" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "utterance")
	}
}

func TestCorrelationIDWithoutSpan(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}
}

func TestCorrelationIDIsHexTraceID(t *testing.T) {
	installTestTracer(t)

	ctx, span := StartSpan(context.Background(), "task")
	defer span.End()

	cid := CorrelationID(ctx)
	if len(cid) != 32 {
		t.Fatalf("trace ID length = %d, want 32", len(cid))
	}
	for _, c := range cid {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Fatalf("trace ID contains non-hex rune %q", c)
		}
	}
}
