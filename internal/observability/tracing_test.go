package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := Tracer
	Tracer = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)).Tracer("test")
	t.Cleanup(func() { Tracer = prev })
	return rec
}

func TestStartOperation_TagsSocietyAndVisitor(t *testing.T) {
	rec := recordSpans(t)

	op, ctx := StartOperation(context.Background(), "visitor.mark_entry", "Green Acres")
	TagVisitor(ctx, 42, "inside/allowed")
	op.SetError(nil)
	op.SetError(errors.New("gate offline"))
	op.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "visitor.mark_entry", s.Name())
	assert.Equal(t, codes.Error, s.Status().Code)

	attrs := map[string]interface{}{}
	for _, kv := range s.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "Green Acres", attrs["gatehouse.society"])
	assert.Equal(t, int64(42), attrs["gatehouse.visitor_id"])
	assert.Equal(t, "inside/allowed", attrs["gatehouse.visitor_state"])
	require.Len(t, s.Events(), 1)
}

func TestNewSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), newSampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), newSampler(0).Description())
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "gatehouse-test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
