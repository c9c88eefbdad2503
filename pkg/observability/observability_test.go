package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStreamTracer(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	st := NewStreamTracer(tp, "tap")

	err := st.Trace(context.Background(), "sync", "events", func(ctx context.Context, span *Span) error {
		span.SetAttribute("records", 3)
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("query failed")
	err = st.Trace(context.Background(), "query", "events", func(context.Context, *Span) error { return boom })
	assert.ErrorIs(t, err, boom)

	spans := rec.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "tap.sync", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("tap.stream", "events"))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("records", 3))

	assert.Equal(t, "tap.query", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "query failed", spans[1].Status().Description)
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(DefaultTracingConfig("test"))
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))

	// spans from a disabled provider go nowhere
	st := NewStreamTracer(p, "tap")
	_, span := st.StartSpan(context.Background(), "discover", "")
	span.End()
}

func TestNewProvider_Stdout(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultTracingConfig("test")
	cfg.Enabled = true
	cfg.Writer = &buf

	p, err := NewProvider(cfg)
	require.NoError(t, err)

	_, span := NewStreamTracer(p, "tap").StartSpan(context.Background(), "discover", "events")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name":"tap.discover"`)
}

func TestNilProvider(t *testing.T) {
	st := NewStreamTracer(nil, "tap")
	assert.NoError(t, st.Trace(context.Background(), "x", "", func(context.Context, *Span) error { return nil }))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1.5).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}
