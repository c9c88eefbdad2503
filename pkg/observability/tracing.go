// Package observability provides tracing for the tap. Spans wrap discovery,
// query execution and each stream's sync pass.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/ajitpratap0/nebula-tap-bigquery"

// Span is the handle passed to traced functions.
type Span struct {
	span trace.Span
}

// SetAttribute tags the span. Values other than strings, ints, floats and
// bools are recorded with %v.
func (s *Span) SetAttribute(key string, value interface{}) {
	s.span.SetAttributes(toAttribute(key, value))
}

// Fail records err on the span and marks it failed. A nil err is ignored.
func (s *Span) Fail(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s *Span) End() { s.span.End() }

func toAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	}
	return attribute.String(key, fmt.Sprint(value))
}

// StreamTracer starts spans named "<component>.<operation>" tagged with
// the stream they concern.
type StreamTracer struct {
	component string
	tracer    trace.Tracer
}

// NewStreamTracer creates a tracer from provider. A nil provider disables
// tracing.
func NewStreamTracer(provider trace.TracerProvider, component string) *StreamTracer {
	if provider == nil {
		provider = noop.NewTracerProvider()
	}
	return &StreamTracer{component: component, tracer: provider.Tracer(instrumentationName)}
}

// StartSpan starts a span for operation on stream. stream may be empty.
func (st *StreamTracer) StartSpan(ctx context.Context, operation, stream string) (context.Context, *Span) {
	attrs := []attribute.KeyValue{attribute.String("tap.operation", operation)}
	if stream != "" {
		attrs = append(attrs, attribute.String("tap.stream", stream))
	}
	ctx, span := st.tracer.Start(ctx, st.component+"."+operation, trace.WithAttributes(attrs...))
	return ctx, &Span{span: span}
}

// Trace runs fn inside a span. The span ends Ok, or Error when fn fails.
func (st *StreamTracer) Trace(ctx context.Context, operation, stream string, fn func(ctx context.Context, span *Span) error) error {
	ctx, span := st.StartSpan(ctx, operation, stream)
	defer span.End()

	if err := fn(ctx, span); err != nil {
		span.Fail(err)
		return err
	}
	span.span.SetStatus(codes.Ok, "")
	return nil
}
