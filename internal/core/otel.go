package core

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ServiceName names the tracer and the resource of exported spans.
const ServiceName = "valuegen"

// OTelTracer adapts an OpenTelemetry tracer to the Tracer interface.
type OTelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer wraps tracer. A nil tracer yields a no-op implementation.
func NewOTelTracer(tracer trace.Tracer) *OTelTracer {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(ServiceName)
	}
	return &OTelTracer{tracer: tracer}
}

// NewStdoutOTelTracer exports spans as JSON objects to w through a batching
// tracer provider. The returned shutdown flushes pending spans and must be
// called once the traced work is done.
func NewStdoutOTelTracer(w io.Writer) (*OTelTracer, func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, nil, fmt.Errorf("create span exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", ServiceName))),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	return NewOTelTracer(tp.Tracer(ServiceName)), tp.Shutdown, nil
}

// Start implements Tracer.
func (t *OTelTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	ctx, span := t.tracer.Start(ctx, operation)
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
