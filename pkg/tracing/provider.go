package tracing

import (
	"context"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// LogExporter writes finished spans to the service logger at debug level.
type LogExporter struct {
	logger ectologger.Logger
}

func NewLogExporter(logger ectologger.Logger) *LogExporter {
	return &LogExporter{logger: logger}
}

func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		e.logger.WithFields(map[string]any{
			"trace_id":    span.SpanContext().TraceID().String(),
			"span_id":     span.SpanContext().SpanID().String(),
			"span":        span.Name(),
			"duration_ms": span.EndTime().Sub(span.StartTime()).Milliseconds(),
			"status":      span.Status().Code.String(),
		}).Debug("span finished")
	}
	return nil
}

func (e *LogExporter) Shutdown(ctx context.Context) error {
	return nil
}

// Setup installs an SDK tracer provider that exports through exporter and
// registers its tracer for StartSpan. The returned function flushes and stops it.
func Setup(serviceName string, exporter sdktrace.SpanExporter) func(context.Context) error {
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	SetTracer(provider.Tracer(serviceName))
	return provider.Shutdown
}
