// internal/common/observability/tracing.go
package observability

import (
	"context"

	"scholarship-workers/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "scholarship-workers"

// Tracing exports spans to Jaeger when an endpoint is configured. Without one, spans are recorded locally only.
type Tracing struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

func NewTracing(serviceName, jaegerEndpoint string, log logger.Logger) *Tracing {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}

	if jaegerEndpoint != "" {
		exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerEndpoint)))
		if err != nil {
			log.Warn("failed to create jaeger exporter, spans will not be exported", map[string]interface{}{
				"endpoint": jaegerEndpoint,
				"error":    err.Error(),
			})
		} else {
			opts = append(opts, sdktrace.WithBatcher(exporter))
		}
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &Tracing{provider: tp, tracer: tp.Tracer(tracerName)}
}

// StartSpan starts a span on the service tracer. A nil Tracing falls back to the global provider.
func (t *Tracing) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	if t != nil {
		tracer = t.tracer
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on the span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *Tracing) Shutdown(ctx context.Context) {
	if t == nil || t.provider == nil {
		return
	}
	_ = t.provider.Shutdown(ctx)
}
