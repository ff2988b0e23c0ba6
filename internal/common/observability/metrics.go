// internal/common/observability/metrics.go
package observability

import (
	"context"
	"time"

	"scholarship-workers/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability owns the otel meter provider (exported through the Prometheus registry) and the tracer provider.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	jobCounter    otelmetric.Int64Counter
	jobDuration   otelmetric.Float64Histogram
	tracing       *Tracing
}

func New(serviceName, jaegerEndpoint string, log logger.Logger) *Observability {
	o := &Observability{tracing: NewTracing(serviceName, jaegerEndpoint, log)}

	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("failed to create prometheus exporter, otel metrics disabled", map[string]interface{}{
			"error": err.Error(),
		})
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	o.meterProvider = provider
	o.meter = provider.Meter(serviceName)

	o.jobCounter, _ = o.meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)
	o.jobDuration, _ = o.meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)

	return o
}

func (o *Observability) RecordJob(ctx context.Context, taskType, status string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	)
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, attrs)
	}
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Tracing() *Tracing {
	if o == nil {
		return nil
	}
	return o.tracing
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	o.tracing.Shutdown(ctx)
}
