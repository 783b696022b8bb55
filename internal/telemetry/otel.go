package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies spans opened by this module
const InstrumentationName = "github.com/benvon/smart-schedule"

func noopShutdown(context.Context) error { return nil }

// Setup installs OTLP/HTTP tracing when enabled. The returned shutdown func is
// never nil and flushes pending spans.
func Setup(ctx context.Context, enabled bool, serviceName, endpoint string) (func(context.Context) error, error) {
	if !enabled {
		return noopShutdown, nil
	}
	tp, err := InitTracer(ctx, serviceName, endpoint)
	if err != nil {
		return noopShutdown, err
	}
	return tp.Shutdown, nil
}

// InitTracer exports to endpoint over plain OTLP/HTTP. An empty endpoint uses
// the exporter's environment defaults.
func InitTracer(ctx context.Context, serviceName, endpoint string) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
	if endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return Install(ctx, serviceName, exporter)
}

// Install registers a batching provider around exporter as the global tracer
// provider, with W3C trace context and baggage propagation.
func Install(ctx context.Context, serviceName string, exporter sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithHost(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}

// Tracer returns the tracer for planner and worker spans. Without an installed
// provider it is the global no-op tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}
