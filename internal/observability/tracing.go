package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type TracingOptions struct {
	// Endpoint is host:port of an OTLP/HTTP collector. Empty leaves the
	// global no-op provider in place.
	Endpoint string
	Insecure bool
	Headers  map[string]string
	Service  string
	Version  string
}

// SetupTracing installs a batching tracer provider that exports over
// OTLP/HTTP. The returned shutdown flushes pending spans.
func SetupTracing(ctx context.Context, opts TracingOptions) (shutdown func(context.Context) error, err error) {
	shutdown = func(context.Context) error { return nil }
	if opts.Endpoint == "" {
		return shutdown, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(opts.Service),
			semconv.ServiceVersion(opts.Version),
		),
	)
	if err != nil {
		return shutdown, fmt.Errorf("tracing resource: %w", err)
	}

	exOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		exOpts = append(exOpts, otlptracehttp.WithInsecure())
	}
	if len(opts.Headers) > 0 {
		exOpts = append(exOpts, otlptracehttp.WithHeaders(opts.Headers))
	}
	exporter, err := otlptracehttp.New(ctx, exOpts...)
	if err != nil {
		return shutdown, fmt.Errorf("otlp trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithMaxQueueSize(2048),
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
