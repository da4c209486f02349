// Package telemetry wires the OpenTelemetry trace pipeline from the
// standard OTEL_* environment variables. Without an endpoint the
// process runs untraced.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Session owns the process-wide tracer provider.
type Session struct {
	provider *sdktrace.TracerProvider
}

// Setup configures the global tracer provider from the environment:
//
//	OTEL_EXPORTER_OTLP_ENDPOINT   collector endpoint (unset: no-op)
//	OTEL_EXPORTER_OTLP_PROTOCOL   grpc | http-json | http-binary
//	OTEL_EXPORTER_OTLP_HEADERS    comma-separated k=v pairs
//	OTEL_TRACES_SAMPLER           always_on | always_off | traceidratio
//	OTEL_TRACES_SAMPLER_ARG       ratio for traceidratio
func Setup(ctx context.Context, serviceName, version string) (*Session, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return &Session{}, nil
	}

	headers := parseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")

	var (
		exporter *otlptrace.Exporter
		err      error
	)
	switch protocol := os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"); protocol {
	case "", "grpc":
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithHeaders(headers))
	case "http-json", "http-binary":
		// The Go OTLP HTTP exporter always encodes protobuf; both
		// http protocol names select it.
		exporter, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithHeaders(headers))
	default:
		return nil, fmt.Errorf("unknown OTEL_EXPORTER_OTLP_PROTOCOL %q", protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to describe the telemetry resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFromEnv()),
	)
	otel.SetTracerProvider(provider)

	return &Session{provider: provider}, nil
}

// Shutdown flushes and stops the trace pipeline.
func (s *Session) Shutdown(ctx context.Context) {
	if s.provider == nil {
		return
	}
	_ = s.provider.Shutdown(ctx)
}

func samplerFromEnv() sdktrace.Sampler {
	switch os.Getenv("OTEL_TRACES_SAMPLER") {
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		ratio, err := strconv.ParseFloat(os.Getenv("OTEL_TRACES_SAMPLER_ARG"), 64)
		if err != nil || ratio < 0 || ratio > 1 {
			ratio = 1
		}
		return sdktrace.TraceIDRatioBased(ratio)
	default:
		return sdktrace.AlwaysSample()
	}
}

func parseHeaders(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		if k, v, ok := strings.Cut(strings.TrimSpace(pair), "="); ok && k != "" {
			headers[k] = v
		}
	}
	return headers
}
