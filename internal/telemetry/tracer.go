// Package telemetry sets up OpenTelemetry tracing for the orchestrator.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/tjfontaine/campaign-orchestrator/internal/pkg/config"
)

// Exporter names accepted in telemetry.exporter.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
	ExporterNone   = "none"
)

// Shutdown flushes pending spans.
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// InitTracer installs the global tracer provider described by cfg. The
// "none" exporter leaves the no-op provider in place.
func InitTracer(ctx context.Context, cfg config.TelemetryConfig, logger *slog.Logger) (Shutdown, error) {
	return initTracer(ctx, cfg, nil, logger)
}

// initTracer lets tests redirect the stdout exporter.
func initTracer(ctx context.Context, cfg config.TelemetryConfig, out io.Writer, logger *slog.Logger) (Shutdown, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Exporter))
	if name == "" || name == ExporterNone {
		logger.Debug("tracing disabled")
		return noop, nil
	}

	exporter, err := newExporter(ctx, name, cfg.OTLPEndpoint, out)
	if err != nil {
		return noop, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Info("OpenTelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("exporter", name))

	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, name, endpoint string, out io.Writer) (sdktrace.SpanExporter, error) {
	switch name {
	case ExporterStdout:
		opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if out != nil {
			opts = append(opts, stdouttrace.WithWriter(out))
		}
		return stdouttrace.New(opts...)
	case ExporterOTLP:
		var opts []otlptracehttp.Option
		if endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", name)
	}
}
