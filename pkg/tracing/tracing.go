// Package tracing wires OpenTelemetry for the service. Without Init every
// span is a no-op, so callers can trace unconditionally.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/garyjia/travel-approval"

// Config selects the exporter destination
type Config struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	// OutputPath is a file for the stdout exporter; empty means os.Stdout.
	OutputPath string `mapstructure:"output_path"`
}

var (
	mu       sync.Mutex
	provider *sdktrace.TracerProvider
)

// Init installs a global tracer provider backed by the stdout exporter.
// It returns a shutdown function that flushes pending spans. A disabled
// config installs nothing.
func Init(cfg Config) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop, nil
	}

	var w io.Writer = os.Stdout
	var file *os.File
	if cfg.OutputPath != "" {
		f, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return noop, fmt.Errorf("failed to open trace output: %w", err)
		}
		w, file = f, f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return noop, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	if err := InitWithExporter(cfg.ServiceName, cfg.ServiceVersion, exporter); err != nil {
		return noop, err
	}

	return func(ctx context.Context) error {
		mu.Lock()
		tp := provider
		provider = nil
		mu.Unlock()

		if tp != nil {
			if err := tp.Shutdown(ctx); err != nil {
				return fmt.Errorf("failed to shutdown tracer provider: %w", err)
			}
		}
		if file != nil {
			return file.Close()
		}
		return nil
	}, nil
}

// InitWithExporter installs a global provider using exporter. Tests pass
// an in-memory exporter here.
func InitWithExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) error {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	)

	mu.Lock()
	provider = tp
	mu.Unlock()

	otel.SetTracerProvider(tp)
	return nil
}

// Start opens a span named name under the global provider.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
