// Package telemetry sets up OpenTelemetry tracing for the analyzer. Spans are
// exported to Google Cloud Trace when a project is configured; otherwise they
// are still created so trace context reaches outgoing notifications.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	texporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer shared by all analyzer packages.
const InstrumentationName = "github.com/JakeFAU/site-analyzer"

// Options configures InitTracerProvider.
type Options struct {
	ServiceName    string
	ServiceVersion string
	// ProjectID enables export to Google Cloud Trace.
	ProjectID string
	// SampleRatio is the fraction of root spans kept. Values outside (0, 1]
	// sample everything.
	SampleRatio float64
	// Exporter replaces the Cloud Trace exporter when set.
	Exporter sdktrace.SpanExporter
}

// InitTracerProvider builds a tracer provider, installs it and the W3C
// propagators globally, and returns it so the caller can shut it down.
func InitTracerProvider(ctx context.Context, opts Options) (*sdktrace.TracerProvider, error) {
	if opts.ServiceName == "" {
		return nil, errors.New("telemetry: service name is required")
	}
	attrs := []resource.Option{resource.WithAttributes(semconv.ServiceName(opts.ServiceName))}
	if opts.ServiceVersion != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(opts.ServiceVersion)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter := opts.Exporter
	if exporter == nil && opts.ProjectID != "" {
		exporter, err = texporter.New(texporter.WithProjectID(opts.ProjectID))
		if err != nil {
			return nil, fmt.Errorf("failed to create google trace exporter: %w", err)
		}
	}

	sampler := sdktrace.AlwaysSample()
	if opts.SampleRatio > 0 && opts.SampleRatio < 1 {
		sampler = sdktrace.TraceIDRatioBased(opts.SampleRatio)
	}
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	}
	if exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp, nil
}

// Tracer returns the analyzer tracer of the global provider. It follows a
// provider installed later by InitTracerProvider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
