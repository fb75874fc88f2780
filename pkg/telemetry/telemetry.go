/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package telemetry sets up tracing and metrics export for short-lived
// commands publishing checks.
package telemetry

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/compute/metadata"
	texporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.opentelemetry.io/contrib/detectors/gcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/api/option"
)

func tracerOptionsGCP(ctx context.Context) ([]trace.TracerProviderOption, error) {
	traceExporter, err := texporter.New(
		// Avoid infinite recursion in trace uploads
		//   https://github.com/open-telemetry/opentelemetry-go/issues/1928
		texporter.WithTraceClientOptions([]option.ClientOption{option.WithTelemetryDisabled()}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cloud trace exporter: %w", err)
	}
	res, err := resource.New(ctx,
		resource.WithDetectors(gcp.NewDetector()),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("detecting resource: %w", err)
	}
	return []trace.TracerProviderOption{
		trace.WithResource(res),
		trace.WithSpanProcessor(trace.NewBatchSpanProcessor(traceExporter)),
	}, nil
}

func tracerOptions(ctx context.Context) ([]trace.TracerProviderOption, error) {
	traceExporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating otlp exporter: %w", err)
	}
	return []trace.TracerProviderOption{
		trace.WithResource(resource.Default()),
		trace.WithSpanProcessor(trace.NewBatchSpanProcessor(traceExporter)),
	}, nil
}

// SetupTracer installs a global tracer provider. Spans go to Cloud Trace
// when running on GCP without an OTLP endpoint, and to the OTLP endpoint
// otherwise.
//
// Expected usage:
//
//	shutdown, err := telemetry.SetupTracer(ctx)
//	...
//	defer shutdown()
func SetupTracer(ctx context.Context) (func(), error) {
	var (
		options []trace.TracerProviderOption
		err     error
	)
	if os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") == "" && metadata.OnGCE() {
		options, err = tracerOptionsGCP(ctx)
	} else {
		options, err = tracerOptions(ctx)
	}
	if err != nil {
		return nil, err
	}

	tp := trace.NewTracerProvider(options...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			clog.FromContext(ctx).Infof("Error shutting down tracer provider: %v", err)
		}
	}, nil
}

// PushMetrics pushes the metrics of g to the Prometheus Pushgateway at url,
// grouped by job and the given labels. A nil g pushes the default registry.
func PushMetrics(ctx context.Context, url, job string, g prometheus.Gatherer, labels map[string]string) error {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	p := push.New(url, job).Gatherer(g)
	for k, v := range labels {
		p = p.Grouping(k, v)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
