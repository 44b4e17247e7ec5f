// Package metrics exposes registry and resolver instrumentation through OpenTelemetry, scraped
// in Prometheus format.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

type providerOptions struct {
	version string
	runtime bool
}

// ProviderOption customizes NewProvider.
type ProviderOption func(*providerOptions)

// WithServiceVersion tags every series with the running build version.
func WithServiceVersion(version string) ProviderOption {
	return func(o *providerOptions) { o.version = version }
}

// WithRuntimeCollectors adds the Go runtime and process collectors to the registry.
func WithRuntimeCollectors() ProviderOption {
	return func(o *providerOptions) { o.runtime = true }
}

// Provider owns the meter provider and the private Prometheus registry it exports into.
type Provider struct {
	meterProvider *metric.MeterProvider
	exporter      *promexporter.Exporter
	registry      *prometheus.Registry
}

// NewProvider builds a meter provider whose resource is named after namespace.
func NewProvider(namespace string, opts ...ProviderOption) (*Provider, error) {
	var o providerOptions
	for _, opt := range opts {
		opt(&o)
	}

	registry := prometheus.NewRegistry()
	if o.runtime {
		if err := registry.Register(collectors.NewGoCollector()); err != nil {
			return nil, fmt.Errorf("failed to register go collector: %w", err)
		}
		err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		if err != nil {
			return nil, fmt.Errorf("failed to register process collector: %w", err)
		}
	}

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	attrs := []attribute.KeyValue{attribute.String("service.name", serviceName(namespace))}
	if o.version != "" {
		attrs = append(attrs, attribute.String("service.version", o.version))
	}

	return &Provider{
		meterProvider: metric.NewMeterProvider(
			metric.WithReader(exporter),
			metric.WithResource(resource.NewSchemaless(attrs...)),
		),
		exporter: exporter,
		registry: registry,
	}, nil
}

func serviceName(namespace string) string {
	if namespace == "" {
		return "didregistry"
	}
	return namespace
}

// Handler serves the registry in Prometheus exposition format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// MeterProvider returns the meter provider instruments are created from.
func (p *Provider) MeterProvider() *metric.MeterProvider {
	return p.meterProvider
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}
