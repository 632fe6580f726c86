// Package observability wires OpenTelemetry metrics to a Prometheus
// exposition endpoint.
package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Module owns the MeterProvider and the registry the exporter writes to.
type Module struct {
	provider *sdkmetric.MeterProvider
	meter    otelmetric.Meter
	registry *prometheus.Registry
}

// New creates a Module backed by its own Prometheus registry, so several
// modules can coexist in one process.
func New(serviceName string) (*Module, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	m := newModule(serviceName, exporter)
	m.registry = reg
	return m, nil
}

// NewWithReader builds a Module on an arbitrary reader. The Prometheus
// handler is unavailable on such a module.
func NewWithReader(serviceName string, reader sdkmetric.Reader) *Module {
	return newModule(serviceName, reader)
}

func newModule(serviceName string, reader sdkmetric.Reader) *Module {
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return &Module{provider: provider, meter: provider.Meter(serviceName)}
}

func (m *Module) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// MetricsHandler serves the module registry in the Prometheus text format.
// Mount it at "/metrics".
func (m *Module) MetricsHandler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Module) Meter() otelmetric.Meter {
	return m.meter
}
