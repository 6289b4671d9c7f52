package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/graphflow/logger"
)

// MeterProvider is an installed meter provider plus, for the Prometheus
// exporter, the scrape handler serving it.
type MeterProvider struct {
	*sdkmetric.MeterProvider
	handler http.Handler
}

// Handler returns the /metrics handler, or nil when metrics are pushed over OTLP.
func (p *MeterProvider) Handler() http.Handler {
	if p == nil {
		return nil
	}
	return p.handler
}

// InitMeter installs a meter provider as the global provider, exporting either
// over OTLP/HTTP or through the default Prometheus registry.
func InitMeter(ctx context.Context, res Resource, cfg MetricsConfig) (*MeterProvider, error) {
	r, err := newResource(res)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var (
		reader  sdkmetric.Reader
		handler http.Handler
	)
	switch cfg.Exporter {
	case ExporterPrometheus:
		exporter, err := promexporter.New()
		if err != nil {
			return nil, fmt.Errorf("creating prometheus exporter: %w", err)
		}
		reader = exporter
		handler = promhttp.Handler()
	case ExporterOTLP:
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating metric exporter: %w", err)
		}
		var readerOpts []sdkmetric.PeriodicReaderOption
		if cfg.Interval > 0 {
			readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
		}
		reader = sdkmetric.NewPeriodicReader(exporter, readerOpts...)
	default:
		return nil, fmt.Errorf("unknown metric exporter %q", cfg.Exporter)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(r),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", res.ServiceName,
		"exporter", cfg.Exporter,
	))

	return &MeterProvider{MeterProvider: mp, handler: handler}, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the graph service instruments.
type Metrics struct {
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
	runTotal        metric.Int64Counter
	runDuration     metric.Float64Histogram
	nodeDuration    metric.Float64Histogram
	nodeErrors      metric.Int64Counter
	mutationTotal   metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	requestTotal, err := meter.Int64Counter("http.request.total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http.request.total counter: %w", err)
	}

	requestDuration, err := meter.Float64Histogram("http.request.duration",
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http.request.duration histogram: %w", err)
	}

	runTotal, err := meter.Int64Counter("graph.run.total",
		metric.WithDescription("Total number of graph runs by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating graph.run.total counter: %w", err)
	}

	runDuration, err := meter.Float64Histogram("graph.run.duration",
		metric.WithDescription("Duration of graph runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating graph.run.duration histogram: %w", err)
	}

	nodeDuration, err := meter.Float64Histogram("graph.node.duration",
		metric.WithDescription("Duration of node invocations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating graph.node.duration histogram: %w", err)
	}

	nodeErrors, err := meter.Int64Counter("graph.node.errors",
		metric.WithDescription("Failed node invocations by error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating graph.node.errors counter: %w", err)
	}

	mutationTotal, err := meter.Int64Counter("graph.mutation.total",
		metric.WithDescription("Structural graph mutations by operation and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating graph.mutation.total counter: %w", err)
	}

	return &Metrics{
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		runTotal:        runTotal,
		runDuration:     runDuration,
		nodeDuration:    nodeDuration,
		nodeErrors:      nodeErrors,
		mutationTotal:   mutationTotal,
	}, nil
}

// RecordRequest records a completed HTTP request. route is the matched
// route template, never the raw path.
func (m *Metrics) RecordRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
	))
}

// RecordRun records a finished graph run.
func (m *Metrics) RecordRun(ctx context.Context, status string, duration time.Duration) {
	m.runTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}

// RecordNode records one node invocation.
func (m *Metrics) RecordNode(ctx context.Context, kind, status string, duration time.Duration) {
	m.nodeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

// RecordNodeError counts a failed node invocation.
func (m *Metrics) RecordNodeError(ctx context.Context, kind, code string) {
	m.nodeErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("code", code),
	))
}

// RecordMutation counts a structural mutation.
func (m *Metrics) RecordMutation(ctx context.Context, operation, status string) {
	m.mutationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}
