package main

import (
	"context"
	"net/http"

	"github.com/kbukum/graphflow/dag"
	"github.com/kbukum/graphflow/llm"
	"github.com/kbukum/graphflow/logger"
	"github.com/kbukum/graphflow/logic"
	"github.com/kbukum/graphflow/observability"
	"github.com/kbukum/graphflow/registry"
	"github.com/kbukum/graphflow/service"
)

// telemetry holds what observability setup produced for the rest of the wiring.
type telemetry struct {
	metrics  *observability.Metrics
	handler  http.Handler
	shutdown []func(context.Context) error
}

// initTelemetry installs the tracer and meter providers enabled in cfg.
func initTelemetry(ctx context.Context, cfg *Config) (*telemetry, error) {
	t := &telemetry{}
	res := observability.Resource{
		ServiceName:    cfg.Name,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
	}
	if cfg.Observability.Tracing.Enabled {
		tp, err := observability.InitTracer(ctx, res, cfg.Observability.Tracing)
		if err != nil {
			return nil, err
		}
		t.shutdown = append(t.shutdown, tp.Shutdown)
	}
	if cfg.Observability.Metrics.Enabled {
		mp, err := observability.InitMeter(ctx, res, cfg.Observability.Metrics)
		if err != nil {
			return nil, err
		}
		t.shutdown = append(t.shutdown, mp.Shutdown)
		t.handler = mp.Handler()
		if t.metrics, err = observability.NewMetrics(observability.Meter(cfg.Name)); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Shutdown flushes every installed provider.
func (t *telemetry) Shutdown(ctx context.Context) error {
	var first error
	for _, fn := range t.shutdown {
		if err := fn(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// newService wires the registry, model router, logic resolver and engine.
func newService(cfg *Config, metrics *observability.Metrics, log *logger.Logger, opts ...registry.Option) (*service.Service, *registry.Memory) {
	opts = append([]registry.Option{registry.WithLogger(log.WithComponent("registry"))}, opts...)
	graphs := registry.NewMemory(opts...)

	router := llm.NewRouter(cfg.LLM, llm.WithLogger(log.WithComponent("llm")))
	engineOpts := []dag.EngineOption{dag.WithEngineLogger(log.WithComponent("engine"))}
	if metrics != nil {
		engineOpts = append(engineOpts, dag.WithEngineMetrics(metrics))
	}
	engine := dag.NewEngine(cfg.Engine, dag.Binder{
		Logic:  logic.NewResolver(logic.NewBuiltins(), cfg.Logic),
		Models: router,
	}, engineOpts...)

	svcOpts := []service.Option{service.WithLogger(log.WithComponent("service"))}
	if metrics != nil {
		svcOpts = append(svcOpts, service.WithMetrics(metrics))
	}
	return service.New(graphs, engine, svcOpts...), graphs
}
