// Package observability wires OpenTelemetry tracing and metrics for the graph
// service.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, res, cfg.Tracing)
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanGraphRun)
//	defer span.End()
//
// Metrics are exported over OTLP/HTTP or scraped from the Prometheus handler:
//
//	mp, err := observability.InitMeter(ctx, res, cfg.Metrics)
//	metrics, err := observability.NewMetrics(observability.Meter("graphflow"))
//	metrics.RecordRun(ctx, "completed", duration)
//	router.GET("/metrics", gin.WrapH(mp.Handler()))
package observability
