// Package observability wires OpenTelemetry tracing and Prometheus metrics.
//
// Tracing is a component: when enabled, Start installs an OTLP/HTTP tracer
// provider globally and Stop flushes it.
//
//	tracing := observability.NewTracing(cfg.Tracing, log)
//	ctx, span := observability.StartSpan(ctx, observability.SpanTranscribe)
//	defer span.End()
//
// Metrics live on a private Prometheus registry served by Handler:
//
//	m := observability.NewMetrics()
//	m.CacheHit()
//	router.GET("/metrics", gin.WrapH(m.Handler()))
package observability
