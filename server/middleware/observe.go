package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/graphflow/observability"
)

const unmatchedRoute = "unmatched"

// Metrics returns a Gin middleware recording request counts and latency by
// route template.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.RecordRequest(c.Request.Context(), c.Request.Method, routeOf(c), c.Writer.Status(), time.Since(start))
	}
}

// Tracing returns a Gin middleware that wraps each request in a server span.
func Tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := observability.StartSpan(c.Request.Context(), observability.SpanHTTPRequest,
			trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		observability.SetSpanAttribute(ctx, "http.method", c.Request.Method)
		observability.SetSpanAttribute(ctx, "http.route", routeOf(c))
		c.Next()
		observability.SetSpanAttribute(ctx, "http.status_code", c.Writer.Status())
		if len(c.Errors) > 0 {
			observability.SetSpanError(ctx, c.Errors.Last())
		}
	}
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return unmatchedRoute
}
