package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/observability"
)

// Observe opens a server span per request and records request metrics by
// route template. metrics may be nil.
func Observe(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := observability.StartSpan(ctx, c.Request.Method+" "+route,
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
		)
		if id := observability.TraceID(ctx); id != "" {
			ctx = logger.ContextWithTraceID(ctx, id)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		var err error
		if len(c.Errors) > 0 {
			err = c.Errors.Last()
		}
		observability.EndSpan(span, err)
		metrics.RequestDone(ctx, c.Request.Method, route, status, time.Since(start))
	}
}
