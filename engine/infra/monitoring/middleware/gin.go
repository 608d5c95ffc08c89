package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RequestLatencyBuckets are the explanation request latency boundaries in seconds.
var RequestLatencyBuckets = []float64{0.05, 0.1, 0.2, 0.4, 0.8, 1.5, 2, 5}

// HTTPMetrics records request latency labelled by method, route and status.
func HTTPMetrics(meter metric.Meter) (gin.HandlerFunc, error) {
	latency, err := meter.Float64Histogram(
		"explanation_request_latency",
		metric.WithUnit("s"),
		metric.WithDescription("HTTP request latency"),
		metric.WithExplicitBucketBoundaries(RequestLatencyBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create request latency histogram: %w", err)
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		latency.Record(c.Request.Context(), time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("endpoint", endpoint),
			attribute.String("status", strconv.Itoa(c.Writer.Status())),
		))
	}, nil
}
