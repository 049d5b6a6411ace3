package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	aws_pkg "github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/pkg/aws"
)

// HTTPMetrics is satisfied by *aws_pkg.MetricsClient.
type HTTPMetrics interface {
	IsEnabled() bool
	Put(ctx context.Context, data ...aws_pkg.Datum) error
}

// Metrics sends one batch per request: count, latency and, for failures,
// the error class. Recording happens off the request goroutine.
func Metrics(metricsClient HTTPMetrics, serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsClient == nil || !metricsClient.IsEnabled() {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		data := requestMetrics(serviceName, c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsClient.Put(ctx, data...)
		}()
	}
}

func requestMetrics(service, method, route string, status int, elapsed time.Duration) []aws_pkg.Datum {
	// Unmatched requests share one route value.
	if route == "" {
		route = "unmatched"
	}
	class := statusClass(status)
	dims := map[string]string{
		"Service": service,
		"Method":  method,
		"Path":    route,
		"Status":  class,
	}

	data := []aws_pkg.Datum{
		aws_pkg.Count(aws_pkg.MetricHTTPRequests, dims),
		aws_pkg.Latency(aws_pkg.MetricHTTPLatency, elapsed, dims),
	}
	switch class {
	case "5xx":
		data = append(data, aws_pkg.Count(aws_pkg.MetricHTTPErrors, dims), aws_pkg.Count(aws_pkg.MetricHTTP5xx, dims))
	case "4xx":
		data = append(data, aws_pkg.Count(aws_pkg.MetricHTTPErrors, dims), aws_pkg.Count(aws_pkg.MetricHTTP4xx, dims))
	}
	return data
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
