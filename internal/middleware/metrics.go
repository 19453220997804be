package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/leave-approval-api/internal/service"
)

// unmatchedRoute keeps the path label bounded when no route matched.
const unmatchedRoute = "unmatched"

// Metrics observes request counts and latencies by route template. Scrapes of the metrics
// endpoint itself are not recorded.
func Metrics(metricsSvc *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		if _, ok := skipped[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
