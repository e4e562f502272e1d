package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campos-hq/campos-api/internal/service"
)

// Metrics records method, templated route, status, and latency for every
// request. Scrape and probe endpoints are excluded to keep the series flat.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	skip := map[string]struct{}{
		"/metrics": {},
		"/health":  {},
		"/ready":   {},
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if _, ok := skip[path]; ok {
			return
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
