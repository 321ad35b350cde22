package metrics

import (
	"slices"
	"time"

	"github.com/gin-gonic/gin"
)

// GinHTTPMiddleware 记录状态端点的请求数与耗时。
// 路由标签取 FullPath，未匹配的请求归入 UnknownRoute；
// skipRoutes 中的路由不记录，通常用于排除 Prometheus 自身的抓取。
func GinHTTPMiddleware(httpMetrics *HTTPServerMetrics, skipRoutes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if httpMetrics == nil || (route != "" && slices.Contains(skipRoutes, route)) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		if route == "" {
			route = UnknownRoute
		}
		httpMetrics.Observe(c.Request.Context(), c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
