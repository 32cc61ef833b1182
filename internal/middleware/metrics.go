package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"collaborative-whiteboard/internal/metrics"
)

// Metrics 记录 HTTP 请求数量和耗时。path 使用路由模板，避免房间 ID 造成标签爆炸。
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
