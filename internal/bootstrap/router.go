package bootstrap

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	httpHandler "collaborative-whiteboard/internal/handler/http"
	wsHandler "collaborative-whiteboard/internal/handler/websocket"
	"collaborative-whiteboard/internal/middleware"
)

// RouterDeps 是组装路由所需的组件
type RouterDeps struct {
	Log             *logrus.Logger
	Rooms           *httpHandler.RoomHandler
	WebSocket       *wsHandler.WebSocketHandler
	Limiter         middleware.RateLimiter
	RateLimitMax    int
	RateLimitWindow time.Duration
	AllowedOrigin   string
}

// NewRouter 创建 Gin Engine 并注册所有路由
func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(d.Log))
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS(d.AllowedOrigin))

	// 限流只作用于 HTTP 接口，长连接不受影响
	api := router.Group("/api").Use(middleware.RateLimit(d.Limiter, d.RateLimitMax, d.RateLimitWindow))
	{
		api.POST("/rooms/join", d.Rooms.JoinRoom)
		api.GET("/rooms/stats/active", d.Rooms.ActiveStats)
		api.GET("/rooms/:roomId", d.Rooms.GetRoom)
	}
	router.GET("/ws", d.WebSocket.HandleConnection)
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})

		switch {
		case errorMessage != "":
			entry.Error(errorMessage)
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		case c.Request.URL.Path == "/ping" || c.Request.URL.Path == "/metrics":
			// 探活和抓取请求太频繁
			entry.Debug("Request handled")
		default:
			entry.Info("Request handled")
		}
	}
}
