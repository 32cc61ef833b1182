package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisstate "collaborative-whiteboard/internal/infra/state/redis"
	"collaborative-whiteboard/internal/metrics"
	"collaborative-whiteboard/internal/middleware"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/api/rooms/:roomId", func(c *gin.Context) { c.String(http.StatusOK, c.Param("roomId")) })
	return r
}

func get(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRateLimit_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	limiter := redisstate.NewRedisStateRepository(client, "test:")

	r := newEngine(middleware.RateLimit(limiter, 2, time.Second))
	assert.Equal(t, http.StatusOK, get(r, http.MethodGet, "/ping").Code)
	assert.Equal(t, http.StatusOK, get(r, http.MethodGet, "/ping").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, http.MethodGet, "/ping").Code, "第三次请求应被限流")

	// 窗口过期后计数重置
	mr.FastForward(2 * time.Second)
	assert.Equal(t, http.StatusOK, get(r, http.MethodGet, "/ping").Code)
}

type failingLimiter struct{}

func (failingLimiter) CheckRateLimit(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func TestRateLimit_LimiterError(t *testing.T) {
	r := newEngine(middleware.RateLimit(failingLimiter{}, 10, time.Second))
	w := get(r, http.MethodGet, "/ping")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Rate limiting error"}`, w.Body.String())
}

func TestRateLimit_PanicsOnBadArgs(t *testing.T) {
	assert.Panics(t, func() { middleware.RateLimit(nil, 1, time.Second) })
	assert.Panics(t, func() { middleware.RateLimit(failingLimiter{}, 0, time.Second) })
	assert.Panics(t, func() { middleware.RateLimit(failingLimiter{}, 1, 0) })
}

func TestCORS(t *testing.T) {
	r := newEngine(middleware.CORS(""))
	w := get(r, http.MethodGet, "/ping")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"), "通配来源不应允许凭证")

	r = newEngine(middleware.CORS("http://localhost:3000"))
	w = get(r, http.MethodOptions, "/ping")
	assert.Equal(t, http.StatusNoContent, w.Code, "预检请求应直接返回 204")
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	r := newEngine(middleware.Metrics())
	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/rooms/:roomId", "200")
	before := testutil.ToFloat64(counter)

	require.Equal(t, http.StatusOK, get(r, http.MethodGet, "/api/rooms/abc").Code)
	require.Equal(t, http.StatusOK, get(r, http.MethodGet, "/api/rooms/xyz").Code)
	assert.Equal(t, before+2, testutil.ToFloat64(counter), "不同房间应计入同一个路由标签")

	unmatched := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before = testutil.ToFloat64(unmatched)
	get(r, http.MethodGet, "/nope")
	assert.Equal(t, before+1, testutil.ToFloat64(unmatched))
}
