package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpHandler "collaborative-whiteboard/internal/handler/http"
	wsHandler "collaborative-whiteboard/internal/handler/websocket"
	"collaborative-whiteboard/internal/hub"
	"collaborative-whiteboard/internal/infra/memory"
	redisstate "collaborative-whiteboard/internal/infra/state/redis"
	"collaborative-whiteboard/internal/service"
)

func newTestRouter(t *testing.T, rateLimit int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := memory.NewStore()
	h := hub.NewHub(store, hub.Options{PersistTimeout: time.Second, Logger: log})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.Close(ctx)
	})
	roomService := service.NewRoomService(store, store, h)

	return NewRouter(RouterDeps{
		Log:             log,
		Rooms:           httpHandler.NewRoomHandler(roomService, 30*time.Minute),
		WebSocket:       wsHandler.NewWebSocketHandler(h, "*"),
		Limiter:         redisstate.NewRedisStateRepository(client, "test:"),
		RateLimitMax:    rateLimit,
		RateLimitWindow: time.Minute,
		AllowedOrigin:   "*",
	})
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_PingAndMetrics(t *testing.T) {
	r := newTestRouter(t, 100)

	w := serve(r, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "whiteboard_http_requests_total", "应暴露 HTTP 指标")
}

func TestRouter_JoinThenGetRoom(t *testing.T) {
	r := newTestRouter(t, 100)

	w := serve(r, http.MethodPost, "/api/rooms/join", `{}`)
	require.Equal(t, http.StatusOK, w.Code)
	var joined struct {
		RoomID string `json:"roomId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &joined))
	require.Len(t, joined.RoomID, 6)

	w = serve(r, http.MethodGet, "/api/rooms/"+joined.RoomID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var room map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	assert.Equal(t, joined.RoomID, room["roomId"])
	assert.Contains(t, room, "createdAt", "已存储的房间应返回创建时间")

	w = serve(r, http.MethodGet, "/api/rooms/stats/active", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"activeRooms":1`)
}

func TestRouter_RateLimitAppliesToAPIOnly(t *testing.T) {
	r := newTestRouter(t, 1)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/rooms/r1", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/api/rooms/r1", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ping", "").Code, "限流不应影响 /ping")
}
