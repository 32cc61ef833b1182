package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"collaborative-whiteboard/internal/domain"
	"collaborative-whiteboard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RoomHandler 封装了与房间引导相关的 HTTP 处理逻辑
type RoomHandler struct {
	roomService  *service.RoomService
	activeWindow time.Duration
}

// NewRoomHandler 创建 RoomHandler 实例，activeWindow 是活跃房间统计的时间窗口
func NewRoomHandler(roomService *service.RoomService, activeWindow time.Duration) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	if activeWindow <= 0 {
		activeWindow = 30 * time.Minute
	}
	return &RoomHandler{roomService: roomService, activeWindow: activeWindow}
}

// JoinRoomRequest 定义加入房间请求的结构体，roomId 为空时服务端生成房间码
type JoinRoomRequest struct {
	RoomID string `json:"roomId" binding:"max=191"`
}

// JoinRoomResponse 定义加入房间成功的响应结构体
type JoinRoomResponse struct {
	RoomID      string                  `json:"roomId"`
	DrawingData []domain.DrawingCommand `json:"drawingData"`
}

// RoomResponse 是 GET /api/rooms/:roomId 的响应
type RoomResponse struct {
	RoomID       string                  `json:"roomId"`
	CreatedAt    *time.Time              `json:"createdAt,omitempty"`
	LastActivity *time.Time              `json:"lastActivity,omitempty"`
	DrawingData  []domain.DrawingCommand `json:"drawingData"`
}

// ActiveStatsResponse 是活跃房间统计的响应
type ActiveStatsResponse struct {
	ActiveRooms   int64  `json:"activeRooms"`
	LiveRooms     int    `json:"liveRooms"`
	WindowMinutes int64  `json:"windowMinutes"`
	Window        string `json:"window"`
}

// JoinRoom 处理 POST /api/rooms/join
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req JoinRoomRequest
	// 空请求体等价于 {}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		logrus.WithError(err).Warn("Handler.JoinRoom: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: roomId must be a string of at most 191 characters")
		return
	}
	logCtx := logrus.WithField("room_id", req.RoomID)

	details, err := h.roomService.JoinRoom(c.Request.Context(), req.RoomID)
	if err != nil {
		logCtx.WithError(err).Warn("Handler.JoinRoom: Failed to join room via service")
		HandleServiceError(c, err)
		return
	}

	logCtx.WithField("room_id", details.RoomID).Info("Handler.JoinRoom: Room ready")
	SuccessResponse(c, http.StatusOK, JoinRoomResponse{
		RoomID:      details.RoomID,
		DrawingData: nonNil(details.DrawingData),
	})
}

// GetRoom 处理 GET /api/rooms/:roomId，未知房间返回空日志
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID := c.Param("roomId")
	details, err := h.roomService.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Warn("Handler.GetRoom: Failed to load room via service")
		HandleServiceError(c, err)
		return
	}

	resp := RoomResponse{RoomID: details.RoomID, DrawingData: nonNil(details.DrawingData)}
	if !details.CreatedAt.IsZero() {
		created, last := details.CreatedAt, details.LastActivity
		resp.CreatedAt = &created
		resp.LastActivity = &last
	}
	SuccessResponse(c, http.StatusOK, resp)
}

// ActiveStats 处理 GET /api/rooms/stats/active
func (h *RoomHandler) ActiveStats(c *gin.Context) {
	stats, err := h.roomService.ActiveStats(c.Request.Context(), h.activeWindow)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, ActiveStatsResponse{
		ActiveRooms:   stats.Stored,
		LiveRooms:     stats.Live,
		WindowMinutes: int64(stats.Window / time.Minute),
		Window:        stats.Window.String(),
	})
}

func nonNil(cmds []domain.DrawingCommand) []domain.DrawingCommand {
	if cmds == nil {
		return []domain.DrawingCommand{}
	}
	return cmds
}
