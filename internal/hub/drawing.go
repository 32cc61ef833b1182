package hub

import (
	"collaborative-whiteboard/internal/domain"
	"collaborative-whiteboard/internal/dto"
	"collaborative-whiteboard/internal/metrics"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// StrokeInput 是客户端提交的笔画内容，内容本身不做校验。
type StrokeInput struct {
	Color    string
	Width    float64
	Points   []domain.Point
	Tool     string
	UserName string
}

func (s StrokeInput) relay(roomID, userID string) dto.StrokeRelay {
	return dto.StrokeRelay{
		RoomID:   roomID,
		UserID:   userID,
		UserName: s.UserName,
		Color:    s.Color,
		Width:    s.Width,
		Points:   s.Points,
		Tool:     s.Tool,
	}
}

// DrawPreview 转发进行中的笔画给其他参与者，不持久化。
func (h *Hub) DrawPreview(roomID, userID string, in StrokeInput) bool {
	return h.drawPreviewAs(nil, roomID, userID, in)
}

func (h *Hub) drawPreviewAs(owner Peer, roomID, userID string, in StrokeInput) bool {
	if len(in.Points) == 0 {
		return false
	}
	r, ok := h.lookup(roomID)
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeMemberLocked(owner, userID) == nil {
		metrics.EventsDropped.WithLabelValues("not_participant").Inc()
		return false
	}
	r.broadcastLocked(dto.NewDrawPreviewRelay(in.relay(roomID, userID)), userID)
	return true
}

// Draw 接受一条完成的笔画: 分配 ID 和时间戳，转发给其他参与者，然后异步追加到房间日志。
// 作者不是房间参与者时丢弃，返回 false。
func (h *Hub) Draw(roomID, userID string, in StrokeInput) (domain.DrawingCommand, bool) {
	return h.drawAs(nil, roomID, userID, in)
}

func (h *Hub) drawAs(owner Peer, roomID, userID string, in StrokeInput) (domain.DrawingCommand, bool) {
	if len(in.Points) == 0 {
		return domain.DrawingCommand{}, false
	}
	r, ok := h.lookup(roomID)
	if !ok {
		metrics.EventsDropped.WithLabelValues("not_participant").Inc()
		return domain.DrawingCommand{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.activeMemberLocked(owner, userID)
	if m == nil {
		metrics.EventsDropped.WithLabelValues("not_participant").Inc()
		return domain.DrawingCommand{}, false
	}

	userName := in.UserName
	if userName == "" {
		userName = m.participant.UserName
	}
	now := h.now()
	cmd := domain.DrawingCommand{
		ID:     ulid.Make().String(),
		RoomID: roomID,
		Kind:   domain.KindForTool(in.Tool),
		Data: domain.StrokeData{
			Color:    in.Color,
			Width:    in.Width,
			Points:   in.Points,
			UserID:   userID,
			UserName: userName,
		},
		Timestamp: r.nextStampLocked(now),
	}
	if err := cmd.Validate(); err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{
			"room_id": roomID,
			"user_id": userID,
		}).Debug("Dropping invalid drawing command")
		return domain.DrawingCommand{}, false
	}
	r.lastActivity = now.UTC()

	relay := in.relay(roomID, userID)
	relay.ID = cmd.ID
	relay.UserName = userName
	relay.Timestamp = cmd.Timestamp.UnixMilli()
	r.broadcastLocked(dto.NewDrawRelay(relay), userID)

	r.writer.append(cmd)
	return cmd, true
}

// Clear 清空房间画布: 向其他参与者广播 cleared，然后截断房间日志。
func (h *Hub) Clear(roomID, userID string) bool {
	return h.clearAs(nil, roomID, userID)
}

func (h *Hub) clearAs(owner Peer, roomID, userID string) bool {
	r, ok := h.lookup(roomID)
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeMemberLocked(owner, userID) == nil {
		metrics.EventsDropped.WithLabelValues("not_participant").Inc()
		return false
	}
	r.lastActivity = h.now().UTC()
	r.broadcastLocked(dto.NewCleared(), userID)
	r.writer.clear()

	h.log.WithFields(logrus.Fields{
		"room_id":   roomID,
		"user_id":   userID,
		"operation": "Clear",
	}).Info("Room canvas cleared")
	return true
}
