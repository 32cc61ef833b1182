package hub

import (
	"collaborative-whiteboard/internal/domain"
	"collaborative-whiteboard/internal/dto"
	"collaborative-whiteboard/internal/metrics"
)

// CursorMove 转发参与者的光标位置给房间内其他参与者。
// 距上次转发位置不超过 CursorThreshold 时不转发，返回 false。
// 过滤只看距离，不看时间，客户端自行让长时间不动的光标过期。光标位置从不持久化。
func (h *Hub) CursorMove(roomID, userID string, x, y float64) bool {
	return h.cursorMoveAs(nil, roomID, userID, x, y)
}

func (h *Hub) cursorMoveAs(owner Peer, roomID, userID string, x, y float64) bool {
	r, ok := h.lookup(roomID)
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.activeMemberLocked(owner, userID)
	if m == nil {
		return false
	}

	now := h.now().UTC()
	if last := m.participant.LastCursor; last != nil && last.DistanceTo(x, y) <= CursorThreshold {
		metrics.CursorSuppressed.Inc()
		return false
	}

	m.participant.LastCursor = &domain.CursorPosition{X: x, Y: y, At: now}
	r.broadcastLocked(dto.NewCursorRelay(m.participant, x, y, now), userID)
	return true
}
