package hub

import (
	"context"

	"collaborative-whiteboard/internal/domain"
	"collaborative-whiteboard/internal/dto"
	"collaborative-whiteboard/internal/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// JoinRequest 是一次 join 的输入。UserID 为空时由服务端生成。
type JoinRequest struct {
	RoomID   string
	UserID   string
	UserName string
	Color    string
}

// JoinResult 是 join 成功后的结果。
type JoinResult struct {
	Participant domain.Participant
	// Existing 是加入时房间内的其他参与者
	Existing []domain.Participant
	// Log 是发送给加入者的完整日志快照
	Log []domain.DrawingCommand
}

// Join 将 peer 作为参与者加入房间，房间不存在时创建。
// 在返回前按顺序完成: 向加入者发送快照，向其他人广播 presence-joined，向所有人广播 user-count。
// 同一 userId 重复加入时，新连接接管原参与者并保留其颜色。
func (h *Hub) Join(ctx context.Context, peer Peer, req JoinRequest) (JoinResult, error) {
	if req.RoomID == "" {
		return JoinResult{}, ErrInvalidRoom
	}
	if peer == nil {
		return JoinResult{}, ErrNilPeer
	}
	if req.UserID == "" {
		req.UserID = uuid.NewString()
	}

	r, err := h.registry.GetOrCreate(req.RoomID)
	if err != nil {
		return JoinResult{}, err
	}
	defer func() {
		h.registry.Unpin(r)
		// join 失败回滚后房间可能为空
		h.registry.Release(r.id)
	}()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return JoinResult{}, ErrHubClosed
	}

	logger := h.log.WithFields(logrus.Fields{
		"room_id":   r.id,
		"user_id":   req.UserID,
		"operation": "Join",
	})

	now := h.now().UTC()
	prev, takeover := r.members[req.UserID]
	p := domain.Participant{
		UserID:   req.UserID,
		UserName: domain.NormalizeUserName(req.UserName, req.UserID),
		JoinedAt: now,
	}
	switch {
	case takeover:
		p.Color = prev.participant.Color
		p.JoinedAt = prev.participant.JoinedAt
	case req.Color != "":
		p.Color = req.Color
	default:
		p.Color = domain.PaletteColor(len(r.members))
	}
	r.members[req.UserID] = &member{participant: p, peer: peer}

	log, err := r.writer.readAll(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// 会话在快照读取期间断开，回滚插入
			if takeover {
				r.members[req.UserID] = prev
			} else {
				delete(r.members, req.UserID)
			}
			logger.WithError(ctxErr).Warn("Join cancelled while reading room log")
			return JoinResult{}, ctxErr
		}
		// 持久化失败不影响实时协作，快照日志为空
		logger.WithError(err).Error("Failed to read room log for snapshot, sending empty log")
		log = nil
	}

	existing := r.participantsLocked(req.UserID)
	if !peer.Deliver(dto.NewJoinedSnapshot(dto.JoinedSnapshot{
		RoomID:       r.id,
		Self:         p,
		Participants: existing,
		DrawingData:  log,
	})) {
		metrics.SlowConsumerDrops.Inc()
		logger.Warn("Joiner send queue full, snapshot dropped")
	}

	if takeover {
		logger.Info("Participant taken over by new session")
	} else {
		r.broadcastLocked(dto.NewPresenceJoined(p), req.UserID)
		metrics.LiveParticipants.Inc()
	}
	r.broadcastLocked(dto.NewUserCount(len(r.members)), "")

	r.lastActivity = now
	r.writer.touch()

	logger.WithField("participants", len(r.members)).Info("Participant joined room")
	return JoinResult{Participant: p, Existing: existing, Log: log}, nil
}

// Rename 修改参与者的显示名称。用户不在房间时忽略并返回 false。
func (h *Hub) Rename(roomID, userID, userName string) bool {
	return h.renameAs(nil, roomID, userID, userName)
}

func (h *Hub) renameAs(owner Peer, roomID, userID, userName string) bool {
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
	m.participant.UserName = domain.NormalizeUserName(userName, userID)
	r.broadcastLocked(dto.NewPresenceRenamed(m.participant), userID)
	return true
}

// Leave 将参与者移出房间。重复调用是安全的，只有第一次返回 true。
func (h *Hub) Leave(roomID, userID string) bool {
	return h.leaveAs(nil, roomID, userID)
}

// leaveAs 在 owner 非空时只移除由 owner 持有的参与者，
// 避免旧连接断开时移除已被新连接接管的参与者。
func (h *Hub) leaveAs(owner Peer, roomID, userID string) bool {
	r, ok := h.lookup(roomID)
	if !ok {
		return false
	}

	r.mu.Lock()
	m := r.activeMemberLocked(owner, userID)
	if m == nil {
		r.mu.Unlock()
		return false
	}
	delete(r.members, userID)
	metrics.LiveParticipants.Dec()
	r.broadcastLocked(dto.NewPresenceLeft(m.participant), "")
	r.broadcastLocked(dto.NewUserCount(len(r.members)), "")
	r.lastActivity = h.now().UTC()
	r.writer.touch()
	empty := len(r.members) == 0
	r.mu.Unlock()

	h.log.WithFields(logrus.Fields{
		"room_id":   roomID,
		"user_id":   userID,
		"operation": "Leave",
	}).Info("Participant left room")

	if empty && h.registry.Release(roomID) {
		h.log.WithField("room_id", roomID).Info("Room evicted from registry")
	}
	return true
}
