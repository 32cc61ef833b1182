package hub

import (
	"context"
	"errors"
	"sync"

	"collaborative-whiteboard/internal/dto"
	"collaborative-whiteboard/internal/metrics"

	"github.com/sirupsen/logrus"
)

// SessionState 是连接生命周期的状态。
type SessionState int

const (
	StateUnjoined SessionState = iota
	StateJoined
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session 是单个连接的状态机，将入站消息分派到 Hub。
// Session 本身作为房间内的 Peer，事件经由它转发给 out。
type Session struct {
	hub *Hub
	out Peer

	mu     sync.Mutex
	state  SessionState
	roomID string
	userID string
}

// NewSession 创建一个未加入任何房间的会话。
func NewSession(h *Hub, out Peer) *Session {
	if h == nil {
		panic("Hub cannot be nil for Session")
	}
	if out == nil {
		panic("Peer cannot be nil for Session")
	}
	return &Session{hub: h, out: out, state: StateUnjoined}
}

// Deliver 实现 Peer。
func (s *Session) Deliver(evt dto.Event) bool {
	return s.out.Deliver(evt)
}

// State 返回当前状态以及已加入的房间和用户。
func (s *Session) State() (SessionState, string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.roomID, s.userID
}

// HandleRaw 解析并处理一个文本帧。格式错误的消息被丢弃，不回复错误。
func (s *Session) HandleRaw(ctx context.Context, raw []byte) {
	msg, err := dto.ParseIncoming(raw)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, dto.ErrUnknownType) {
			reason = "unknown_type"
		}
		metrics.EventsDropped.WithLabelValues(reason).Inc()
		s.hub.log.WithError(err).Debug("Dropping inbound message")
		return
	}
	s.Handle(ctx, msg)
}

// Handle 处理一条已解析的入站消息。
// 会话的所有消息都在调用方的读循环中串行处理。
func (s *Session) Handle(ctx context.Context, msg dto.Incoming) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDisconnected {
		return
	}
	if join, ok := msg.(dto.Join); ok {
		s.joinLocked(ctx, join)
		return
	}

	if s.state != StateJoined {
		metrics.EventsDropped.WithLabelValues("unjoined").Inc()
		return
	}
	if msg.Room() != s.roomID {
		metrics.EventsDropped.WithLabelValues("room_mismatch").Inc()
		return
	}

	switch m := msg.(type) {
	case dto.Rename:
		if s.ownsUser(m.UserID) {
			s.hub.renameAs(s, s.roomID, s.userID, m.UserName)
		}
	case dto.Leave:
		if s.ownsUser(m.UserID) {
			s.hub.leaveAs(s, s.roomID, s.userID)
			s.state = StateUnjoined
			s.roomID = ""
		}
	case dto.Cursor:
		if s.ownsUser(m.UserID) {
			s.hub.cursorMoveAs(s, s.roomID, s.userID, m.X, m.Y)
		}
	case dto.DrawPreview:
		if s.ownsUser(m.UserID) {
			s.hub.drawPreviewAs(s, s.roomID, s.userID, strokeInput(m.Stroke, ""))
		}
	case dto.Draw:
		if s.ownsUser(m.UserID) {
			s.hub.drawAs(s, s.roomID, s.userID, strokeInput(m.Stroke, m.UserName))
		}
	case dto.Clear:
		s.hub.clearAs(s, s.roomID, s.userID)
	}
}

// ownsUser 检查消息中的 userId 是否属于本会话，空 userId 视为本会话。
func (s *Session) ownsUser(userID string) bool {
	if userID == "" || userID == s.userID {
		return true
	}
	metrics.EventsDropped.WithLabelValues("not_participant").Inc()
	s.hub.log.WithFields(logrus.Fields{
		"room_id":         s.roomID,
		"session_user_id": s.userID,
		"message_user_id": userID,
	}).Debug("Dropping message authored as another user")
	return false
}

func (s *Session) joinLocked(ctx context.Context, m dto.Join) {
	userID := m.UserID
	if s.state == StateJoined {
		// 已在房间中再次 join 视为先离开当前房间
		s.hub.leaveAs(s, s.roomID, s.userID)
		s.state = StateUnjoined
		s.roomID = ""
	}
	if userID == "" {
		userID = s.userID
	}

	res, err := s.hub.Join(ctx, s, JoinRequest{
		RoomID:   m.RoomID,
		UserID:   userID,
		UserName: m.UserName,
		Color:    m.Color,
	})
	if err != nil {
		s.hub.log.WithError(err).WithField("room_id", m.RoomID).Warn("Session join failed")
		return
	}
	s.state = StateJoined
	s.roomID = m.RoomID
	s.userID = res.Participant.UserID
}

// Close 处理连接断开: 隐式离开当前房间。重复调用是安全的。
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return
	}
	if s.state == StateJoined {
		s.hub.leaveAs(s, s.roomID, s.userID)
	}
	s.state = StateDisconnected
	s.roomID = ""
}

func strokeInput(st dto.Stroke, userName string) StrokeInput {
	return StrokeInput{
		Color:    st.Color,
		Width:    st.Width,
		Points:   st.Points,
		Tool:     st.Tool,
		UserName: userName,
	}
}
