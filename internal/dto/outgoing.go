package dto

import (
	"encoding/json"
	"time"

	"collaborative-whiteboard/internal/domain"
)

// 服务端 -> 客户端 的事件类型
const (
	EventJoinedSnapshot   = "joined-snapshot"
	EventPresenceJoined   = "presence-joined"
	EventPresenceLeft     = "presence-left"
	EventPresenceRenamed  = "presence-renamed"
	EventUserCount        = "user-count"
	EventCursorRelay      = "cursor-relay"
	EventDrawPreviewRelay = "draw-preview-relay"
	EventDrawRelay        = "draw-relay"
	EventCleared          = "cleared"
)

// Event 是发送给客户端的一条消息。
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Marshal 序列化为 JSON 文本帧。
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// JoinedSnapshot 只发送给刚加入的会话。
type JoinedSnapshot struct {
	RoomID       string                  `json:"roomId"`
	Self         domain.Participant      `json:"self"`
	Participants []domain.Participant    `json:"participants"`
	DrawingData  []domain.DrawingCommand `json:"drawingData"`
}

// CursorRelay 是转发给同房间其他参与者的光标位置。
type CursorRelay struct {
	UserID    string  `json:"userId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	UserName  string  `json:"userName"`
	Color     string  `json:"color"`
	Timestamp int64   `json:"timestamp"` // Unix 毫秒
}

// StrokeRelay 与客户端发送的 draw / draw-preview 形状一致。
type StrokeRelay struct {
	ID        string         `json:"id,omitempty"`
	RoomID    string         `json:"roomId"`
	UserID    string         `json:"userId"`
	UserName  string         `json:"userName,omitempty"`
	Color     string         `json:"color,omitempty"`
	Width     float64        `json:"width,omitempty"`
	Points    []domain.Point `json:"points"`
	Tool      string         `json:"tool,omitempty"`
	Timestamp int64          `json:"timestamp,omitempty"`
}

func NewJoinedSnapshot(snapshot JoinedSnapshot) Event {
	if snapshot.Participants == nil {
		snapshot.Participants = []domain.Participant{}
	}
	if snapshot.DrawingData == nil {
		snapshot.DrawingData = []domain.DrawingCommand{}
	}
	return Event{Type: EventJoinedSnapshot, Data: snapshot}
}

func NewPresenceJoined(p domain.Participant) Event {
	return Event{Type: EventPresenceJoined, Data: p}
}

func NewPresenceLeft(p domain.Participant) Event {
	return Event{Type: EventPresenceLeft, Data: p}
}

func NewPresenceRenamed(p domain.Participant) Event {
	return Event{Type: EventPresenceRenamed, Data: p}
}

func NewUserCount(count int) Event {
	return Event{Type: EventUserCount, Data: count}
}

func NewCursorRelay(p domain.Participant, x, y float64, at time.Time) Event {
	return Event{Type: EventCursorRelay, Data: CursorRelay{
		UserID:    p.UserID,
		X:         x,
		Y:         y,
		UserName:  p.UserName,
		Color:     p.Color,
		Timestamp: at.UnixMilli(),
	}}
}

func NewDrawPreviewRelay(relay StrokeRelay) Event {
	return Event{Type: EventDrawPreviewRelay, Data: relay}
}

func NewDrawRelay(relay StrokeRelay) Event {
	return Event{Type: EventDrawRelay, Data: relay}
}

func NewCleared() Event {
	return Event{Type: EventCleared}
}
