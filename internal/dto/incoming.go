package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"collaborative-whiteboard/internal/domain"
)

// 客户端 -> 服务端 的消息类型
const (
	TypeJoin        = "join"
	TypeRename      = "rename"
	TypeLeave       = "leave"
	TypeCursor      = "cursor"
	TypeDrawPreview = "draw-preview"
	TypeDraw        = "draw"
	TypeClear       = "clear"
)

// 旧版客户端使用的事件名
var typeAliases = map[string]string{
	"join-room":        TypeJoin,
	"update-user-name": TypeRename,
	"leave-room":       TypeLeave,
	"cursor-move":      TypeCursor,
	"draw-move":        TypeDrawPreview,
	"clear-canvas":     TypeClear,
}

var (
	// ErrMalformed 表示消息无法解析或缺少必填字段
	ErrMalformed = errors.New("dto: malformed message")
	// ErrUnknownType 表示未知的消息类型
	ErrUnknownType = errors.New("dto: unknown message type")
)

// Envelope 是客户端发送的 JSON 文本帧的原始结构。
type Envelope struct {
	Type     string         `json:"type"`
	RoomID   string         `json:"roomId"`
	UserID   string         `json:"userId,omitempty"`
	UserName string         `json:"userName,omitempty"`
	Color    string         `json:"color,omitempty"`
	X        *float64       `json:"x,omitempty"`
	Y        *float64       `json:"y,omitempty"`
	Width    float64        `json:"width,omitempty"`
	Points   []domain.Point `json:"points,omitempty"`
	Tool     string         `json:"tool,omitempty"`
}

// Incoming 是所有入站消息的标签联合。
type Incoming interface {
	Room() string
	incoming()
}

type Join struct {
	RoomID   string
	UserID   string
	UserName string
	Color    string
}

type Rename struct {
	RoomID   string
	UserID   string
	UserName string
}

type Leave struct {
	RoomID string
	UserID string
}

type Cursor struct {
	RoomID string
	UserID string
	X      float64
	Y      float64
}

// Stroke 是 draw-preview 和 draw 共用的笔画字段。
type Stroke struct {
	RoomID string
	UserID string
	Color  string
	Width  float64
	Points []domain.Point
	Tool   string
}

type DrawPreview struct {
	Stroke
}

type Draw struct {
	Stroke
	UserName string
}

type Clear struct {
	RoomID string
}

func (m Join) Room() string        { return m.RoomID }
func (m Rename) Room() string      { return m.RoomID }
func (m Leave) Room() string       { return m.RoomID }
func (m Cursor) Room() string      { return m.RoomID }
func (m DrawPreview) Room() string { return m.RoomID }
func (m Draw) Room() string        { return m.RoomID }
func (m Clear) Room() string       { return m.RoomID }

func (Join) incoming()        {}
func (Rename) incoming()      {}
func (Leave) incoming()       {}
func (Cursor) incoming()      {}
func (DrawPreview) incoming() {}
func (Draw) incoming()        {}
func (Clear) incoming()       {}

// ParseIncoming 将一个 JSON 文本帧解析为具体的入站消息。
// 缺少 roomId、roomId 过长或缺少必填字段的消息返回 ErrMalformed。
func ParseIncoming(raw []byte) (Incoming, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	msgType := env.Type
	if alias, ok := typeAliases[msgType]; ok {
		msgType = alias
	}
	if env.RoomID == "" {
		return nil, fmt.Errorf("%w: missing roomId for %q", ErrMalformed, env.Type)
	}
	if utf8.RuneCountInString(env.RoomID) > domain.MaxRoomIDLength {
		return nil, fmt.Errorf("%w: roomId longer than %d characters", ErrMalformed, domain.MaxRoomIDLength)
	}

	switch msgType {
	case TypeJoin:
		return Join{RoomID: env.RoomID, UserID: env.UserID, UserName: env.UserName, Color: env.Color}, nil
	case TypeRename:
		return Rename{RoomID: env.RoomID, UserID: env.UserID, UserName: env.UserName}, nil
	case TypeLeave:
		return Leave{RoomID: env.RoomID, UserID: env.UserID}, nil
	case TypeCursor:
		if env.X == nil || env.Y == nil {
			return nil, fmt.Errorf("%w: cursor without coordinates", ErrMalformed)
		}
		return Cursor{RoomID: env.RoomID, UserID: env.UserID, X: *env.X, Y: *env.Y}, nil
	case TypeDrawPreview, TypeDraw:
		if len(env.Points) == 0 {
			return nil, fmt.Errorf("%w: %s without points", ErrMalformed, msgType)
		}
		stroke := Stroke{
			RoomID: env.RoomID,
			UserID: env.UserID,
			Color:  env.Color,
			Width:  env.Width,
			Points: env.Points,
			Tool:   env.Tool,
		}
		if msgType == TypeDraw {
			return Draw{Stroke: stroke, UserName: env.UserName}, nil
		}
		return DrawPreview{Stroke: stroke}, nil
	case TypeClear:
		return Clear{RoomID: env.RoomID}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}
