package domain

import (
	"fmt"
	"time"
)

// CommandKind 是绘图命令的类型。
type CommandKind string

const (
	KindStroke CommandKind = "stroke"
	KindErase  CommandKind = "erase"
	KindClear  CommandKind = "clear" // clear 不会写入日志，只会截断日志
)

// ToolEraser 是客户端橡皮擦工具的名称。
const ToolEraser = "eraser"

// Point 是画布上的一个坐标点。
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokeData 是 stroke / erase 命令的具体数据。
type StrokeData struct {
	Color    string  `json:"color,omitempty"`
	Width    float64 `json:"width,omitempty"`
	Points   []Point `json:"points"`
	UserID   string  `json:"userId,omitempty"`
	UserName string  `json:"userName,omitempty"`
}

// DrawingCommand 是追加到房间日志中的一条不可变记录。
// Seq 由存储层按追加顺序分配，读取时按 Seq 升序返回。
type DrawingCommand struct {
	Seq       uint        `gorm:"primaryKey;autoIncrement" json:"-"`
	ID        string      `gorm:"size:26;uniqueIndex;not null" json:"id"`
	RoomID    string      `gorm:"size:191;index;not null" json:"-"`
	Kind      CommandKind `gorm:"size:16;not null" json:"type"`
	Data      StrokeData  `gorm:"serializer:json;type:text" json:"data"`
	Timestamp time.Time   `gorm:"not null" json:"timestamp"`
}

// KindForTool 根据客户端工具名决定命令类型。
func KindForTool(tool string) CommandKind {
	if tool == ToolEraser {
		return KindErase
	}
	return KindStroke
}

// Validate 检查命令是否可以作为一条完整的日志记录。
// 只检查结构，不检查坐标、颜色等内容。
func (c *DrawingCommand) Validate() error {
	switch c.Kind {
	case KindStroke, KindErase:
		if len(c.Data.Points) == 0 {
			return fmt.Errorf("command %s of kind %s has no points", c.ID, c.Kind)
		}
		return nil
	case KindClear:
		return fmt.Errorf("clear commands are not appended to the log")
	default:
		return fmt.Errorf("unknown command kind %q", c.Kind)
	}
}
