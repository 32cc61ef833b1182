package domain

import "time"

// MaxRoomIDLength 是房间标识符的最大字符数，与 room_id 列的长度一致
const MaxRoomIDLength = 191

// Room 表示一个持久化的画板房间记录。
// RoomID 是客户端可见的房间标识符，区分大小写。
type Room struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	RoomID       string    `gorm:"uniqueIndex;size:191;not null" json:"roomId"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	LastActivity time.Time `gorm:"index" json:"lastActivity"` // 最近一次被接受的绘图命令时间，用于清理不活跃房间
}
