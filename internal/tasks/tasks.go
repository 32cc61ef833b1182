package tasks

import (
	"encoding/json"
	"fmt"
	"time"
)

// 定义任务类型常量
const (
	TypeRoomCleanup = "room:cleanup" // 清理不活跃房间的周期任务
)

// RoomCleanupPayload 定义了房间清理任务的数据结构。
// MaxIdleSeconds 为 0 时由 worker 使用自己的默认值。
type RoomCleanupPayload struct {
	MaxIdleSeconds int64 `json:"max_idle_seconds"`
}

// MaxIdle 返回 payload 中的空闲上限
func (p RoomCleanupPayload) MaxIdle() time.Duration {
	return time.Duration(p.MaxIdleSeconds) * time.Second
}

// NewRoomCleanupTask 创建房间清理任务的 payload
func NewRoomCleanupTask(maxIdle time.Duration) ([]byte, error) {
	if maxIdle < 0 {
		return nil, fmt.Errorf("max idle cannot be negative: %v", maxIdle)
	}
	return json.Marshal(RoomCleanupPayload{MaxIdleSeconds: int64(maxIdle / time.Second)})
}

// ParseRoomCleanupPayload 解析任务 payload，空 payload 视为使用默认值
func ParseRoomCleanupPayload(raw []byte) (RoomCleanupPayload, error) {
	var p RoomCleanupPayload
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal room cleanup payload: %w", err)
	}
	if p.MaxIdleSeconds < 0 {
		return p, fmt.Errorf("max_idle_seconds cannot be negative: %d", p.MaxIdleSeconds)
	}
	return p, nil
}
