package repository

import (
	"context"
	"time"

	"collaborative-whiteboard/internal/domain"
)

// RoomRepository 定义了房间记录的存储和检索操作。
type RoomRepository interface {
	// FindByRoomID 根据房间标识符查找房间。
	// 如果房间不存在，返回 ErrRoomNotFound。
	FindByRoomID(ctx context.Context, roomID string) (*domain.Room, error)

	// Ensure 在房间不存在时创建它，并返回当前记录。
	Ensure(ctx context.Context, roomID string) (*domain.Room, error)

	// Exists 检查房间标识符是否已被使用。
	Exists(ctx context.Context, roomID string) (bool, error)

	// DeleteInactive 删除 LastActivity 早于 before 的房间及其日志，keep 中的房间除外。
	// 返回被删除的房间数量。
	DeleteInactive(ctx context.Context, before time.Time, keep []string) (int64, error)

	// CountActive 统计 LastActivity 晚于 since 的房间数量。
	CountActive(ctx context.Context, since time.Time) (int64, error)
}
