package repository

import (
	"context"

	"collaborative-whiteboard/internal/domain"
)

// CommandLog 是房间绘图日志的持久化网关。
// 实现是尽力而为的，调用者只记录错误，不会把错误返回给客户端。
type CommandLog interface {
	// Append 将一条完整的命令追加到房间日志末尾。
	// 必要时创建房间记录，并刷新其活跃时间。
	Append(ctx context.Context, roomID string, cmd domain.DrawingCommand) error

	// ReadAll 按追加顺序返回房间的全部命令。
	// 房间不存在时返回空切片和 nil 错误。
	ReadAll(ctx context.Context, roomID string) ([]domain.DrawingCommand, error)

	// Clear 将房间日志截断为空。
	Clear(ctx context.Context, roomID string) error

	// Touch 刷新房间的活跃时间戳。
	Touch(ctx context.Context, roomID string) error
}
