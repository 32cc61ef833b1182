package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collaborative-whiteboard/internal/tasks"
)

// RoomCleaner 删除不活跃的已存储房间，实现者是 service.RoomService
type RoomCleaner interface {
	CleanupInactive(ctx context.Context, maxIdle time.Duration) (int64, error)
}

// RoomCleanupHandler 处理房间清理任务
type RoomCleanupHandler struct {
	cleaner        RoomCleaner
	defaultMaxIdle time.Duration
}

// NewRoomCleanupHandler 创建 Handler 实例，payload 未指定空闲上限时使用 defaultMaxIdle
func NewRoomCleanupHandler(cleaner RoomCleaner, defaultMaxIdle time.Duration) *RoomCleanupHandler {
	if cleaner == nil {
		panic("RoomCleaner cannot be nil for RoomCleanupHandler")
	}
	if defaultMaxIdle <= 0 {
		panic("defaultMaxIdle must be positive for RoomCleanupHandler")
	}
	return &RoomCleanupHandler{cleaner: cleaner, defaultMaxIdle: defaultMaxIdle}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *RoomCleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
		"max_retry": maxRetry,
	})
	logCtx.Info("Processing room cleanup task...")

	payload, err := tasks.ParseRoomCleanupPayload(t.Payload())
	if err != nil {
		logCtx.WithError(err).Error("Failed to parse task payload")
		// 格式错误的 payload 重试也不会成功
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	maxIdle := payload.MaxIdle()
	if maxIdle == 0 {
		maxIdle = h.defaultMaxIdle
	}

	deleted, err := h.cleaner.CleanupInactive(ctx, maxIdle)
	if err != nil {
		logCtx.WithError(err).Error("Room cleanup failed")
		return fmt.Errorf("room cleanup failed: %w", err) // 返回错误以触发重试
	}

	logCtx.WithFields(logrus.Fields{"deleted": deleted, "max_idle": maxIdle.String()}).Info("Room cleanup task completed")
	return nil
}
