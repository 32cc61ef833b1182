package gormpersistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"collaborative-whiteboard/internal/domain"
)

// GormCommandRepository 是 CommandLog 接口的 GORM 实现。
// 命令按自增主键 seq 排序，seq 即房间日志的追加顺序。
type GormCommandRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormCommandRepository 创建 GormCommandRepository 实例
func NewGormCommandRepository(db *gorm.DB) *GormCommandRepository {
	if db == nil {
		panic("database connection cannot be nil for GormCommandRepository")
	}
	return &GormCommandRepository{db: db, now: time.Now}
}

// Append 在一个事务中创建或刷新房间记录并追加命令
func (r *GormCommandRepository) Append(ctx context.Context, roomID string, cmd domain.DrawingCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("gorm: append to room '%s': %w", roomID, err)
	}
	cmd.Seq = 0 // 由数据库分配
	cmd.RoomID = roomID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertRoom(tx, roomID, r.now().UTC()); err != nil {
			return err
		}
		return mapWriteError(tx.Create(&cmd).Error)
	})
	if err != nil {
		return fmt.Errorf("gorm: append command %s to room '%s': %w", cmd.ID, roomID, err)
	}
	return nil
}

// ReadAll 按追加顺序返回房间的全部命令，房间不存在时返回空切片
func (r *GormCommandRepository) ReadAll(ctx context.Context, roomID string) ([]domain.DrawingCommand, error) {
	cmds := []domain.DrawingCommand{}
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("seq asc"). // 按追加顺序排序很重要
		Find(&cmds).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: read commands for room '%s': %w", roomID, err)
	}
	return cmds, nil
}

// Clear 删除房间的全部命令并刷新房间活跃时间
func (r *GormCommandRepository) Clear(ctx context.Context, roomID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&domain.DrawingCommand{}).Error; err != nil {
			return err
		}
		return upsertRoom(tx, roomID, r.now().UTC())
	})
	if err != nil {
		return fmt.Errorf("gorm: clear commands for room '%s': %w", roomID, err)
	}
	return nil
}

// Touch 刷新房间活跃时间，房间不存在时创建
func (r *GormCommandRepository) Touch(ctx context.Context, roomID string) error {
	if err := upsertRoom(r.db.WithContext(ctx), roomID, r.now().UTC()); err != nil {
		return fmt.Errorf("gorm: touch room '%s': %w", roomID, err)
	}
	return nil
}
