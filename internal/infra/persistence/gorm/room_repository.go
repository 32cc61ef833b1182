package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"collaborative-whiteboard/internal/domain"
	"collaborative-whiteboard/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db, now: time.Now}
}

// FindByRoomID 实现根据房间标识符查找房间
func (r *GormRoomRepository) FindByRoomID(ctx context.Context, roomID string) (*domain.Room, error) {
	var roomData domain.Room
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&roomData).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by room_id '%s': %w", roomID, err)
	}
	return &roomData, nil
}

// Ensure 实现房间记录的幂等创建
func (r *GormRoomRepository) Ensure(ctx context.Context, roomID string) (*domain.Room, error) {
	if err := upsertRoom(r.db.WithContext(ctx), roomID, r.now().UTC()); err != nil {
		return nil, fmt.Errorf("gorm: ensure room '%s': %w", roomID, err)
	}
	return r.FindByRoomID(ctx, roomID)
}

// Exists 实现检查房间标识符是否存在
func (r *GormRoomRepository) Exists(ctx context.Context, roomID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).Where("room_id = ?", roomID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by room_id '%s': %w", roomID, err)
	}
	return count > 0, nil
}

// DeleteInactive 实现不活跃房间的清理，房间和其日志在同一事务中删除
func (r *GormRoomRepository) DeleteInactive(ctx context.Context, before time.Time, keep []string) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&domain.Room{}).Where("last_activity < ?", before.UTC())
		if len(keep) > 0 {
			query = query.Where("room_id NOT IN ?", keep)
		}
		var roomIDs []string
		if err := query.Pluck("room_id", &roomIDs).Error; err != nil {
			return err
		}
		if len(roomIDs) == 0 {
			return nil
		}
		if err := tx.Where("room_id IN ?", roomIDs).Delete(&domain.DrawingCommand{}).Error; err != nil {
			return err
		}
		result := tx.Where("room_id IN ?", roomIDs).Delete(&domain.Room{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("gorm: delete rooms inactive since %v: %w", before, err)
	}
	return deleted, nil
}

// CountActive 实现统计活跃房间数量
func (r *GormRoomRepository) CountActive(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).Where("last_activity > ?", since.UTC()).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count rooms active since %v: %w", since, err)
	}
	return count, nil
}

// upsertRoom 创建房间记录，已存在时只刷新 last_activity。
// MySQL 生成 ON DUPLICATE KEY UPDATE，SQLite 生成 ON CONFLICT ... DO UPDATE。
func upsertRoom(tx *gorm.DB, roomID string, now time.Time) error {
	room := domain.Room{RoomID: roomID, CreatedAt: now, LastActivity: now}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_activity": now}),
	}).Create(&room).Error
	return mapWriteError(err)
}

// mapWriteError 将驱动层的唯一约束错误映射为仓库错误
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return repository.ErrDuplicateEntry
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repository.ErrDuplicateEntry
	}
	return err
}
