package gormpersistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"collaborative-whiteboard/internal/domain"
	"collaborative-whiteboard/internal/repository"
)

// newTestDB 打开一个独立的内存 SQLite 数据库并迁移表结构
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存数据库按连接隔离，只保留一个连接
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&domain.Room{}, &domain.DrawingCommand{}))
	return db
}

func testCommand(id string, x float64) domain.DrawingCommand {
	return domain.DrawingCommand{
		ID:   id,
		Kind: domain.KindStroke,
		Data: domain.StrokeData{
			Color:    "#448AFF",
			Width:    2,
			Points:   []domain.Point{{X: x, Y: x + 1}},
			UserID:   "alice",
			UserName: "Alice",
		},
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestGormCommandRepository_AppendReadClear(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	commands := NewGormCommandRepository(db)
	rooms := NewGormRoomRepository(db)

	cmds, err := commands.ReadAll(ctx, "R")
	require.NoError(t, err)
	assert.NotNil(t, cmds)
	assert.Empty(t, cmds, "未知房间应返回空日志而不是错误")

	require.NoError(t, commands.Append(ctx, "R", testCommand("01A", 1)))
	require.NoError(t, commands.Append(ctx, "R", testCommand("01B", 2)))
	require.NoError(t, commands.Append(ctx, "other", testCommand("01C", 3)))

	cmds, err = commands.ReadAll(ctx, "R")
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, "01A", cmds[0].ID, "应按追加顺序返回")
	assert.Equal(t, "01B", cmds[1].ID)
	assert.Equal(t, "R", cmds[0].RoomID)
	assert.Equal(t, []domain.Point{{X: 2, Y: 3}}, cmds[1].Data.Points, "笔画数据应完整往返")
	assert.Equal(t, "Alice", cmds[1].Data.UserName)

	exists, err := rooms.Exists(ctx, "R")
	require.NoError(t, err)
	assert.True(t, exists, "追加命令时应创建房间记录")

	require.NoError(t, commands.Clear(ctx, "R"))
	cmds, err = commands.ReadAll(ctx, "R")
	require.NoError(t, err)
	assert.Empty(t, cmds, "清空后日志应为空")

	cmds, err = commands.ReadAll(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, cmds, 1, "清空不应影响其他房间")
}

func TestGormCommandRepository_RejectsInvalidCommand(t *testing.T) {
	commands := NewGormCommandRepository(newTestDB(t))
	err := commands.Append(context.Background(), "R", domain.DrawingCommand{ID: "x", Kind: domain.KindStroke})
	assert.Error(t, err)
}

func TestGormCommandRepository_DuplicateID(t *testing.T) {
	ctx := context.Background()
	commands := NewGormCommandRepository(newTestDB(t))
	require.NoError(t, commands.Append(ctx, "R", testCommand("dup", 1)))
	err := commands.Append(ctx, "R", testCommand("dup", 2))
	assert.Error(t, err, "重复的命令 ID 应返回错误")
}

func TestGormRepositories_RoomIDsAreCaseSensitive(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	commands := NewGormCommandRepository(db)
	rooms := NewGormRoomRepository(db)

	require.NoError(t, commands.Append(ctx, "room", testCommand("01L", 1)))
	require.NoError(t, commands.Append(ctx, "ROOM", testCommand("01U", 2)))
	require.NoError(t, commands.Append(ctx, "ROOM", testCommand("01V", 3)))

	lower, err := rooms.FindByRoomID(ctx, "room")
	require.NoError(t, err)
	upper, err := rooms.FindByRoomID(ctx, "ROOM")
	require.NoError(t, err)
	assert.NotEqual(t, lower.ID, upper.ID, "只差大小写的房间应是两条记录")

	cmds, err := commands.ReadAll(ctx, "room")
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, "01L", cmds[0].ID)

	require.NoError(t, commands.Clear(ctx, "room"))
	cmds, err = commands.ReadAll(ctx, "ROOM")
	require.NoError(t, err)
	assert.Len(t, cmds, 2, "清空 room 不应影响 ROOM")

	exists, err := rooms.Exists(ctx, "Room")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGormRoomRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rooms := NewGormRoomRepository(db)
	commands := NewGormCommandRepository(db)

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	now := func() time.Time { return clock }
	rooms.now = now
	commands.now = now

	_, err := rooms.FindByRoomID(ctx, "old")
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)

	room, err := rooms.Ensure(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, "old", room.RoomID)
	again, err := rooms.Ensure(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, room.ID, again.ID, "Ensure 应是幂等的")
	require.NoError(t, commands.Append(ctx, "old", testCommand("c1", 1)))
	_, err = rooms.Ensure(ctx, "live")
	require.NoError(t, err)

	clock = base.Add(48 * time.Hour)
	require.NoError(t, commands.Touch(ctx, "fresh"))

	active, err := rooms.CountActive(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), active)

	deleted, err := rooms.DeleteInactive(ctx, base.Add(24*time.Hour), []string{"live"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted, "只应删除不活跃且不在保留列表中的房间")

	exists, err := rooms.Exists(ctx, "old")
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = rooms.Exists(ctx, "live")
	require.NoError(t, err)
	assert.True(t, exists, "保留列表中的房间不应被删除")

	var remaining int64
	require.NoError(t, db.Model(&domain.DrawingCommand{}).Where("room_id = ?", "old").Count(&remaining).Error)
	assert.Zero(t, remaining, "删除房间时应一并删除其日志")
}
