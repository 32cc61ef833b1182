package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"collaborative-whiteboard/internal/domain"
)

// MigrateDB 使用传入的 GORM 连接迁移房间和绘图命令表。
// 返回错误以便调用者知道迁移是否成功。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	// Room.RoomID 和 DrawingCommand.ID 的唯一索引依赖 size 标签限制长度 (MySQL 索引长度限制)
	if err := db.AutoMigrate(&domain.Room{}); err != nil {
		logrus.Errorf("Failed to auto-migrate rooms table: %v", err)
		return fmt.Errorf("failed to migrate rooms table: %w", err)
	}
	if err := db.AutoMigrate(&domain.DrawingCommand{}); err != nil {
		logrus.Errorf("Failed to auto-migrate drawing commands table: %v", err)
		return fmt.Errorf("failed to migrate drawing commands table: %w", err)
	}
	if err := caseSensitiveRoomIDs(db); err != nil {
		logrus.Errorf("Failed to set binary collation on room_id columns: %v", err)
		return fmt.Errorf("failed to set room_id collation: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}

// binaryRoomIDType 是 MySQL 上 room_id 列的类型，默认的 _ci 排序会把只差大小写的房间合并
const binaryRoomIDType = "VARCHAR(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL"

// caseSensitiveRoomIDs 把 rooms 和 drawing_commands 的 room_id 列改为二进制排序。
// SQLite 默认使用 BINARY 排序，无需处理。
func caseSensitiveRoomIDs(db *gorm.DB) error {
	if db.Dialector.Name() != "mysql" {
		return nil
	}
	for _, model := range []interface{}{&domain.Room{}, &domain.DrawingCommand{}} {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return err
		}
		table := stmt.Schema.Table
		column := stmt.Schema.LookUpField("RoomID").DBName

		var collation string
		err := db.Raw(
			"SELECT COLLATION_NAME FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ?",
			table, column,
		).Scan(&collation).Error
		if err != nil {
			return fmt.Errorf("read collation of %s.%s: %w", table, column, err)
		}
		if collation == "utf8mb4_bin" {
			continue
		}
		if err := db.Exec(roomIDColumnDDL(table, column)).Error; err != nil {
			return fmt.Errorf("alter %s.%s: %w", table, column, err)
		}
		logrus.Infof("Column %s.%s switched to utf8mb4_bin (was %q)", table, column, collation)
	}
	return nil
}

func roomIDColumnDDL(table, column string) string {
	return fmt.Sprintf("ALTER TABLE `%s` MODIFY `%s` %s", table, column, binaryRoomIDType)
}
