package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"collaborative-whiteboard/internal/domain"
	"collaborative-whiteboard/internal/metrics"
	"collaborative-whiteboard/internal/repository"

	"github.com/sirupsen/logrus"
)

const (
	MaxRoomIDLength = domain.MaxRoomIDLength

	roomCodeLetters     = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	roomCodeLength      = 6
	roomCodeMaxAttempts = 10
)

// LiveRooms 提供当前在注册表中的房间，实现者是 hub.Hub。
type LiveRooms interface {
	ActiveRoomIDs() []string
}

// RoomDetails 是房间记录和日志的组合视图。
// 房间尚未持久化时 CreatedAt/LastActivity 为零值。
type RoomDetails struct {
	RoomID       string
	CreatedAt    time.Time
	LastActivity time.Time
	DrawingData  []domain.DrawingCommand
}

// ActiveStats 是活跃房间统计。
type ActiveStats struct {
	// Stored 是窗口内有活动的已存储房间数量
	Stored int64
	// Live 是当前有参与者的房间数量
	Live   int
	Window time.Duration
}

// RoomService 负责房间记录相关的业务逻辑: 引导 HTTP 接口、活跃统计和不活跃房间清理。
type RoomService struct {
	roomRepo repository.RoomRepository
	commands repository.CommandLog
	live     LiveRooms
	now      func() time.Time
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(roomRepo repository.RoomRepository, commands repository.CommandLog, live LiveRooms) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	if commands == nil {
		panic("CommandLog cannot be nil for RoomService")
	}
	if live == nil {
		panic("LiveRooms cannot be nil for RoomService")
	}
	return &RoomService{
		roomRepo: roomRepo,
		commands: commands,
		live:     live,
		now:      time.Now,
	}
}

// GetRoom 返回房间记录和完整日志。未知房间不是错误，返回空日志。
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*RoomDetails, error) {
	if err := validateRoomID(roomID); err != nil {
		return nil, err
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "operation": "GetRoom"})

	details := &RoomDetails{RoomID: roomID}
	room, err := s.roomRepo.FindByRoomID(ctx, roomID)
	switch {
	case err == nil:
		details.CreatedAt = room.CreatedAt
		details.LastActivity = room.LastActivity
	case errors.Is(err, repository.ErrRoomNotFound):
		logCtx.Debug("Room not stored yet, returning empty log")
		details.DrawingData = []domain.DrawingCommand{}
		return details, nil
	default:
		logCtx.WithError(err).Error("Failed to find room")
		return nil, mapRepoError(err)
	}

	cmds, err := s.commands.ReadAll(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to read room log")
		return nil, mapRepoError(err)
	}
	details.DrawingData = cmds
	return details, nil
}

// JoinRoom 确保房间记录存在并返回其日志。roomID 为空时生成一个新的 6 位房间码。
func (s *RoomService) JoinRoom(ctx context.Context, roomID string) (*RoomDetails, error) {
	if roomID == "" {
		code, err := s.generateUniqueRoomCode(ctx)
		if err != nil {
			logrus.WithError(err).Error("Failed to generate unique room code")
			return nil, ErrRoomCodeFailed
		}
		roomID = code
	}
	if err := validateRoomID(roomID); err != nil {
		return nil, err
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "operation": "JoinRoom"})

	room, err := s.roomRepo.Ensure(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to ensure room record")
		return nil, mapRepoError(err)
	}
	cmds, err := s.commands.ReadAll(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to read room log")
		return nil, mapRepoError(err)
	}

	logCtx.WithField("commands", len(cmds)).Info("Room joined via HTTP")
	return &RoomDetails{
		RoomID:       room.RoomID,
		CreatedAt:    room.CreatedAt,
		LastActivity: room.LastActivity,
		DrawingData:  cmds,
	}, nil
}

// ActiveStats 统计 window 内有活动的已存储房间和当前在线房间。
func (s *RoomService) ActiveStats(ctx context.Context, window time.Duration) (ActiveStats, error) {
	stored, err := s.roomRepo.CountActive(ctx, s.now().UTC().Add(-window))
	if err != nil {
		logrus.WithError(err).Error("Failed to count active rooms")
		return ActiveStats{}, mapRepoError(err)
	}
	return ActiveStats{Stored: stored, Live: len(s.live.ActiveRoomIDs()), Window: window}, nil
}

// CleanupInactive 删除超过 maxIdle 没有活动的已存储房间，当前在线的房间除外。
func (s *RoomService) CleanupInactive(ctx context.Context, maxIdle time.Duration) (int64, error) {
	if maxIdle <= 0 {
		return 0, fmt.Errorf("cleanup: max idle must be positive, got %v", maxIdle)
	}
	before := s.now().UTC().Add(-maxIdle)
	keep := s.live.ActiveRoomIDs()
	logCtx := logrus.WithFields(logrus.Fields{
		"operation":  "CleanupInactive",
		"before":     before.Format(time.RFC3339),
		"live_rooms": len(keep),
	})

	deleted, err := s.roomRepo.DeleteInactive(ctx, before, keep)
	if err != nil {
		logCtx.WithError(err).Error("Failed to delete inactive rooms")
		return 0, mapRepoError(err)
	}
	metrics.RoomsCleaned.Add(float64(deleted))
	logCtx.WithField("deleted", deleted).Info("Inactive rooms cleaned up")
	return deleted, nil
}

// --- 私有辅助函数 ---

func validateRoomID(roomID string) error {
	if roomID == "" || utf8.RuneCountInString(roomID) > MaxRoomIDLength {
		return ErrInvalidRoomID
	}
	return nil
}

// generateUniqueRoomCode 生成一个尚未被使用的 6 位房间码
func (s *RoomService) generateUniqueRoomCode(ctx context.Context) (string, error) {
	b := make([]byte, roomCodeLength)
	for attempt := 0; attempt < roomCodeMaxAttempts; attempt++ {
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for i := range b {
			b[i] = roomCodeLetters[int(b[i])%len(roomCodeLetters)]
		}
		code := string(b)

		exists, err := s.roomRepo.Exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("database error checking room code: %w", err)
		}
		if !exists {
			logrus.WithField("room_id", code).Debugf("Generated unique room code after %d attempt(s).", attempt+1)
			return code, nil
		}
		logrus.WithField("room_id", code).Warnf("Generated room code already exists, retrying (attempt %d)...", attempt+1)
	}
	return "", fmt.Errorf("failed to generate a unique room code after %d attempts", roomCodeMaxAttempts)
}
