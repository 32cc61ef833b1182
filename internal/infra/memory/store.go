package memory

import (
	"context"
	"sync"
	"time"

	"collaborative-whiteboard/internal/domain"
	"collaborative-whiteboard/internal/repository"
)

type roomEntry struct {
	room     domain.Room
	commands []domain.DrawingCommand
}

// Store 是进程内的 CommandLog 和 RoomRepository 实现。
// 用于本地开发和测试，进程退出后数据丢失。
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*roomEntry
	seq   uint
	now   func() time.Time
}

// NewStore 创建一个空的内存存储。
func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*roomEntry),
		now:   time.Now,
	}
}

// entryLocked 返回房间条目，不存在时创建。调用者必须持有写锁。
func (s *Store) entryLocked(roomID string) *roomEntry {
	e, ok := s.rooms[roomID]
	if !ok {
		now := s.now().UTC()
		s.seq++
		e = &roomEntry{room: domain.Room{ID: s.seq, RoomID: roomID, CreatedAt: now, LastActivity: now}}
		s.rooms[roomID] = e
	}
	return e
}

func (s *Store) Append(ctx context.Context, roomID string, cmd domain.DrawingCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(roomID)
	s.seq++
	cmd.Seq = s.seq
	cmd.RoomID = roomID
	e.commands = append(e.commands, cmd)
	e.room.LastActivity = s.now().UTC()
	return nil
}

func (s *Store) ReadAll(ctx context.Context, roomID string) ([]domain.DrawingCommand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rooms[roomID]
	if !ok {
		return []domain.DrawingCommand{}, nil
	}
	// 返回副本，避免调用者与后续追加产生数据竞争
	out := make([]domain.DrawingCommand, len(e.commands))
	copy(out, e.commands)
	return out, nil
}

func (s *Store) Clear(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(roomID)
	e.commands = nil
	e.room.LastActivity = s.now().UTC()
	return nil
}

func (s *Store) Touch(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entryLocked(roomID).room.LastActivity = s.now().UTC()
	return nil
}

func (s *Store) FindByRoomID(ctx context.Context, roomID string) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rooms[roomID]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	room := e.room
	return &room, nil
}

func (s *Store) Ensure(ctx context.Context, roomID string) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := s.entryLocked(roomID).room
	return &room, nil
}

func (s *Store) Exists(ctx context.Context, roomID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[roomID]
	return ok, nil
}

func (s *Store) DeleteInactive(ctx context.Context, before time.Time, keep []string) (int64, error) {
	skip := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		skip[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, e := range s.rooms {
		if _, ok := skip[id]; ok {
			continue
		}
		if e.room.LastActivity.Before(before) {
			delete(s.rooms, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) CountActive(ctx context.Context, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, e := range s.rooms {
		if e.room.LastActivity.After(since) {
			count++
		}
	}
	return count, nil
}
