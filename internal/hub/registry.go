package hub

import (
	"context"
	"sync"

	"collaborative-whiteboard/internal/metrics"
)

// Registry 将房间 ID 映射到房间实时状态。
// 房间在第一次 join 时创建，在最后一个参与者离开且没有进行中的 join 时移除。
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
	// draining 记录已被移除但日志写入器还没有排空的房间，
	// 同 ID 的新房间会等它排空后再处理自己的日志任务
	draining map[string]<-chan struct{}
	newRoom  func(roomID string, prev <-chan struct{}) *Room
	closed   bool
}

// NewRegistry 创建注册表。newRoom 负责构造新的房间状态。
func NewRegistry(newRoom func(roomID string, prev <-chan struct{}) *Room) *Registry {
	if newRoom == nil {
		panic("room constructor cannot be nil for Registry")
	}
	return &Registry{
		rooms:    make(map[string]*Room),
		draining: make(map[string]<-chan struct{}),
		newRoom:  newRoom,
	}
}

// GetOrCreate 返回房间，不存在时创建。幂等。
// 返回的房间被标记为有一个进行中的 join，调用者必须调用 Unpin。
func (g *Registry) GetOrCreate(roomID string) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrHubClosed
	}
	r, ok := g.rooms[roomID]
	if !ok {
		var prev <-chan struct{}
		if done, draining := g.draining[roomID]; draining {
			select {
			case <-done:
			default:
				prev = done
			}
			delete(g.draining, roomID)
		}
		r = g.newRoom(roomID, prev)
		g.rooms[roomID] = r
		metrics.LiveRooms.Set(float64(len(g.rooms)))
	}
	r.pending++
	return r, nil
}

// Unpin 结束一次进行中的 join。
func (g *Registry) Unpin(r *Room) {
	g.mu.Lock()
	if r.pending > 0 {
		r.pending--
	}
	g.mu.Unlock()
}

// Get 返回房间，不存在时第二个返回值为 false。
func (g *Registry) Get(roomID string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[roomID]
	return r, ok
}

// Release 在房间没有参与者且没有进行中的 join 时将其移除。返回是否移除。
// 锁顺序: Room.mu -> Registry.mu。Registry.mu 从不在等待 Room.mu 时持有，
// 一个房间的慢 join 只会阻塞该房间的 Release。
func (g *Registry) Release(roomID string) bool {
	r, ok := g.Get(roomID)
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || len(r.members) > 0 {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	// 等待 r.mu 期间房间可能已被移除或替换
	if cur, ok := g.rooms[roomID]; !ok || cur != r || r.pending > 0 {
		return false
	}
	r.closed = true
	r.writer.close()
	delete(g.rooms, roomID)
	g.draining[roomID] = r.writer.done
	metrics.LiveRooms.Set(float64(len(g.rooms)))
	return true
}

// Len 返回当前房间数量。
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// RoomIDs 返回当前所有房间的 ID。
func (g *Registry) RoomIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.rooms))
	for id := range g.rooms {
		ids = append(ids, id)
	}
	return ids
}

// CloseAll 关闭所有房间的写入器，并等待它们排空或 ctx 结束。
// 之后的 GetOrCreate 会返回 ErrHubClosed。
func (g *Registry) CloseAll(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	rooms := make([]*Room, 0, len(g.rooms))
	for id, r := range g.rooms {
		rooms = append(rooms, r)
		delete(g.rooms, id)
	}
	waits := make([]<-chan struct{}, 0, len(rooms)+len(g.draining))
	for id, done := range g.draining {
		waits = append(waits, done)
		delete(g.draining, id)
	}
	metrics.LiveRooms.Set(0)
	g.mu.Unlock()

	// 在 Registry.mu 之外逐个加锁，保持 Room.mu -> Registry.mu 的顺序
	for _, r := range rooms {
		r.mu.Lock()
		r.closed = true
		r.writer.close()
		r.mu.Unlock()
		waits = append(waits, r.writer.done)
	}
	// 关闭后的房间不再接受 leave，参与者计数直接归零
	metrics.LiveParticipants.Set(0)

	for _, done := range waits {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
