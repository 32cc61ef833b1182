package hub

import (
	"sort"
	"sync"
	"time"

	"collaborative-whiteboard/internal/domain"
	"collaborative-whiteboard/internal/dto"
	"collaborative-whiteboard/internal/metrics"
)

type member struct {
	participant domain.Participant
	peer        Peer
}

// Room 是一个活跃房间的实时状态。
// members 及其余字段由 mu 保护，对同一房间的所有修改都在 mu 内串行执行。
type Room struct {
	id string

	mu           sync.Mutex
	members      map[string]*member
	createdAt    time.Time
	lastActivity time.Time
	lastStamp    time.Time
	closed       bool
	writer       *logWriter

	// pending 是正在进行中的 join 数量，由 Registry.mu 保护
	pending int
}

// RoomSnapshot 是房间在某一时刻的一致视图。
type RoomSnapshot struct {
	RoomID       string
	CreatedAt    time.Time
	LastActivity time.Time
	Participants []domain.Participant
}

func (r *Room) ID() string { return r.id }

// Count 返回当前参与者数量。
func (r *Room) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Snapshot 在锁内复制房间状态。
func (r *Room) Snapshot() RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomSnapshot{
		RoomID:       r.id,
		CreatedAt:    r.createdAt,
		LastActivity: r.lastActivity,
		Participants: r.participantsLocked(""),
	}
}

// participantsLocked 返回除 exclude 之外的参与者，按加入时间排序。
func (r *Room) participantsLocked(exclude string) []domain.Participant {
	out := make([]domain.Participant, 0, len(r.members))
	for id, m := range r.members {
		if id == exclude {
			continue
		}
		out = append(out, m.participant)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// broadcastLocked 将事件投递给除 except 之外的所有成员，返回成功投递的数量。
// except 为空时投递给所有成员。Peer.Deliver 是非阻塞的，因此可以在锁内调用。
func (r *Room) broadcastLocked(evt dto.Event, except string) int {
	delivered := 0
	for id, m := range r.members {
		if except != "" && id == except {
			continue
		}
		if m.peer.Deliver(evt) {
			delivered++
		} else {
			metrics.SlowConsumerDrops.Inc()
		}
	}
	if delivered > 0 {
		metrics.EventsRelayed.WithLabelValues(evt.Type).Add(float64(delivered))
	}
	return delivered
}

// nextStampLocked 返回单调不减的命令时间戳，精度为毫秒。
func (r *Room) nextStampLocked(now time.Time) time.Time {
	ts := now.UTC().Truncate(time.Millisecond)
	if !ts.After(r.lastStamp) {
		ts = r.lastStamp.Add(time.Millisecond)
	}
	r.lastStamp = ts
	return ts
}

// activeMemberLocked 返回房间内的成员，房间已关闭或用户不在房间时返回 nil。
// owner 非空时还要求该成员由 owner 持有。
func (r *Room) activeMemberLocked(owner Peer, userID string) *member {
	if r.closed || userID == "" {
		return nil
	}
	m := r.members[userID]
	if m == nil || (owner != nil && m.peer != owner) {
		return nil
	}
	return m
}
