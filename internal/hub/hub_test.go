package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"collaborative-whiteboard/internal/domain"
	"collaborative-whiteboard/internal/dto"
	"collaborative-whiteboard/internal/infra/memory"
	"collaborative-whiteboard/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder 是记录收到事件的测试 Peer
type recorder struct {
	mu     sync.Mutex
	events []dto.Event
	full   bool
}

func (p *recorder) Deliver(evt dto.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.full {
		return false
	}
	p.events = append(p.events, evt)
	return true
}

func (p *recorder) all() []dto.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]dto.Event(nil), p.events...)
}

func (p *recorder) types() []string {
	var out []string
	for _, e := range p.all() {
		out = append(out, e.Type)
	}
	return out
}

func (p *recorder) ofType(t string) []dto.Event {
	var out []dto.Event
	for _, e := range p.all() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (p *recorder) userCounts() []int {
	var out []int
	for _, e := range p.ofType(dto.EventUserCount) {
		out = append(out, e.Data.(int))
	}
	return out
}

func (p *recorder) snapshot(t *testing.T) dto.JoinedSnapshot {
	t.Helper()
	snaps := p.ofType(dto.EventJoinedSnapshot)
	require.Len(t, snaps, 1, "加入者应恰好收到一次快照")
	return snaps[0].Data.(dto.JoinedSnapshot)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newTestHub(t *testing.T, store repository.CommandLog, clock *fakeClock) *Hub {
	t.Helper()
	opts := Options{PersistTimeout: time.Second, Logger: quietLogger()}
	if clock != nil {
		opts.Now = clock.Now
	}
	h := NewHub(store, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.Close(ctx)
	})
	return h
}

func join(t *testing.T, h *Hub, peer Peer, roomID, userID, name string) JoinResult {
	t.Helper()
	res, err := h.Join(context.Background(), peer, JoinRequest{RoomID: roomID, UserID: userID, UserName: name})
	require.NoError(t, err)
	return res
}

func pts(xy ...float64) []domain.Point {
	var out []domain.Point
	for i := 0; i+1 < len(xy); i += 2 {
		out = append(out, domain.Point{X: xy[i], Y: xy[i+1]})
	}
	return out
}

// flush 关闭 Hub，等待所有异步持久化任务完成
func flush(t *testing.T, h *Hub) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.Close(ctx))
}

func TestNewHub_PanicsOnNilStore(t *testing.T) {
	assert.Panics(t, func() { NewHub(nil, Options{}) }, "store 为 nil 时应 panic")
}

func TestHub_CloseRejectsFurtherJoins(t *testing.T) {
	h := newTestHub(t, memory.NewStore(), nil)
	join(t, h, &recorder{}, "R", "alice", "Alice")

	flush(t, h)

	_, err := h.Join(context.Background(), &recorder{}, JoinRequest{RoomID: "R", UserID: "bob"})
	assert.ErrorIs(t, err, ErrHubClosed)
	assert.Empty(t, h.ActiveRoomIDs())
}

func TestHub_ActiveRoomIDsSorted(t *testing.T) {
	h := newTestHub(t, memory.NewStore(), nil)
	join(t, h, &recorder{}, "beta", "u1", "")
	join(t, h, &recorder{}, "alpha", "u2", "")

	assert.Equal(t, []string{"alpha", "beta"}, h.ActiveRoomIDs())
	assert.Equal(t, 1, h.ParticipantCount("alpha"))
	assert.Equal(t, 0, h.ParticipantCount("missing"))
}
