package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"collaborative-whiteboard/internal/domain"
	"collaborative-whiteboard/internal/infra/memory"
	"collaborative-whiteboard/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedStore 让指定房间的 ReadAll 阻塞到 gate 关闭
type gatedStore struct {
	*memory.Store
	room    string
	entered chan struct{}
	once    sync.Once
	gate    chan struct{}
}

func newGatedStore(room string) *gatedStore {
	return &gatedStore{
		Store:   memory.NewStore(),
		room:    room,
		entered: make(chan struct{}),
		gate:    make(chan struct{}),
	}
}

func (s *gatedStore) ReadAll(ctx context.Context, roomID string) ([]domain.DrawingCommand, error) {
	if roomID == s.room {
		s.once.Do(func() { close(s.entered) })
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.Store.ReadAll(ctx, roomID)
}

func TestRegistry_GetOrCreateIsIdempotent(t *testing.T) {
	h := newTestHub(t, memory.NewStore(), nil)
	g := h.Registry()

	r1, err := g.GetOrCreate("R")
	require.NoError(t, err)
	r2, err := g.GetOrCreate("R")
	require.NoError(t, err)
	assert.Same(t, r1, r2)
	assert.Equal(t, 1, g.Len())

	assert.False(t, g.Release("R"), "有进行中的 join 时不能移除")
	g.Unpin(r1)
	g.Unpin(r2)
	assert.True(t, g.Release("R"))
	_, ok := g.Get("R")
	assert.False(t, ok)
	assert.False(t, g.Release("R"))
}

func TestRegistry_EvictsEmptyRoomAndRecreates(t *testing.T) {
	store := memory.NewStore()
	h := newTestHub(t, store, nil)

	join(t, h, &recorder{}, "R", "alice", "Alice")
	_, ok := h.Draw("R", "alice", StrokeInput{Points: pts(1, 1)})
	require.True(t, ok)
	require.True(t, h.Leave("R", "alice"))
	assert.Equal(t, 0, h.Registry().Len())

	// 新房间等待旧写入器排空后读取日志，快照中应包含之前的笔画
	p := &recorder{}
	join(t, h, p, "R", "bob", "Bob")
	assert.Len(t, p.snapshot(t).DrawingData, 1)
}

func TestRegistry_ConcurrentJoinsAcrossRooms(t *testing.T) {
	h := newTestHub(t, memory.NewStore(), nil)
	rooms := []string{"A", "B", "C", "D"}

	var wg sync.WaitGroup
	for _, roomID := range rooms {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(roomID string, i int) {
				defer wg.Done()
				_, err := h.Join(context.Background(), &recorder{}, JoinRequest{RoomID: roomID})
				assert.NoError(t, err)
			}(roomID, i)
		}
	}
	wg.Wait()

	assert.Equal(t, rooms, h.ActiveRoomIDs())
	for _, roomID := range rooms {
		assert.Equal(t, 10, h.ParticipantCount(roomID))
	}
}

func TestRegistry_SlowJoinDoesNotStallOtherRooms(t *testing.T) {
	store := newGatedStore("A")
	h := newTestHub(t, store, nil)

	joinedA := make(chan error, 1)
	go func() {
		_, err := h.Join(context.Background(), &recorder{}, JoinRequest{RoomID: "A", UserID: "alice"})
		joinedA <- err
	}()
	select {
	case <-store.entered:
	case <-time.After(time.Second):
		t.Fatal("房间 A 的 join 没有开始读取日志")
	}

	// Release 会等待 A 的房间锁
	released := make(chan bool, 1)
	go func() { released <- h.Registry().Release("A") }()
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := h.Join(context.Background(), &recorder{}, JoinRequest{RoomID: "B", UserID: "bob"})
		assert.NoError(t, err)
		assert.Equal(t, 2, h.Registry().Len())
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("房间 A 的慢 join 阻塞了房间 B")
	}

	close(store.gate)
	require.NoError(t, <-joinedA)
	assert.False(t, <-released, "A 仍有成员，不应被移除")
	assert.Equal(t, 1, h.ParticipantCount("A"))
}

func TestRegistry_CloseAllResetsGauges(t *testing.T) {
	h := newTestHub(t, memory.NewStore(), nil)
	before := testutil.ToFloat64(metrics.LiveParticipants)
	join(t, h, &recorder{}, "A", "alice", "Alice")
	join(t, h, &recorder{}, "A", "bob", "Bob")
	join(t, h, &recorder{}, "B", "carol", "Carol")
	require.Equal(t, before+3, testutil.ToFloat64(metrics.LiveParticipants))

	flush(t, h)

	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.LiveRooms), "关闭后房间数应归零")
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.LiveParticipants), "关闭后参与者数应归零")
}
