package hub

import (
	"testing"
	"time"

	"collaborative-whiteboard/internal/dto"
	"collaborative-whiteboard/internal/infra/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorMove_Suppression(t *testing.T) {
	clock := newFakeClock()
	h := newTestHub(t, memory.NewStore(), clock)
	a, b := &recorder{}, &recorder{}
	join(t, h, a, "R", "alice", "Alice")
	join(t, h, b, "R", "bob", "Bob")

	assert.True(t, h.CursorMove("R", "alice", 0, 0), "第一次移动总是转发")
	clock.Advance(10 * time.Millisecond)
	assert.False(t, h.CursorMove("R", "alice", 2, 2), "距离不超过阈值时不转发")
	clock.Advance(10 * time.Millisecond)
	assert.False(t, h.CursorMove("R", "alice", 3, 4), "距离恰好为 5 时不转发")
	clock.Advance(10 * time.Millisecond)
	assert.True(t, h.CursorMove("R", "alice", 10, 10))

	relays := b.ofType(dto.EventCursorRelay)
	require.Len(t, relays, 2)
	first := relays[0].Data.(dto.CursorRelay)
	assert.Equal(t, "alice", first.UserID)
	assert.Equal(t, "Alice", first.UserName)
	assert.Equal(t, 0.0, first.X)
	assert.Equal(t, clock.Now().Add(-30*time.Millisecond).UnixMilli(), first.Timestamp)
	second := relays[1].Data.(dto.CursorRelay)
	assert.Equal(t, 10.0, second.X)
	assert.Equal(t, 10.0, second.Y)

	assert.Empty(t, a.ofType(dto.EventCursorRelay), "发送者不应收到自己的光标")
}

func TestCursorMove_SlowSmallStepsStaySuppressed(t *testing.T) {
	clock := newFakeClock()
	h := newTestHub(t, memory.NewStore(), clock)
	b := &recorder{}
	join(t, h, &recorder{}, "R", "alice", "Alice")
	join(t, h, b, "R", "bob", "Bob")

	require.True(t, h.CursorMove("R", "alice", 100, 100))
	// 每一步都在上次转发位置 5 个单位以内，间隔再长也不转发
	for _, step := range []float64{101, 102, 103} {
		clock.Advance(4 * time.Second)
		assert.False(t, h.CursorMove("R", "alice", step, step), "小幅移动不应因时间流逝而转发")
	}
	assert.Len(t, b.ofType(dto.EventCursorRelay), 1)

	clock.Advance(time.Second)
	assert.True(t, h.CursorMove("R", "alice", 104, 104), "距上次转发位置超过阈值时应转发")
	assert.Len(t, b.ofType(dto.EventCursorRelay), 2)
}

func TestCursorMove_IgnoresUnknownParticipant(t *testing.T) {
	h := newTestHub(t, memory.NewStore(), nil)
	b := &recorder{}
	join(t, h, b, "R", "bob", "Bob")

	assert.False(t, h.CursorMove("R", "ghost", 1, 1))
	assert.False(t, h.CursorMove("other", "bob", 1, 1))
	assert.Empty(t, b.ofType(dto.EventCursorRelay))
}
