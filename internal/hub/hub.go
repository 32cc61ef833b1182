package hub

import (
	"context"
	"errors"
	"sort"
	"time"

	"collaborative-whiteboard/internal/dto"
	"collaborative-whiteboard/internal/repository"

	"github.com/sirupsen/logrus"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. 一次 draw 可能携带上千个点
	maxMessageSize = 512 * 1024

	// 每个客户端发送队列的缓冲大小
	sendBufferSize = 256
)

const (
	// CursorThreshold 光标移动距离不超过该值时不转发
	CursorThreshold = 5.0

	defaultPersistTimeout = 5 * time.Second
)

var (
	ErrInvalidRoom  = errors.New("hub: room id is required")
	ErrNilPeer      = errors.New("hub: peer cannot be nil")
	ErrHubClosed    = errors.New("hub: closed")
	errWriterClosed = errors.New("hub: log writer closed")
)

// Peer 是房间内事件的接收方，通常是一个会话的发送队列。
// Deliver 不能阻塞；返回 false 表示事件被丢弃。
type Peer interface {
	Deliver(evt dto.Event) bool
}

// Options 配置 Hub 的可选参数。
type Options struct {
	// PersistTimeout 是每次持久化调用的超时时间
	PersistTimeout time.Duration
	// Now 用于测试中替换时钟
	Now func() time.Time
	// Logger 为空时使用 logrus 标准 logger
	Logger *logrus.Logger
}

// Hub 是实时同步引擎的入口: 房间注册表、在场管理、光标转发和绘图转发。
type Hub struct {
	registry       *Registry
	store          repository.CommandLog
	now            func() time.Time
	persistTimeout time.Duration
	log            *logrus.Entry
}

// NewHub 创建 Hub。store 是房间日志的持久化网关。
func NewHub(store repository.CommandLog, opts Options) *Hub {
	if store == nil {
		panic("CommandLog cannot be nil for Hub")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = defaultPersistTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	h := &Hub{
		store:          store,
		now:            opts.Now,
		persistTimeout: opts.PersistTimeout,
		log:            logger.WithField("component", "hub"),
	}
	h.registry = NewRegistry(h.newRoom)
	return h
}

func (h *Hub) newRoom(roomID string, prev <-chan struct{}) *Room {
	now := h.now().UTC()
	return &Room{
		id:           roomID,
		members:      make(map[string]*member),
		createdAt:    now,
		lastActivity: now,
		writer:       newLogWriter(roomID, h.store, h.persistTimeout, prev, h.log),
	}
}

// Registry 返回 Hub 持有的房间注册表。
func (h *Hub) Registry() *Registry {
	return h.registry
}

// ActiveRoomIDs 返回当前有参与者的房间 ID，按字典序排列。
func (h *Hub) ActiveRoomIDs() []string {
	ids := h.registry.RoomIDs()
	sort.Strings(ids)
	return ids
}

// ParticipantCount 返回房间当前的参与者数量，房间不存在时返回 0。
func (h *Hub) ParticipantCount(roomID string) int {
	r, ok := h.registry.Get(roomID)
	if !ok {
		return 0
	}
	return r.Count()
}

// Close 关闭所有房间的日志写入器并等待剩余的持久化任务完成。
func (h *Hub) Close(ctx context.Context) error {
	h.log.Info("Hub is shutting down, flushing room logs...")
	return h.registry.CloseAll(ctx)
}

// lookup 返回一个仍在注册表中的房间。调用者随后需要在锁内检查 closed。
func (h *Hub) lookup(roomID string) (*Room, bool) {
	if roomID == "" {
		return nil, false
	}
	return h.registry.Get(roomID)
}
