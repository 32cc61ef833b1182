package hub

import (
	"context"
	"sync"
	"time"

	"collaborative-whiteboard/internal/dto"
	"collaborative-whiteboard/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一个 WebSocket 连接。读循环把文本帧交给 Session，写循环把 send 中的消息写回连接。
type Client struct {
	id      string          // 连接 ID，仅用于日志
	conn    *websocket.Conn // WebSocket 连接
	send    chan []byte     // 用于向此客户端发送消息的缓冲通道
	session *Session

	mu     sync.Mutex // 保护 send 的关闭
	closed bool
}

// NewClient 创建一个新的 Client 实例
func NewClient(h *Hub, conn *websocket.Conn) *Client {
	if conn == nil {
		panic("websocket.Conn cannot be nil for Client")
	}
	c := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	c.session = NewSession(h, c)
	return c
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// Session 返回连接对应的会话。
func (c *Client) Session() *Session { return c.session }

// Deliver 实现 Peer: 非阻塞地将事件放入发送队列，队列满或已关闭时丢弃。
func (c *Client) Deliver(evt dto.Event) bool {
	payload, err := evt.Marshal()
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"conn_id": c.id, "event": evt.Type}).Error("Failed to marshal outgoing event")
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		logrus.WithFields(logrus.Fields{"conn_id": c.id, "event": evt.Type}).Warn("Client send channel full, dropping event")
		return false
	}
}

// logger 会获取 Session 的锁，不能在 Deliver 中调用。
func (c *Client) logger() *logrus.Entry {
	_, roomID, userID := c.session.State()
	return logrus.WithFields(logrus.Fields{"conn_id": c.id, "room_id": roomID, "user_id": userID})
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump 将消息从 WebSocket 连接交给 Session 处理。
// 它在自己的 goroutine 中运行，退出时视为连接断开。
func (c *Client) ReadPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		// 连接断开等同于隐式 leave，Session.Close 是幂等的
		c.session.Close()
		c.closeSend()
		c.conn.Close()
		logrus.WithField("conn_id", c.id).Info("readPump exited, session closed")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait)) // 收到 Pong 后重置读取超时
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := c.logger()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed normally or read error")
			}
			break
		}

		if messageType != websocket.TextMessage {
			metrics.EventsDropped.WithLabelValues("malformed").Inc()
			c.logger().Debugf("Received non-text message type: %d", messageType)
			continue
		}
		c.session.HandleRaw(ctx, message)
	}
}

// WritePump 将消息从 Client 的 send 通道泵送到 WebSocket 连接。
// 它在自己的 goroutine 中运行。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logrus.WithField("conn_id", c.id).Info("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 通道已关闭，发送关闭帧
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger().WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			// 定时发送 Ping 以保持连接活跃并检测断开
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger().WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}
