package ws

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Socket 基于 gorilla/websocket 的 Conn 实现
//
// 写操作全部由 writePump 串行执行；Send 只做非阻塞入队。
type Socket struct {
	conn      *websocket.Conn
	send      chan []byte
	writeWait time.Duration

	closed     atomic.Bool
	closeOnce  sync.Once
	closeCh    chan struct{}
	closeFrame []byte
	writeDone  chan struct{}
}

// NewSocket 包装已升级的连接并启动写协程
func NewSocket(conn *websocket.Conn, queueSize int, writeWait time.Duration) *Socket {
	s := &Socket{
		conn:      conn,
		send:      make(chan []byte, queueSize),
		writeWait: writeWait,
		closeCh:   make(chan struct{}),
		writeDone: make(chan struct{}),
	}
	go s.writePump()
	return s
}

// Send 入队一帧文本消息（非阻塞）
func (s *Socket) Send(data []byte) error {
	if s.closed.Load() {
		return ErrConnectionClosed
	}

	select {
	case s.send <- data:
		return nil
	default:
		return ErrChannelFull
	}
}

// Close 发送关闭帧并关闭连接，已入队的消息会先写出
func (s *Socket) Close(code int, reason string) error {
	s.closeOnce.Do(func() {
		s.closeFrame = websocket.FormatCloseMessage(code, reason)
		s.closed.Store(true)
		close(s.closeCh)
	})
	return nil
}

// Done 写协程退出后关闭
func (s *Socket) Done() <-chan struct{} {
	return s.writeDone
}

// writePump 写入消息
func (s *Socket) writePump() {
	defer func() {
		_ = s.conn.Close()
		close(s.writeDone)
	}()

	for {
		select {
		case <-s.closeCh:
			s.flush()
			_ = s.conn.WriteControl(websocket.CloseMessage, s.closeFrame, time.Now().Add(s.writeWait))
			return

		case message := <-s.send:
			if err := s.writeMessage(message); err != nil {
				s.closed.Store(true)
				return
			}
		}
	}
}

// flush 写出关闭前已入队的消息
func (s *Socket) flush() {
	for {
		select {
		case message := <-s.send:
			if err := s.writeMessage(message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// writeMessage 写入消息
func (s *Socket) writeMessage(message []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, message)
}

// readLoop 读取入站帧直到出错或 onFrame 返回 false，ping 控制帧以 PingMessage 上报
func (s *Socket) readLoop(limit int64, onFrame func(msgType int, data []byte) bool) error {
	s.conn.SetReadLimit(limit)
	// 劫持后的连接仍带着 http.Server 的 ReadTimeout，存活由清理任务负责
	if err := s.conn.SetReadDeadline(time.Time{}); err != nil {
		return err
	}
	s.conn.SetPingHandler(func(appData string) error {
		onFrame(websocket.PingMessage, nil)
		err := s.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(s.writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		if !onFrame(msgType, data) {
			return nil
		}
	}
}

// upgradeTransport 将 HTTP 请求升级为 WebSocket 的 Transport
type upgradeTransport struct {
	upgrader  *websocket.Upgrader
	w         http.ResponseWriter
	r         *http.Request
	queueSize int
	writeWait time.Duration
	socket    *Socket
}

// Accept 实现 Transport
func (t *upgradeTransport) Accept() (Conn, error) {
	conn, err := t.upgrader.Upgrade(t.w, t.r, nil)
	if err != nil {
		return nil, err
	}
	t.socket = NewSocket(conn, t.queueSize, t.writeWait)
	return t.socket, nil
}
