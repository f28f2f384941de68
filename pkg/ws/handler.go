package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HandleUpgrade 升级 HTTP 连接并在当前 goroutine 处理该会话，连接断开后返回
//
// 返回 ErrTooManyConnections / ErrManagerClosed 时尚未写出响应，调用方需自行回复；
// 其他错误由 gorilla 在升级阶段写出 HTTP 错误响应。
func (m *Manager) HandleUpgrade(w http.ResponseWriter, r *http.Request, userID, username string) error {
	t := &upgradeTransport{
		upgrader:  m.upgrader,
		w:         w,
		r:         r,
		queueSize: m.config.SendQueueSize,
		writeWait: m.config.WriteWait,
	}

	sess, err := m.Connect(t, userID, username)
	if err != nil {
		return err
	}

	m.serve(t.socket, sess)
	return nil
}

// serve 读循环，结束后拆除会话
func (m *Manager) serve(sock *Socket, sess Session) {
	client := newClient(m, sess)

	err := sock.readLoop(m.config.MaxMessageSize, func(msgType int, data []byte) bool {
		if msgType != websocket.TextMessage {
			m.touch(sess.UserID, sess.SessionID)
			return true
		}
		return m.dispatch(client, data)
	})

	code, reason := websocket.CloseNormalClosure, "Connection closed"
	switch {
	case err == nil:
		code, reason = websocket.ClosePolicyViolation, "Too many invalid messages"
	case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		m.logger.Debug("websocket closed unexpectedly",
			zap.String("user_id", sess.UserID),
			zap.Error(err),
		)
	}

	m.release(sess.UserID, sess.SessionID, code, reason)
	_ = sock.Close(code, reason)
	<-sock.Done()
}

// dispatch 处理一帧入站消息，返回 false 表示应关闭连接
func (m *Manager) dispatch(c *Client, data []byte) bool {
	m.touch(c.userID, c.sessionID)

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		m.metrics.IncrementInvalidMessages()
		if c.invalidMsgCount.Add(1) > m.config.MaxInvalidMessages {
			return false
		}
		c.SendError("", CodeBadRequest, "invalid message format")
		return true
	}
	c.invalidMsgCount.Store(0)
	m.metrics.IncrementMessageCount(msg.Type)

	if err := m.router.Route(c, &msg); err != nil {
		m.replyError(c, &msg, err)
	}
	return true
}

// replyError 将处理器错误转换为 error 事件
func (m *Manager) replyError(c *Client, msg *Message, err error) {
	var ce *ClientError
	switch {
	case errors.As(err, &ce):
		c.SendError(msg.RequestID, ce.Code, ce.Message)
	case errors.Is(err, ErrHandlerNotFound):
		c.SendError(msg.RequestID, CodeNotFound, "unknown message type: "+msg.Type)
	case errors.Is(err, ErrMissingRoomID):
		c.SendError(msg.RequestID, CodeBadRequest, "room_id is required")
	case errors.Is(err, ErrRoomFull):
		c.SendError(msg.RequestID, CodeForbidden, "Room is full")
	default:
		m.logger.Error("handle message failed",
			zap.String("user_id", c.userID),
			zap.String("type", msg.Type),
			zap.Error(err),
		)
		c.SendError(msg.RequestID, CodeInternal, "internal error")
	}
}

// activeOnly 丢弃已被替换会话的残留消息
func activeOnly(c *Client, _ *Message, next NextFunc) error {
	if !c.Active() {
		return nil
	}
	return next()
}

// JoinResult join_room 应答
type JoinResult struct {
	RoomID string `json:"room_id"`
	Joined bool   `json:"joined"`
}

// registerBuiltins 注册内置的房间与输入状态处理器
func (m *Manager) registerBuiltins() {
	m.router.Use(activeOnly)

	_ = Handle[RoomRequest, JoinResult](m.router, TypeJoinRoom, func(c *Client, req *RoomRequest) (*JoinResult, error) {
		roomID := strings.TrimSpace(req.RoomID)
		if roomID == "" {
			return nil, ErrMissingRoomID
		}
		var maxMembers int
		if m.config.RoomGuard != nil {
			limit, err := m.config.RoomGuard(c.userID, roomID)
			if err != nil {
				var ce *ClientError
				if errors.As(err, &ce) {
					return nil, ce
				}
				return nil, NewClientError(CodeForbidden, err.Error())
			}
			maxMembers = limit
		}
		joined, err := m.JoinRoomLimited(c.userID, roomID, maxMembers)
		if err != nil {
			return nil, err
		}
		return &JoinResult{RoomID: roomID, Joined: joined}, nil
	})

	_ = Handle0[RoomRequest](m.router, TypeLeaveRoom, func(c *Client, req *RoomRequest) error {
		roomID := strings.TrimSpace(req.RoomID)
		if roomID == "" {
			return ErrMissingRoomID
		}
		m.LeaveRoom(c.userID, roomID)
		return nil
	})

	_ = Handle0[TypingRequest](m.router, TypeTyping, func(c *Client, req *TypingRequest) error {
		roomID := strings.TrimSpace(req.RoomID)
		if roomID == "" {
			return ErrMissingRoomID
		}
		m.HandleTyping(c.userID, roomID, req.IsTyping)
		return nil
	})

	_ = m.router.Register(TypePing, func(c *Client, msg *Message) error {
		c.Send(TypePong, Pong{Timestamp: FormatTime(m.now())})
		return nil
	})
}
