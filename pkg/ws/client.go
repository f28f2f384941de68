package ws

import "sync/atomic"

// Client 入站消息处理器看到的会话句柄
//
// 句柄绑定到具体的会话 ID：会话被替换或断开后，经由它的发送都会失败。
type Client struct {
	manager   *Manager
	userID    string
	username  string
	sessionID string

	invalidMsgCount atomic.Int32
}

func newClient(m *Manager, sess Session) *Client {
	return &Client{
		manager:   m,
		userID:    sess.UserID,
		username:  sess.Username,
		sessionID: sess.SessionID,
	}
}

// UserID 用户 ID
func (c *Client) UserID() string { return c.userID }

// Username 显示名
func (c *Client) Username() string { return c.username }

// SessionID 会话 ID
func (c *Client) SessionID() string { return c.sessionID }

// Manager 所属管理器
func (c *Client) Manager() *Manager { return c.manager }

// Active 会话是否仍在线且未被替换
func (c *Client) Active() bool {
	return c.manager.isCurrent(c.userID, c.sessionID)
}

// Send 向该会话发送事件
func (c *Client) Send(typ string, data any) bool {
	return c.manager.sendToSession(c.userID, c.sessionID, NewEnvelope(typ, data))
}

// SendResponse 发送请求应答
func (c *Client) SendResponse(requestID string, data any) bool {
	return c.manager.sendToSession(c.userID, c.sessionID, &Envelope{
		Type:      TypeResponse,
		RequestID: requestID,
		Data:      data,
	})
}

// SendError 发送错误事件
func (c *Client) SendError(requestID string, code int, message string) bool {
	return c.manager.sendToSession(c.userID, c.sessionID, &Envelope{
		Type:      TypeError,
		RequestID: requestID,
		Data: ErrorPayload{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	})
}
