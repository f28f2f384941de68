package ws

import (
	"sort"
	"time"
)

// Conn 已完成握手的连接
type Conn interface {
	// Send 投递一帧文本消息，不得长时间阻塞
	Send(data []byte) error
	// Close 以指定关闭码关闭连接，重复调用无副作用
	Close(code int, reason string) error
}

// Transport 尚未握手的连接
type Transport interface {
	// Accept 完成握手
	Accept() (Conn, error)
}

// TransportFunc 函数适配 Transport
type TransportFunc func() (Conn, error)

// Accept 实现 Transport
func (f TransportFunc) Accept() (Conn, error) {
	return f()
}

// Session 会话快照
type Session struct {
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	SessionID    string    `json:"session_id"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity"`
	Rooms        []string  `json:"current_rooms"`
	TypingIn     string    `json:"is_typing_in,omitempty"`
}

// session 管理器内部的会话记录，只在 Manager.mu 保护下访问
type session struct {
	id           string
	userID       string
	username     string
	conn         Conn
	connectedAt  time.Time
	lastActivity time.Time
	rooms        map[string]struct{}
	typingIn     string
	closing      bool
}

func newSession(id, userID, username string, conn Conn, now time.Time) *session {
	if username == "" {
		username = userID
	}
	return &session{
		id:           id,
		userID:       userID,
		username:     username,
		conn:         conn,
		connectedAt:  now,
		lastActivity: now,
		rooms:        make(map[string]struct{}),
	}
}

func (s *session) snapshot() Session {
	return Session{
		UserID:       s.userID,
		Username:     s.username,
		SessionID:    s.id,
		ConnectedAt:  s.connectedAt,
		LastActivity: s.lastActivity,
		Rooms:        sortedKeys(s.rooms),
		TypingIn:     s.typingIn,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
