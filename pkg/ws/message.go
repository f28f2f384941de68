package ws

import (
	"encoding/json"
	"time"
)

// 出站事件类型
const (
	TypeConnectionEstablished = "connection_established"
	TypeRoomJoined            = "room_joined"
	TypeUserJoined            = "user_joined"
	TypeUserLeft              = "user_left"
	TypeTypingIndicator       = "typing_indicator"
	TypeResponse              = "response"
	TypeError                 = "error"
	TypePong                  = "pong"
)

// 入站事件类型
const (
	TypeJoinRoom  = "join_room"
	TypeLeaveRoom = "leave_room"
	TypeTyping    = "typing"
	TypePing      = "ping"
)

// Message 客户端发来的消息
type Message struct {
	// Type 事件类型（如 "join_room", "send_message"）
	Type string `json:"type"`

	// RequestID 请求 ID（用于请求-响应匹配）
	RequestID string `json:"request_id,omitempty"`

	// Data 消息数据（JSON）
	Data json.RawMessage `json:"data,omitempty"`
}

// Envelope 下发给客户端的消息
type Envelope struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data"`
}

// NewEnvelope 创建下发消息
func NewEnvelope(typ string, data any) *Envelope {
	return &Envelope{Type: typ, Data: data}
}

// Encode 序列化下发消息
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// ConnectionEstablished connection_established 事件数据
type ConnectionEstablished struct {
	UserID    string `json:"user_id"`
	Timestamp string `json:"timestamp"`
	SessionID string `json:"session_id"`
}

// RoomJoined room_joined 事件数据
type RoomJoined struct {
	RoomID        string   `json:"room_id"`
	MemberCount   int      `json:"member_count"`
	OnlineMembers []string `json:"online_members"`
}

// MemberChange user_joined / user_left 事件数据
type MemberChange struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	RoomID      string `json:"room_id"`
	Timestamp   string `json:"timestamp"`
	MemberCount int    `json:"member_count"`
}

// TypingIndicator typing_indicator 事件数据
type TypingIndicator struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	RoomID    string `json:"room_id"`
	IsTyping  bool   `json:"is_typing"`
	Timestamp string `json:"timestamp"`
}

// ErrorPayload error 事件数据
type ErrorPayload struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// RoomRequest join_room / leave_room 请求
type RoomRequest struct {
	RoomID string `json:"room_id"`
}

// TypingRequest typing 请求
type TypingRequest struct {
	RoomID   string `json:"room_id"`
	IsTyping bool   `json:"is_typing"`
}

// Pong ping 的应答
type Pong struct {
	Timestamp string `json:"timestamp"`
}

// FormatTime 统一的时间戳格式
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
