package ws

import "errors"

// 错误定义
var (
	// 连接相关错误
	ErrTooManyConnections = errors.New("ws: too many connections")
	ErrConnectionClosed   = errors.New("ws: connection closed")
	ErrEmptyUserID        = errors.New("ws: empty user id")
	ErrManagerClosed      = errors.New("ws: manager closed")

	// 消息相关错误
	ErrHandlerNotFound = errors.New("ws: handler not found")
	ErrHandlerExists   = errors.New("ws: handler already exists")
	ErrChannelFull     = errors.New("ws: send channel full")
	ErrRouterFrozen    = errors.New("ws: router is frozen")
	ErrMissingRoomID   = errors.New("ws: room_id is required")
	ErrRoomFull        = errors.New("ws: room is full")
)

// 错误码（发送给客户端的 error 事件）
const (
	CodeBadRequest = 400
	CodeForbidden  = 403
	CodeNotFound   = 404
	CodeInternal   = 500
)

// ClientError 可直接展示给客户端的错误
type ClientError struct {
	Code    int
	Message string
}

func (e *ClientError) Error() string {
	return "ws client error: " + e.Message
}

// NewClientError 创建客户端错误
func NewClientError(code int, msg string) error {
	return &ClientError{Code: code, Message: msg}
}
