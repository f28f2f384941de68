package chat

import (
	"errors"
	"net/http"

	apperrors "github.com/tokmz/advisor/pkg/errors"
	"github.com/tokmz/advisor/pkg/ws"
)

// 聊天错误码 2400-2499
var (
	ErrRoomNotFound       = apperrors.New(2401, "Room not found", http.StatusNotFound)
	ErrInvalidRoomName    = apperrors.New(2402, "Room name must be between 2 and 100 characters", http.StatusBadRequest)
	ErrInvalidRoomType    = apperrors.New(2403, "Invalid room type", http.StatusBadRequest)
	ErrEmptyContent       = apperrors.New(2404, "Message content cannot be empty", http.StatusBadRequest)
	ErrContentTooLong     = apperrors.New(2405, "Message content is too long", http.StatusBadRequest)
	ErrInvalidMessageType = apperrors.New(2406, "Invalid message type", http.StatusBadRequest)
	ErrRoomInactive       = apperrors.New(2408, "Room is not active", http.StatusForbidden)
	ErrNotRoomMember      = apperrors.New(2409, "Join the room before sending messages", http.StatusForbidden)
	ErrTooManyConnections = apperrors.New(2410, "Too many connections", http.StatusServiceUnavailable)
)

// clientError 把业务错误转成可下发给 WebSocket 客户端的错误
func clientError(err error) error {
	var e *apperrors.Error
	if errors.As(err, &e) && e.HttpCode < http.StatusInternalServerError {
		return ws.NewClientError(e.HttpCode, e.Message)
	}
	return err
}
