package user

import (
	"net/http"

	apperrors "github.com/tokmz/advisor/pkg/errors"
)

// 用户错误码 2100-2199
var (
	ErrUserNotFound   = apperrors.New(2101, "User not found", http.StatusNotFound)
	ErrInvalidStatus  = apperrors.New(2102, "Invalid status", http.StatusBadRequest)
	ErrInvalidSection = apperrors.New(2103, "Invalid settings section", http.StatusBadRequest)
)
