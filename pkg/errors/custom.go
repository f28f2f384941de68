package errors

import "net/http"

// 通用错误码，领域错误码由各业务包在 2000 以上自行定义
var (
	ErrServer          = New(1000, "Internal server error", http.StatusInternalServerError)
	ErrBadRequest      = New(1001, "Bad request", http.StatusBadRequest)
	ErrUnauthorized    = New(1002, "Unauthorized", http.StatusUnauthorized)
	ErrForbidden       = New(1003, "Forbidden", http.StatusForbidden)
	ErrNotFound        = New(1004, "Resource not found", http.StatusNotFound)
	ErrConflict        = New(1005, "Resource already exists", http.StatusConflict)
	ErrTooManyRequests = New(1006, "Too many requests", http.StatusTooManyRequests)
	ErrUnavailable     = New(1007, "Service unavailable", http.StatusServiceUnavailable)
)
