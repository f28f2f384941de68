package request

import (
	"net/http"

	"github.com/tokmz/advisor/pkg/errors"
)

// 4000 段：出站 HTTP 调用
var (
	ErrRequestFailed = errors.New(4001, "Upstream request failed", http.StatusBadGateway)
	ErrTimeout       = errors.New(4002, "Upstream request timed out", http.StatusGatewayTimeout)
	ErrMarshal       = errors.New(4003, "Request encoding failed", http.StatusInternalServerError)
	ErrUnmarshal     = errors.New(4004, "Upstream response decoding failed", http.StatusBadGateway)
	ErrMaxRetry      = errors.New(4005, "Upstream retries exhausted", http.StatusBadGateway)
	ErrInvalidURL    = errors.New(4006, "Invalid request URL", http.StatusInternalServerError)
)
