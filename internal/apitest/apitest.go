// Package apitest 业务路由测试辅助
package apitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/advisor"
	"github.com/tokmz/advisor/pkg/logger"
)

// StaticVerifier 把令牌原样当作用户 id
type StaticVerifier struct{}

// VerifyToken 空令牌之外全部通过
func (StaticVerifier) VerifyToken(token string) (string, error) {
	return token, nil
}

// NewEngine 测试模式的引擎
func NewEngine(t testing.TB) *advisor.Engine {
	t.Helper()
	return advisor.New(
		advisor.WithMode(gin.TestMode),
		advisor.WithBanner(false),
		advisor.WithLogger(logger.Nop()),
	)
}

// Request 构造请求，token 非空时附带 Bearer 头
func Request(method, path, body, token string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// Do 发送请求
func Do(e *advisor.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.Handler().ServeHTTP(w, req)
	return w
}

// DoJSON 发送 JSON 请求
func DoJSON(e *advisor.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	return Do(e, Request(method, path, body, token))
}

// Envelope 统一响应，Data 保留原始 JSON
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Decode 解析统一响应，data 非空时解到 out
func Decode(t testing.TB, w *httptest.ResponseRecorder, out any) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}
