package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tokmz/advisor"
	apperrors "github.com/tokmz/advisor/pkg/errors"
)

// TimeoutConfig 超时中间件配置
type TimeoutConfig struct {
	// Timeout 请求超时时间（默认 30 秒）
	Timeout time.Duration

	// TimeoutMessage 超时响应消息（默认 "Request timeout"）
	TimeoutMessage string

	// SkipFunc 跳过超时控制的函数
	SkipFunc func(c *advisor.Context) bool

	// ExcludePaths 排除的路径，WebSocket 握手路由必须排除
	ExcludePaths []string
}

func defaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		Timeout:        30 * time.Second,
		TimeoutMessage: "Request timeout",
	}
}

// Timeout 创建超时中间件
// 通过 context.WithTimeout 注入超时 context，handler 应通过 ctx.Done() 感知超时
// handler 返回后若已超时且尚未写出响应，返回 408
func Timeout(cfgs ...*TimeoutConfig) advisor.HandlerFunc {
	cfg := defaultTimeoutConfig()
	if len(cfgs) > 0 && cfgs[0] != nil {
		custom := *cfgs[0]
		if custom.Timeout <= 0 {
			custom.Timeout = cfg.Timeout
		}
		if custom.TimeoutMessage == "" {
			custom.TimeoutMessage = cfg.TimeoutMessage
		}
		cfg = &custom
	}

	skipMap := make(map[string]bool, len(cfg.ExcludePaths))
	for _, path := range cfg.ExcludePaths {
		skipMap[path] = true
	}

	return func(c *advisor.Context) {
		if (cfg.SkipFunc != nil && cfg.SkipFunc(c)) || skipMap[c.Request().URL.Path] {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), cfg.Timeout)
		defer cancel()
		c.SetRequestContext(ctx)

		// 在当前 goroutine 中执行，避免并发写 ResponseWriter
		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Written() {
			c.Fail(http.StatusRequestTimeout, apperrors.ErrUnavailable.Code, cfg.TimeoutMessage)
			c.Abort()
		}
	}
}
