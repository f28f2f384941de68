package middleware

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tokmz/advisor"
	"github.com/tokmz/advisor/pkg/cache"
	apperrors "github.com/tokmz/advisor/pkg/errors"
	"github.com/tokmz/advisor/pkg/logger"
)

// RateLimiterConfig 限流中间件配置
type RateLimiterConfig struct {
	// Cache 计数器存储，memory 驱动为单实例限流，redis 驱动为集群限流（必填）
	Cache cache.Cache

	// Requests 每个窗口允许的请求数（默认 120）
	Requests int64

	// Window 固定窗口长度（默认 1 分钟）
	Window time.Duration

	// KeyFunc 自定义限流 key 函数（默认使用客户端 IP）
	KeyFunc func(c *advisor.Context) string

	// SkipFunc 跳过限流的函数
	SkipFunc func(c *advisor.Context) bool

	// ExcludePaths 排除的路径（不限流）
	ExcludePaths []string

	// Logger 日志实例
	Logger logger.Logger
}

// RateLimiter 固定窗口限流：窗口内首次请求 Incr 得到 1 时设置过期时间
// 计数存储不可用时放行
func RateLimiter(cfg *RateLimiterConfig) advisor.HandlerFunc {
	if cfg == nil || cfg.Cache == nil {
		panic("advisor/middleware: RateLimiter requires a cache")
	}
	if cfg.Requests <= 0 {
		cfg.Requests = 120
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *advisor.Context) string { return c.ClientIP() }
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	skipMap := make(map[string]bool, len(cfg.ExcludePaths))
	for _, path := range cfg.ExcludePaths {
		skipMap[path] = true
	}
	limit := strconv.FormatInt(cfg.Requests, 10)

	return func(c *advisor.Context) {
		if (cfg.SkipFunc != nil && cfg.SkipFunc(c)) || skipMap[c.Request().URL.Path] {
			c.Next()
			return
		}

		ctx := c.RequestContext()
		window := time.Now().UnixNano() / int64(cfg.Window)
		key := fmt.Sprintf("ratelimit:%s:%d", cfg.KeyFunc(c), window)

		count, err := cfg.Cache.Incr(ctx, key)
		if err != nil {
			cfg.Logger.WarnContext(ctx, "rate limit counter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			if err := cfg.Cache.Expire(ctx, key, cfg.Window); err != nil {
				cfg.Logger.WarnContext(ctx, "rate limit expire failed", zap.Error(err))
			}
		}

		remaining := cfg.Requests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > cfg.Requests {
			cfg.Logger.WarnContext(ctx, "rate limit exceeded",
				zap.String("key", key),
				zap.String("path", c.Request().URL.Path),
				zap.Int64("count", count),
			)
			c.Header("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
			c.RespondError(apperrors.ErrTooManyRequests)
			c.Abort()
			return
		}

		c.Next()
	}
}

