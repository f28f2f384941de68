package advisor

import (
	"errors"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/tokmz/advisor/pkg/errors"
	"github.com/tokmz/advisor/pkg/logger"
)

// LoggerConfig 访问日志配置
type LoggerConfig struct {
	// SkipFunc 跳过日志的函数
	SkipFunc func(c *Context) bool

	// ExcludePaths 排除的路径（不记录日志）
	ExcludePaths []string
}

// Logger 访问日志中间件，按状态码选择级别：5xx error、4xx warn、其余 info
func Logger(log logger.Logger, cfgs ...*LoggerConfig) HandlerFunc {
	cfg := &LoggerConfig{}
	if len(cfgs) > 0 && cfgs[0] != nil {
		cfg = cfgs[0]
	}

	skipMap := make(map[string]bool, len(cfg.ExcludePaths))
	for _, path := range cfg.ExcludePaths {
		skipMap[path] = true
	}

	return func(c *Context) {
		if (cfg.SkipFunc != nil && cfg.SkipFunc(c)) || skipMap[c.Request().URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		path := c.Request().URL.Path
		method := c.Request().Method

		c.Next()

		status := c.Writer().Status()
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("size", c.Writer().Size()),
		}
		if errs := c.Errors(); len(errs) > 0 {
			fields = append(fields, zap.Error(errs[len(errs)-1].Err))
		}

		ctx := c.RequestContext()
		switch {
		case status >= http.StatusInternalServerError:
			log.ErrorContext(ctx, "request", fields...)
		case status >= http.StatusBadRequest:
			log.WarnContext(ctx, "request", fields...)
		default:
			log.InfoContext(ctx, "request", fields...)
		}
	}
}

// Recovery panic 恢复中间件，返回统一格式的 500
func Recovery(log logger.Logger) HandlerFunc {
	return func(c *Context) {
		defer func() {
			if err := recover(); err != nil {
				if isBrokenPipe(err) {
					log.Warn("broken pipe",
						zap.Any("error", err),
						zap.String("path", c.Request().URL.Path),
					)
					c.Abort()
					return
				}

				log.ErrorContext(c.RequestContext(), "panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request().Method),
					zap.String("path", c.Request().URL.Path),
					zap.String("client_ip", c.ClientIP()),
					zap.ByteString("stack", debug.Stack()),
				)

				if !c.Written() {
					c.RespondError(apperrors.ErrServer)
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

func notFound(c *Context) {
	c.RespondError(apperrors.ErrNotFound.WithMessage("Route not found"))
}

func methodNotAllowed(c *Context) {
	c.Fail(http.StatusMethodNotAllowed, apperrors.ErrBadRequest.Code, "Method not allowed")
}

// isBrokenPipe 客户端主动断开
func isBrokenPipe(err any) bool {
	e, ok := err.(error)
	if !ok {
		return false
	}
	var ne *net.OpError
	if !errors.As(e, &ne) {
		return false
	}
	var se *os.SyscallError
	if !errors.As(ne, &se) {
		return false
	}
	msg := strings.ToLower(se.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
