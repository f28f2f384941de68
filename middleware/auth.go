package middleware

import (
	"strings"

	"github.com/tokmz/advisor"
	apperrors "github.com/tokmz/advisor/pkg/errors"
)

// TokenVerifier 校验访问令牌，返回用户 id
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// AuthConfig 认证中间件配置
type AuthConfig struct {
	Verifier TokenVerifier

	// QueryParam 非空时允许从查询参数读取令牌（浏览器 WebSocket 无法设置请求头）
	QueryParam string

	// Optional 为 true 时缺少令牌也放行，仅在令牌有效时设置用户
	Optional bool
}

// Auth Bearer 令牌认证，成功后用户 id 写入上下文
func Auth(cfg *AuthConfig) advisor.HandlerFunc {
	if cfg == nil || cfg.Verifier == nil {
		panic("advisor/middleware: Auth requires a token verifier")
	}

	return func(c *advisor.Context) {
		token := BearerToken(c.GetHeader("Authorization"))
		if token == "" && cfg.QueryParam != "" {
			token = c.Query(cfg.QueryParam)
		}

		if token == "" {
			if cfg.Optional {
				c.Next()
				return
			}
			c.RespondError(apperrors.ErrUnauthorized.WithMessage("Missing access token"))
			c.Abort()
			return
		}

		userID, err := cfg.Verifier.VerifyToken(token)
		if err != nil {
			c.RespondError(err)
			c.Abort()
			return
		}

		advisor.SetContextUserID(c, userID)
		c.Next()
	}
}

// BearerToken 从 Authorization 头提取令牌
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
