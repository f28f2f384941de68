package server

import (
	"github.com/tokmz/advisor/internal/auth"
	"github.com/tokmz/advisor/internal/chat"
	"github.com/tokmz/advisor/internal/document"
	"github.com/tokmz/advisor/internal/profile"
	"github.com/tokmz/advisor/internal/system"
	"github.com/tokmz/advisor/internal/user"
	"github.com/tokmz/advisor/middleware"
)

type handlers struct {
	tokens   *auth.TokenManager
	auth     *auth.Handler
	user     *user.Handler
	profile  *profile.Handler
	document *document.Handler
	chat     *chat.Handler
	system   *system.Handler
}

// routes 注册全局中间件与全部路由
//
//	/auth             注册、登录、Google 登录；/auth/profile 需认证
//	/api/user         当前用户资料、状态与设置（认证）
//	/api/profile      职业档案
//	/api/career-form  职业表单
//	/api/documents    简历与证书
//	/api/chat         聊天 REST（认证）与 /ws 握手（令牌可放在 ?token=）
//	/ /health /api/version /api/config 公开；/stats 认证
func (s *Server) routes(r handlers) {
	cfg, e := s.cfg, s.engine

	e.Use(middleware.Tracing(&middleware.TracingConfig{
		TracerName:        "advisor/http",
		SpanNameFormatter: middleware.DefaultTracingConfig().SpanNameFormatter,
		ExcludePaths:      []string{"/health"},
	}))

	cors := &middleware.CORSConfig{
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowMethods:     cfg.CORS.AllowMethods,
		AllowHeaders:     cfg.CORS.AllowHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}
	if len(cors.AllowOrigins) == 1 && cors.AllowOrigins[0] == "*" {
		cors.AllowCredentials = false
	}
	e.Use(middleware.CORS(cors))

	if cfg.RateLimit.Enabled {
		e.Use(middleware.RateLimiter(&middleware.RateLimiterConfig{
			Cache:        s.cache,
			Requests:     int64(cfg.RateLimit.Requests),
			Window:       cfg.RateLimit.Window,
			ExcludePaths: []string{"/health", SocketPath},
			Logger:       s.log,
		}))
	}

	e.Use(middleware.Timeout(&middleware.TimeoutConfig{
		Timeout:        cfg.Server.RequestTimeout,
		TimeoutMessage: "Request timeout",
		ExcludePaths:   []string{SocketPath},
	}))

	authMW := middleware.Auth(&middleware.AuthConfig{Verifier: r.tokens})
	socketAuth := middleware.Auth(&middleware.AuthConfig{Verifier: r.tokens, QueryParam: "token"})

	r.system.Register(e)
	r.system.RegisterStats(e.Group("", authMW))

	r.auth.Register(e.Group("/auth"), authMW)
	r.user.Register(e.Group("/api/user", authMW))
	r.profile.Register(e.Group("/api/profile"))
	r.profile.RegisterCareerForm(e.Group("/api/career-form"))
	r.document.Register(e.Group("/api/documents"))

	chatGroup := e.Group("/api/chat")
	chatGroup.GET("/ws", r.chat.Socket, socketAuth)
	r.chat.Register(e.Group("/api/chat", authMW))
}
