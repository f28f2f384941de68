package system

import (
	"net/http"

	"github.com/tokmz/advisor"
)

// Handler 系统路由
type Handler struct {
	svc *Service
}

// NewHandler 创建系统路由
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register 挂载公开的系统路由
func (h *Handler) Register(e *advisor.Engine) {
	root := e.RouterGroup()
	root.GET("/", func(c *advisor.Context) {
		c.Success(h.svc.Root())
	})
	// 探针直接读 HTTP 状态码，不包统一响应
	root.GET("/health", func(c *advisor.Context) {
		health := h.svc.Health(c.RequestContext())
		code := http.StatusOK
		if health.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, health)
	})

	api := e.Group("/api")
	api.GET("/version", func(c *advisor.Context) {
		c.Success(h.svc.Version())
	})
	api.GET("/config", func(c *advisor.Context) {
		c.Success(h.svc.ClientConfig())
	})
}

// RegisterStats 挂载 /stats，调用方负责认证中间件
func (h *Handler) RegisterStats(rg *advisor.RouterGroup) {
	advisor.GETOnly(rg, "/stats", func(c *advisor.Context) (*PlatformStats, error) {
		return h.svc.Stats(c.RequestContext())
	})
}
