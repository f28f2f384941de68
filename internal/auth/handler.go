package auth

import (
	"github.com/tokmz/advisor"
)

// Handler 认证路由
type Handler struct {
	svc *Service
}

// NewHandler 创建认证路由
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register 挂载 /auth 下的路由，authMW 保护需要登录的接口
func (h *Handler) Register(rg *advisor.RouterGroup, authMW advisor.HandlerFunc) {
	advisor.POST(rg, "/signup", func(c *advisor.Context, req *SignupRequest) (*Result, error) {
		return h.svc.Signup(c.RequestContext(), req)
	})
	advisor.POST(rg, "/signin", func(c *advisor.Context, req *SigninRequest) (*Result, error) {
		return h.svc.Signin(c.RequestContext(), req)
	})
	advisor.POST(rg, "/google", func(c *advisor.Context, req *GoogleRequest) (*Result, error) {
		return h.svc.Google(c.RequestContext(), req)
	})
	advisor.GETOnly(rg, "/profile", h.profile, authMW)
}

func (h *Handler) profile(c *advisor.Context) (*ProfileResult, error) {
	user, err := h.svc.Profile(c.RequestContext(), c.UserID())
	if err != nil {
		return nil, err
	}
	return &ProfileResult{User: user}, nil
}
