package user

import (
	"github.com/tokmz/advisor"
	"github.com/tokmz/advisor/internal/model"
)

// StatusRequest PUT /status 请求
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// MessageResult 带提示信息的响应
type MessageResult struct {
	Message string      `json:"message"`
	User    *model.User `json:"user,omitempty"`
	Status  string      `json:"status,omitempty"`
}

// Handler 用户路由
type Handler struct {
	svc *Service
}

// NewHandler 创建用户路由
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register 挂载 /api/user 下的路由，调用方负责认证中间件
func (h *Handler) Register(rg *advisor.RouterGroup) {
	advisor.GETOnly(rg, "/profile", func(c *advisor.Context) (*model.User, error) {
		return h.svc.Get(c.RequestContext(), c.UserID())
	})
	advisor.PUT(rg, "/profile", func(c *advisor.Context, req *ProfileUpdate) (*MessageResult, error) {
		u, err := h.svc.UpdateProfile(c.RequestContext(), c.UserID(), req)
		if err != nil {
			return nil, err
		}
		return &MessageResult{Message: "Profile updated successfully", User: u}, nil
	})
	advisor.GETOnly(rg, "/chat-info", func(c *advisor.Context) (*ChatInfo, error) {
		return h.svc.ChatInfo(c.RequestContext(), c.UserID())
	})
	advisor.PUT(rg, "/status", func(c *advisor.Context, req *StatusRequest) (*MessageResult, error) {
		if err := h.svc.UpdateStatus(c.RequestContext(), c.UserID(), req.Status); err != nil {
			return nil, err
		}
		return &MessageResult{Message: "Status updated successfully", Status: req.Status}, nil
	})
	advisor.GETOnly(rg, "/settings", func(c *advisor.Context) (*SettingsView, error) {
		return h.svc.Settings(c.RequestContext(), c.UserID())
	})
	rg.PUT("/settings", h.updateSettings)
}

func (h *Handler) updateSettings(c *advisor.Context) {
	var patch map[string]model.Settings
	if err := c.BindJSON(&patch); err != nil {
		return
	}
	view, err := h.svc.UpdateSettings(c.RequestContext(), c.UserID(), patch)
	if err != nil {
		c.RespondError(err)
		return
	}
	c.SuccessWithMessage(view, "Settings updated successfully")
}
