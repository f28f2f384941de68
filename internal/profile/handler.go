package profile

import (
	"time"

	"github.com/tokmz/advisor"
)

type userURI struct {
	UserID string `uri:"user_id"`
}

type emailURI struct {
	Email string `uri:"user_email"`
}

// UpdateRequest PUT /api/profile/:user_id 请求
type UpdateRequest struct {
	userURI
	Profile Profile `json:"profile" binding:"required"`
}

// CareerFormRequest 职业表单请求
type CareerFormRequest struct {
	emailURI
	CareerInfo *CareerForm `json:"careerInfo"`
}

// CareerFormResult 职业表单提交结果
type CareerFormResult struct {
	Message   string    `json:"message"`
	UserID    string    `json:"user_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExistsResult 档案存在性
type ExistsResult struct {
	UserID string `json:"user_id"`
	Exists bool   `json:"exists"`
}

// Handler 档案路由
type Handler struct {
	svc *Service
}

// NewHandler 创建档案路由
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register 挂载 /api/profile 路由
func (h *Handler) Register(rg *advisor.RouterGroup) {
	rg.POST("", h.create)
	advisor.GET(rg, "/:user_id", func(c *advisor.Context, req *userURI) (*Response, error) {
		return h.svc.Get(c.RequestContext(), c.Param("user_id"))
	})
	advisor.PUT(rg, "/:user_id", func(c *advisor.Context, req *UpdateRequest) (*Response, error) {
		return h.svc.Upsert(c.RequestContext(), c.Param("user_id"), &req.Profile)
	})
	rg.DELETE("/:user_id", func(c *advisor.Context) {
		if err := h.svc.Delete(c.RequestContext(), c.Param("user_id")); err != nil {
			c.RespondError(err)
			return
		}
		c.SuccessWithMessage(nil, "Profile deleted successfully")
	})
	advisor.GET(rg, "/:user_id/exists", func(c *advisor.Context, req *userURI) (*ExistsResult, error) {
		exists, err := h.svc.Exists(c.RequestContext(), c.Param("user_id"))
		if err != nil {
			return nil, err
		}
		return &ExistsResult{UserID: c.Param("user_id"), Exists: exists}, nil
	})
}

// RegisterCareerForm 挂载 /api/career-form 路由
func (h *Handler) RegisterCareerForm(rg *advisor.RouterGroup) {
	advisor.POST(rg, "/academic-background/:user_email", func(c *advisor.Context, req *CareerFormRequest) (*CareerFormResult, error) {
		if req.CareerInfo == nil {
			return nil, ErrMissingFields.WithMessage("Invalid payload")
		}
		email := c.Param("user_email")
		resp, err := h.svc.SubmitCareerForm(c.RequestContext(), email, req.CareerInfo)
		if err != nil {
			return nil, err
		}
		return &CareerFormResult{
			Message:   "Career information updated successfully",
			UserID:    resp.UserID,
			UpdatedAt: resp.UpdatedAt,
		}, nil
	})
	advisor.GET(rg, "/academic-background/:user_email", func(c *advisor.Context, req *emailURI) (*Profile, error) {
		resp, err := h.svc.Get(c.RequestContext(), c.Param("user_email"))
		if err != nil {
			return nil, err
		}
		return &resp.Profile, nil
	})
}

// create POST /api/profile?user_id=
func (h *Handler) create(c *advisor.Context) {
	var p Profile
	if err := c.BindJSON(&p); err != nil {
		return
	}
	resp, err := h.svc.Create(c.RequestContext(), c.Query("user_id"), &p)
	if err != nil {
		c.RespondError(err)
		return
	}
	c.Created(resp, "Profile created successfully")
}
