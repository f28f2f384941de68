package document

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/tokmz/advisor"
	"github.com/tokmz/advisor/internal/model"
	apperrors "github.com/tokmz/advisor/pkg/errors"
)

// Lookup GET /user/:user_email 响应
type Lookup struct {
	Success      bool                  `json:"success"`
	UserEmail    string                `json:"user_email"`
	DocumentInfo *model.DocumentUpload `json:"document_info"`
	Found        bool                  `json:"found"`
}

// DeleteResult 删除全部文档结果
type DeleteResult struct {
	Success   bool       `json:"success"`
	UserEmail string     `json:"user_email"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// StatusResult 状态更新结果
type StatusResult struct {
	Success   bool      `json:"success"`
	UserEmail string    `json:"user_email"`
	SessionID string    `json:"session_id,omitempty"`
	NewStatus string    `json:"new_status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileDeleteResult 删除单个文件结果
type FileDeleteResult struct {
	Success        bool   `json:"success"`
	DeletedFile    string `json:"deleted_file"`
	UserEmail      string `json:"user_email"`
	RemainingFiles int    `json:"remaining_files"`
}

// Handler 文档路由
type Handler struct {
	svc *Service
}

// NewHandler 创建文档路由
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register 挂载 /api/documents 路由
func (h *Handler) Register(rg *advisor.RouterGroup) {
	rg.POST("/upload/:user_email", h.upload)
	rg.GET("/user/:user_email", h.get)
	rg.DELETE("/user/:user_email", h.deleteUser)
	rg.PATCH("/user/:user_email/status", h.updateStatus)
	rg.POST("/webhook/processing-complete", h.processingComplete)
	advisor.GETOnly(rg, "/stats", func(c *advisor.Context) (*Stats, error) {
		return h.svc.Stats(c.RequestContext())
	})
	rg.GET("/download/:user_email/:file_type/:file_index", h.serve("attachment"))
	rg.GET("/view/:user_email/:file_type/:file_index", h.serve("inline"))
	rg.DELETE("/file/:user_email/:file_type/:file_index", h.deleteFile)
}

func (h *Handler) upload(c *advisor.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.RespondError(apperrors.ErrBadRequest.WithMessage("Invalid multipart form").WithError(err))
		return
	}

	in := &UploadInput{
		UserEmail:         c.Param("user_email"),
		Domain:            formValue(form, "domain"),
		PortfolioURL:      formValue(form, "portfolio_url"),
		LinkedinURL:       formValue(form, "linkedin_url"),
		GithubURL:         formValue(form, "github_url"),
		PersonalPortfolio: formValue(form, "personal_portfolio_url"),
		Certificates:      form.File["certificates"],
	}
	if files := form.File["resume"]; len(files) > 0 {
		in.Resume = files[0]
	}

	result, err := h.svc.Upload(c.RequestContext(), in)
	if err != nil {
		c.RespondError(err)
		return
	}
	c.SuccessWithMessage(result, result.Message)
}

func (h *Handler) get(c *advisor.Context) {
	email := c.Param("user_email")
	record, err := h.svc.Get(c.RequestContext(), email)
	switch {
	case errors.Is(err, ErrDocumentsNotFound):
		c.Success(&Lookup{Success: true, UserEmail: email})
	case err != nil:
		c.RespondError(err)
	default:
		c.Success(&Lookup{Success: true, UserEmail: email, DocumentInfo: record, Found: true})
	}
}

func (h *Handler) deleteUser(c *advisor.Context) {
	email := c.Param("user_email")
	found, err := h.svc.DeleteUser(c.RequestContext(), email)
	if err != nil {
		c.RespondError(err)
		return
	}
	if !found {
		c.SuccessWithMessage(&DeleteResult{UserEmail: email}, "No documents found to delete for "+email)
		return
	}
	now := time.Now().UTC()
	c.SuccessWithMessage(&DeleteResult{Success: true, UserEmail: email, DeletedAt: &now},
		"All documents deleted successfully for "+email)
}

func (h *Handler) updateStatus(c *advisor.Context) {
	email, status := c.Param("user_email"), c.PostForm("status")
	if err := h.svc.UpdateStatus(c.RequestContext(), email, status); err != nil {
		c.RespondError(err)
		return
	}
	c.SuccessWithMessage(&StatusResult{
		Success:   true,
		UserEmail: email,
		NewStatus: status,
		UpdatedAt: time.Now().UTC(),
	}, "Document status updated to "+status)
}

// processingComplete 外部处理服务回调
func (h *Handler) processingComplete(c *advisor.Context) {
	email, sessionID, status := c.PostForm("user_email"), c.PostForm("session_id"), c.PostForm("status")
	if err := h.svc.UpdateStatus(c.RequestContext(), email, status); err != nil {
		c.RespondError(err)
		return
	}
	c.SuccessWithMessage(&StatusResult{
		Success:   true,
		UserEmail: email,
		SessionID: sessionID,
		NewStatus: status,
		UpdatedAt: time.Now().UTC(),
	}, "Status updated successfully")
}

func (h *Handler) serve(disposition string) advisor.HandlerFunc {
	return func(c *advisor.Context) {
		index, err := fileIndex(c)
		if err != nil {
			c.RespondError(err)
			return
		}
		rc, file, err := h.svc.Open(c.RequestContext(), c.Param("user_email"), c.Param("file_type"), index)
		if err != nil {
			c.RespondError(err)
			return
		}
		defer rc.Close()

		c.DataFromReader(http.StatusOK, file.FileSize, file.ContentType, rc, map[string]string{
			"Content-Disposition": fmt.Sprintf("%s; filename=%q", disposition, file.Filename),
		})
	}
}

func (h *Handler) deleteFile(c *advisor.Context) {
	index, err := fileIndex(c)
	if err != nil {
		c.RespondError(err)
		return
	}
	email := c.Param("user_email")
	deleted, record, err := h.svc.DeleteFile(c.RequestContext(), email, c.Param("file_type"), index)
	if err != nil {
		c.RespondError(err)
		return
	}
	c.SuccessWithMessage(&FileDeleteResult{
		Success:        true,
		DeletedFile:    deleted.Filename,
		UserEmail:      email,
		RemainingFiles: record.TotalFilesCount,
	}, "File deleted successfully")
}

func fileIndex(c *advisor.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("file_index"))
	if err != nil || index < 0 {
		return 0, apperrors.ErrBadRequest.WithMessage("Invalid file index")
	}
	return index, nil
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}
