package advisor

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tokmz/advisor/pkg/errors"
	"github.com/tokmz/advisor/pkg/logger"
)

// Context 包装 gin.Context，提供统一响应与绑定
type Context struct {
	ctx *gin.Context
}

// NewContext 创建新的上下文（用于测试）
func NewContext(c *gin.Context) *Context {
	return &Context{ctx: c}
}

// ============ Gin Context 访问方法 ============

// Request 返回底层的 *http.Request
func (c *Context) Request() *http.Request {
	return c.ctx.Request
}

// Writer 返回底层的 http.ResponseWriter
func (c *Context) Writer() gin.ResponseWriter {
	return c.ctx.Writer
}

// Param 获取路径参数
func (c *Context) Param(key string) string {
	return c.ctx.Param(key)
}

// FullPath 获取路由模板路径（如 /users/:id）
func (c *Context) FullPath() string {
	return c.ctx.FullPath()
}

// Query 获取 URL 查询参数
func (c *Context) Query(key string) string {
	return c.ctx.Query(key)
}

// DefaultQuery 获取 URL 查询参数（带默认值）
func (c *Context) DefaultQuery(key, defaultValue string) string {
	return c.ctx.DefaultQuery(key, defaultValue)
}

// PostForm 获取表单参数
func (c *Context) PostForm(key string) string {
	return c.ctx.PostForm(key)
}

// MultipartForm 解析 multipart 表单
func (c *Context) MultipartForm() (*multipart.Form, error) {
	return c.ctx.MultipartForm()
}

// ShouldBind 绑定请求参数（不自动响应错误）
func (c *Context) ShouldBind(obj any) error {
	return c.ctx.ShouldBind(obj)
}

// ShouldBindJSON 绑定 JSON 请求体（不自动响应错误）
func (c *Context) ShouldBindJSON(obj any) error {
	return c.ctx.ShouldBindJSON(obj)
}

// ShouldBindQuery 绑定 URL 查询参数（不自动响应错误）
func (c *Context) ShouldBindQuery(obj any) error {
	return c.ctx.ShouldBindQuery(obj)
}

// ShouldBindUri 绑定路径参数（不自动响应错误）
func (c *Context) ShouldBindUri(obj any) error {
	return c.ctx.ShouldBindUri(obj)
}

// JSON 发送 JSON 响应
func (c *Context) JSON(code int, obj any) {
	c.ctx.JSON(code, obj)
}

// DataFromReader 流式写出响应体
func (c *Context) DataFromReader(code int, contentLength int64, contentType string, r io.Reader, headers map[string]string) {
	c.ctx.DataFromReader(code, contentLength, contentType, r, headers)
}

// Set 设置上下文键值对
func (c *Context) Set(key string, value any) {
	c.ctx.Set(key, value)
}

// Get 获取上下文键值对
func (c *Context) Get(key string) (any, bool) {
	return c.ctx.Get(key)
}

// GetString 获取字符串类型的上下文值
func (c *Context) GetString(key string) string {
	return c.ctx.GetString(key)
}

// Next 执行下一个中间件或处理函数
func (c *Context) Next() {
	c.ctx.Next()
}

// Abort 中止请求处理
func (c *Context) Abort() {
	c.ctx.Abort()
}

// AbortWithStatus 中止请求并设置状态码
func (c *Context) AbortWithStatus(code int) {
	c.ctx.AbortWithStatus(code)
}

// IsAborted 检查请求是否已中止
func (c *Context) IsAborted() bool {
	return c.ctx.IsAborted()
}

// Written 响应是否已写出
func (c *Context) Written() bool {
	return c.ctx.Writer.Written()
}

// Errors 处理过程中记录的错误
func (c *Context) Errors() []*gin.Error {
	return c.ctx.Errors
}

// ClientIP 获取客户端 IP
func (c *Context) ClientIP() string {
	return c.ctx.ClientIP()
}

// GetHeader 获取请求头
func (c *Context) GetHeader(key string) string {
	return c.ctx.GetHeader(key)
}

// Header 设置响应头
func (c *Context) Header(key, value string) {
	c.ctx.Header(key, value)
}

// UserID 已认证用户id
func (c *Context) UserID() string {
	return GetContextUserID(c)
}

// ============ 请求绑定方法 ============

// BindJSON 绑定 JSON 请求体
// 绑定失败时自动响应错误，调用方只需判断 err != nil 并 return
func (c *Context) BindJSON(obj any) error {
	if err := c.ctx.ShouldBindJSON(obj); err != nil {
		wrappedErr := c.wrapBindError(err)
		c.RespondError(wrappedErr)
		return wrappedErr
	}
	return nil
}

func (c *Context) wrapBindError(err error) error {
	return errors.ErrBadRequest.WithError(err).WithMessage(err.Error())
}

// ============ 响应方法 ============

// Success 成功响应
func (c *Context) Success(data any) {
	c.respond(http.StatusOK, Success(data))
}

// SuccessWithMessage 成功响应（自定义消息）
func (c *Context) SuccessWithMessage(data any, message string) {
	c.respond(http.StatusOK, SuccessWithMessage(data, message))
}

// Created 201 响应
func (c *Context) Created(data any, message string) {
	c.respond(http.StatusCreated, SuccessWithMessage(data, message))
}

// Nil 成功响应（无数据）
func (c *Context) Nil() {
	c.Success(nil)
}

// Fail 失败响应
func (c *Context) Fail(httpCode, code int, message string) {
	c.respond(httpCode, Fail(code, message))
}

// RespondError 错误响应。非业务错误统一为 ErrServer，原因记录到 Errors 由日志中间件输出
func (c *Context) RespondError(err error) {
	bizErr := errors.From(err)
	if bizErr == nil {
		bizErr = errors.ErrServer
	}
	if err != nil {
		_ = c.ctx.Error(err)
	}
	c.respond(bizErr.HttpCode, NewResponse(bizErr.Code, nil, bizErr.Message))
}

// Page 分页响应
func (c *Context) Page(list any, total uint64, page, size int) {
	c.respond(http.StatusOK, Success(NewPageResp(list, total, page, size)))
}

// respond 统一响应处理（自动添加 TraceID）
func (c *Context) respond(statusCode int, resp *Response) {
	if traceID := GetContextTraceID(c); traceID != "" {
		resp.WithTraceID(traceID)
	}
	c.JSON(statusCode, resp)
}

// RequestContext 返回标准库 context.Context，用于传递给 Service 层
// TraceID 和用户 id 使用 logger 包的 key，logger.*Context 方法能直接提取
func (c *Context) RequestContext() context.Context {
	ctx := c.ctx.Request.Context()
	if traceID := GetContextTraceID(c); traceID != "" {
		ctx = logger.WithTraceID(ctx, traceID)
	}
	if uid := GetContextUserID(c); uid != "" {
		ctx = logger.WithUserID(ctx, uid)
	}
	return ctx
}

// SetRequestContext 更新 Request 的 Context（用于中间件注入 SpanContext）
func (c *Context) SetRequestContext(ctx context.Context) {
	c.ctx.Request = c.ctx.Request.WithContext(ctx)
}
