package advisor

const (
	// ContextTraceIDKey 链路追踪trace_id键
	ContextTraceIDKey = "trace_id"
	// ContextUserIDKey 已认证用户id键（邮箱）
	ContextUserIDKey = "user_id"
)

// GetContextTraceID 获取上下文链路追踪trace_id
func GetContextTraceID(ctx *Context) string {
	return ctx.GetString(ContextTraceIDKey)
}

// SetContextTraceID 设置上下文链路追踪trace_id
func SetContextTraceID(ctx *Context, traceID string) {
	ctx.Set(ContextTraceIDKey, traceID)
}

// GetContextUserID 获取已认证用户id，未认证时为空
func GetContextUserID(ctx *Context) string {
	return ctx.GetString(ContextUserIDKey)
}

// SetContextUserID 设置已认证用户id
func SetContextUserID(ctx *Context, userID string) {
	ctx.Set(ContextUserIDKey, userID)
}
