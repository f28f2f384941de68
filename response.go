package advisor

// CodeSuccess 成功业务码
const CodeSuccess = 0

// Response 统一响应结构
type Response struct {
	Code    int    `json:"code"`               // 业务状态码，0 表示成功
	Data    any    `json:"data"`               // 响应数据
	Message string `json:"message"`            // 响应消息
	TraceID string `json:"trace_id,omitempty"` // 追踪ID（可选）
}

// NewResponse 创建响应
func NewResponse(code int, data any, message string) *Response {
	return &Response{
		Code:    code,
		Data:    data,
		Message: message,
	}
}

// WithTraceID 设置追踪ID
func (r *Response) WithTraceID(traceID string) *Response {
	r.TraceID = traceID
	return r
}

// Success 创建成功响应
func Success(data any) *Response {
	return NewResponse(CodeSuccess, data, "success")
}

// SuccessWithMessage 创建成功响应（自定义消息）
func SuccessWithMessage(data any, message string) *Response {
	return NewResponse(CodeSuccess, data, message)
}

// Fail 创建失败响应
func Fail(code int, message string) *Response {
	return NewResponse(code, nil, message)
}

// PageResp 分页响应结构
type PageResp struct {
	List  any    `json:"list"`
	Total uint64 `json:"total"`
	Page  int    `json:"page,omitempty"`
	Size  int    `json:"size,omitempty"`
}

// NewPageResp 创建分页响应，list 为 nil 时序列化为 []
func NewPageResp(list any, total uint64, page, size int) *PageResp {
	if list == nil {
		list = []any{}
	}
	return &PageResp{
		List:  list,
		Total: total,
		Page:  page,
		Size:  size,
	}
}
