package ws

import (
	"encoding/json"
	"sync"
)

// Handler 消息处理器
type Handler func(*Client, *Message) error

// NextFunc 中间件下一步函数
type NextFunc func() error

// MiddlewareFunc 中间件函数
type MiddlewareFunc func(*Client, *Message, NextFunc) error

// MessageRouter 按消息 type 分发的路由器
type MessageRouter struct {
	handlers   map[string]Handler
	middleware []MiddlewareFunc
	compiled   map[string]Handler // 预编译的处理器链
	mu         sync.RWMutex
	frozen     bool
}

// NewMessageRouter 创建路由器
func NewMessageRouter() *MessageRouter {
	return &MessageRouter{
		handlers: make(map[string]Handler),
	}
}

// Register 注册处理器
func (r *MessageRouter) Register(msgType string, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRouterFrozen
	}

	if _, exists := r.handlers[msgType]; exists {
		return ErrHandlerExists
	}

	r.handlers[msgType] = handler
	return nil
}

// Use 添加中间件
func (r *MessageRouter) Use(middleware ...MiddlewareFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, middleware...)
}

// Freeze 冻结路由器（启动后不可修改）
func (r *MessageRouter) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true

	r.compiled = make(map[string]Handler, len(r.handlers))
	for msgType, handler := range r.handlers {
		r.compiled[msgType] = buildChain(r.middleware, handler)
	}
}

// Types 已注册的消息类型
func (r *MessageRouter) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.handlers)
}

// buildChain 从后向前构建中间件链
func buildChain(middleware []MiddlewareFunc, handler Handler) Handler {
	finalHandler := handler
	for i := len(middleware) - 1; i >= 0; i-- {
		mw := middleware[i]
		next := finalHandler
		finalHandler = func(c *Client, m *Message) error {
			return mw(c, m, func() error {
				return next(c, m)
			})
		}
	}
	return finalHandler
}

// Route 路由消息
func (r *MessageRouter) Route(client *Client, msg *Message) error {
	r.mu.RLock()
	if r.frozen {
		handler, exists := r.compiled[msg.Type]
		r.mu.RUnlock()
		if !exists {
			return ErrHandlerNotFound
		}
		return handler(client, msg)
	}

	handler, exists := r.handlers[msg.Type]
	middleware := append([]MiddlewareFunc(nil), r.middleware...)
	r.mu.RUnlock()

	if !exists {
		return ErrHandlerNotFound
	}
	return buildChain(middleware, handler)(client, msg)
}

// HandlerFunc 泛型处理器函数（有请求有响应）
type HandlerFunc[Req any, Resp any] func(*Client, *Req) (*Resp, error)

// HandlerFunc0 泛型处理器函数（有请求无响应）
type HandlerFunc0[Req any] func(*Client, *Req) error

// decode 解析请求数据，缺省 data 视为空对象
func decode[Req any](msg *Message) (*Req, error) {
	var req Req
	if len(msg.Data) == 0 {
		return &req, nil
	}
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return nil, NewClientError(CodeBadRequest, "invalid request data")
	}
	return &req, nil
}

// reply 带 request_id 的请求才回应答
func reply(c *Client, msg *Message, data any) {
	if msg.RequestID != "" {
		c.SendResponse(msg.RequestID, data)
	}
}

// Handle 注册泛型处理器（有请求有响应）
func Handle[Req any, Resp any](router *MessageRouter, msgType string, handler HandlerFunc[Req, Resp]) error {
	return router.Register(msgType, func(c *Client, msg *Message) error {
		req, err := decode[Req](msg)
		if err != nil {
			return err
		}

		resp, err := handler(c, req)
		if err != nil {
			return err
		}

		reply(c, msg, resp)
		return nil
	})
}

// Handle0 注册泛型处理器（有请求无响应）
func Handle0[Req any](router *MessageRouter, msgType string, handler HandlerFunc0[Req]) error {
	return router.Register(msgType, func(c *Client, msg *Message) error {
		req, err := decode[Req](msg)
		if err != nil {
			return err
		}

		if err := handler(c, req); err != nil {
			return err
		}

		reply(c, msg, nil)
		return nil
	})
}
