package advisor

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tokmz/advisor/pkg/logger"
)

// Engine HTTP 服务
type Engine struct {
	config *Config
	engine *gin.Engine
	server *http.Server
	logger logger.Logger
}

// New 创建一个新的 Engine 实例，只包含 Recovery 中间件
func New(opts ...Option) *Engine {
	config := defaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	if config.Logger == nil {
		config.Logger = logger.Default()
	}

	// gin.SetMode 是全局状态，进程内只应有一个 Engine
	if gin.Mode() == gin.DebugMode || config.Mode != gin.DebugMode {
		gin.SetMode(config.Mode)
	}
	silenceGin()

	ginEngine := gin.New()
	ginEngine.MaxMultipartMemory = config.MaxMultipartMemory
	ginEngine.HandleMethodNotAllowed = true

	e := &Engine{
		engine: ginEngine,
		config: config,
		logger: config.Logger.Named("http"),
	}

	if config.TrustedProxies != nil {
		if err := ginEngine.SetTrustedProxies(config.TrustedProxies); err != nil {
			e.logger.Warn("set trusted proxies failed", zap.Error(err))
		}
	}

	ginEngine.Use(wrap(Recovery(e.logger)))
	ginEngine.NoRoute(wrap(notFound))
	ginEngine.NoMethod(wrap(methodNotAllowed))
	return e
}

// Default 创建带访问日志的 Engine
func Default(opts ...Option) *Engine {
	e := New(opts...)
	e.engine.Use(wrap(Logger(e.logger)))
	return e
}

// Use 注册全局中间件
func (e *Engine) Use(middlewares ...HandlerFunc) {
	e.engine.Use(WrapHandlers(middlewares...)...)
}

// Group 返回路由组
func (e *Engine) Group(path string, middlewares ...HandlerFunc) *RouterGroup {
	return &RouterGroup{
		group: e.engine.Group(path, WrapHandlers(middlewares...)...),
	}
}

// RouterGroup 返回根路由组
func (e *Engine) RouterGroup() *RouterGroup {
	return &RouterGroup{
		group: &e.engine.RouterGroup,
	}
}

// Handler 返回 http.Handler，供测试和自定义 Server 使用
func (e *Engine) Handler() http.Handler {
	return e.engine
}

// Logger 服务日志
func (e *Engine) Logger() logger.Logger {
	return e.logger
}

// Run 监听配置地址，直到 ctx 取消后优雅关机
func (e *Engine) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", e.config.Server.Addr)
	if err != nil {
		return err
	}
	return e.Serve(ctx, ln)
}

// Serve 在 ln 上提供服务，直到 ctx 取消或服务出错
func (e *Engine) Serve(ctx context.Context, ln net.Listener) error {
	e.server = &http.Server{
		Handler:        e.engine,
		ReadTimeout:    e.config.Server.ReadTimeout,
		WriteTimeout:   e.config.Server.WriteTimeout,
		IdleTimeout:    e.config.Server.IdleTimeout,
		MaxHeaderBytes: e.config.Server.MaxHeaderBytes,
	}

	if e.config.Banner {
		e.printBanner(ln.Addr().String())
	}

	errChan := make(chan error, 1)
	go func() {
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()
	e.logger.Info("server started", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		e.logger.Info("shutting down server")
	}
	return e.gracefulShutdown()
}

func (e *Engine) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), e.config.Shutdown.Timeout)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		e.logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}
	e.logger.Info("server exited")
	return nil
}

// Shutdown 手动关闭服务器
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.server == nil {
		return nil
	}

	if e.config.Shutdown.BeforeShutdown != nil {
		e.config.Shutdown.BeforeShutdown()
	}

	err := e.server.Shutdown(ctx)

	if e.config.Shutdown.AfterShutdown != nil {
		e.config.Shutdown.AfterShutdown()
	}
	return err
}
