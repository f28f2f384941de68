// Package server 按配置组装基础设施、业务服务与 HTTP 路由
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tokmz/advisor"
	"github.com/tokmz/advisor/internal/auth"
	"github.com/tokmz/advisor/internal/chat"
	"github.com/tokmz/advisor/internal/document"
	"github.com/tokmz/advisor/internal/housekeeping"
	"github.com/tokmz/advisor/internal/model"
	"github.com/tokmz/advisor/internal/profile"
	"github.com/tokmz/advisor/internal/system"
	"github.com/tokmz/advisor/internal/user"
	"github.com/tokmz/advisor/middleware"
	"github.com/tokmz/advisor/pkg/broker"
	"github.com/tokmz/advisor/pkg/cache"
	"github.com/tokmz/advisor/pkg/config"
	"github.com/tokmz/advisor/pkg/logger"
	"github.com/tokmz/advisor/pkg/orm"
	"github.com/tokmz/advisor/pkg/storage"
	"github.com/tokmz/advisor/pkg/tracing"
	"github.com/tokmz/advisor/pkg/ws"
)

// SocketPath WebSocket 握手路由，不参与请求超时与限流
const SocketPath = "/api/chat/ws"

// Server 进程内全部组件
type Server struct {
	cfg *config.AppConfig
	log logger.Logger

	tracer    *tracing.Provider
	db        *gorm.DB
	cache     cache.Cache
	store     storage.Storage
	publisher broker.Publisher
	manager   *ws.Manager
	jobs      *housekeeping.Scheduler
	engine    *advisor.Engine
}

// New 依次建立 tracing、数据库、缓存、对象存储、消息发布与连接管理器，任一步失败时释放已建立的资源
func New(ctx context.Context, cfg *config.AppConfig, log logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{cfg: cfg, log: log}
	if err := s.open(ctx); err != nil {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = s.Close(closeCtx)
		return nil, err
	}
	return s, nil
}

func (s *Server) open(ctx context.Context) error {
	cfg := s.cfg

	var err error
	if s.tracer, err = tracing.NewProvider(ctx, tracingConfig(cfg)); err != nil {
		return err
	}
	if s.db, err = orm.Open(ormConfig(cfg, s.log)); err != nil {
		return err
	}
	if cfg.Database.AutoMigrate {
		if err = model.Migrate(s.db); err != nil {
			return fmt.Errorf("server: migrate: %w", err)
		}
	}
	cc := cacheConfig(cfg)
	if s.cache, err = cache.New(cc); err != nil {
		return err
	}
	s.cache = cache.NewTracing(s.cache, string(cc.Driver))
	if s.store, err = storage.New(storageConfig(cfg)); err != nil {
		return err
	}
	if s.publisher, err = broker.New(brokerConfig(cfg), s.log.Zap()); err != nil {
		return err
	}
	return s.build()
}

// build 组装业务服务与路由；连接管理器需在 Run 之前挂载全部处理器
func (s *Server) build() error {
	cfg := s.cfg

	chatSvc := chat.NewService(s.db, s.publisher, chat.Options{
		MaxContentLength: cfg.Chat.MaxContentLength,
		DefaultRoom:      cfg.Chat.DefaultRoom,
	}, s.log)

	manager, err := ws.NewManager(
		ws.WithMaxConnections(cfg.Chat.MaxConnections),
		ws.WithMessageSizeLimit(cfg.Chat.MaxMessageSize),
		ws.WithSendQueueSize(cfg.Chat.SendQueueSize),
		ws.WithMaxInvalidMessages(int32(cfg.Chat.MaxInvalidMessages)),
		ws.WithSweepInterval(cfg.Chat.SweepInterval),
		ws.WithTypingTimeout(cfg.Chat.TypingTimeout),
		ws.WithSessionTimeout(cfg.Chat.SessionTimeout),
		ws.WithCheckOrigin(checkOrigin(cfg.CORS.AllowOrigins)),
		ws.WithRoomGuard(chatSvc.GuardRoom),
		ws.WithLogger(s.log.Zap()),
	)
	if err != nil {
		return err
	}
	s.manager = manager

	userSvc := user.NewService(s.db, manager, s.log)
	chatSvc.Mount(manager)
	userSvc.Subscribe(manager)
	if err := manager.Run(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := chatSvc.EnsureDefaultRoom(ctx); err != nil {
		return fmt.Errorf("server: default room: %w", err)
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		// 生产环境由配置校验拦截
		secret = uuid.NewString()
		s.log.Warn("auth.jwt_secret is empty, tokens will not survive a restart")
	}
	tokens := auth.NewTokenManager(secret, cfg.Auth.AccessTokenExpire)
	var google auth.GoogleVerifier
	if cfg.Auth.GoogleClientID != "" {
		google = auth.NewTokenInfoVerifier(googleClient(cfg, s.log), cfg.Auth.GoogleTokenInfoURL, cfg.Auth.GoogleClientID)
	}
	authSvc := auth.NewService(s.db, tokens, auth.NewHasher(0), google, s.publisher, s.log)

	profileSvc := profile.NewService(s.db, s.cache, cfg.Cache.ProfileTTL, s.log)
	documentSvc := document.NewService(s.db, s.store, s.publisher, document.Limits{
		MaxFileSize:     cfg.Storage.MaxFileSize,
		MaxCertificates: cfg.Storage.MaxCertificates,
	}, s.log)
	systemSvc := system.NewService(s.db, system.Dependencies{
		Database: system.PingFunc(func(ctx context.Context) error { return orm.Ping(ctx, s.db) }),
		Cache:    s.cache,
		Storage:  s.store,
	}, manager, system.Info{
		Name:             cfg.App.Name,
		Version:          cfg.App.Version,
		Environment:      cfg.App.Environment,
		Debug:            cfg.App.Debug,
		PublicURL:        cfg.Server.PublicURL,
		GoogleAuth:       google != nil,
		MaxContentLength: cfg.Chat.MaxContentLength,
		MaxFileSize:      cfg.Storage.MaxFileSize,
		MaxCertificates:  cfg.Storage.MaxCertificates,
		MaxConnections:   cfg.Chat.MaxConnections,
	})

	s.jobs = housekeeping.New(s.log)
	if spec := cfg.Chat.PresenceReconcile; spec != "" {
		err := s.jobs.Add(housekeeping.Job{
			Name:       "presence-reconcile",
			Spec:       spec,
			Run:        housekeeping.ReconcilePresence(s.db, manager, nil),
			RunOnStart: true,
			Timeout:    time.Minute,
		})
		if err != nil {
			return err
		}
	}

	s.engine = s.newEngine()
	s.routes(handlers{
		tokens:   tokens,
		auth:     auth.NewHandler(authSvc),
		user:     user.NewHandler(userSvc),
		profile:  profile.NewHandler(profileSvc),
		document: document.NewHandler(documentSvc),
		chat:     chat.NewHandler(chatSvc, manager, userSvc),
		system:   system.NewHandler(systemSvc),
	})
	return nil
}

func (s *Server) newEngine() *advisor.Engine {
	cfg := s.cfg
	mode := gin.ReleaseMode
	if cfg.App.Debug {
		mode = gin.DebugMode
	}
	return advisor.Default(
		advisor.WithName(cfg.App.Name),
		advisor.WithVersion(cfg.App.Version),
		advisor.WithMode(mode),
		advisor.WithAddr(cfg.Server.Addr()),
		advisor.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout),
		advisor.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		advisor.WithMaxMultipartMemory(cfg.Storage.MaxFileSize),
		advisor.WithLogger(s.log),
		advisor.WithBanner(cfg.App.Debug),
	)
}

// Handler HTTP 入口，供测试使用
func (s *Server) Handler() http.Handler {
	return s.engine.Handler()
}

// Run 启动维护任务并提供 HTTP 服务，ctx 取消后按顺序关闭全部组件
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve 在 ln 上提供服务
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.jobs.Start(ctx); err != nil {
		_ = ln.Close()
		return err
	}

	serveErr := s.engine.Serve(ctx, ln)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	return errors.Join(serveErr, s.Close(closeCtx))
}

// Close 关闭 HTTP 之外的组件：连接管理器、维护任务、消息发布、对象存储、缓存、数据库、tracing
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	step := func(name string, fn func() error) {
		if err := fn(); err != nil {
			s.log.Warn("shutdown step failed", zap.String("component", name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if s.manager != nil {
		step("ws", func() error { return s.manager.Shutdown(ctx) })
	}
	if s.jobs != nil {
		step("housekeeping", func() error { return s.jobs.Stop(ctx) })
	}
	if s.publisher != nil {
		step("broker", s.publisher.Close)
	}
	if s.store != nil {
		step("storage", s.store.Close)
	}
	if s.cache != nil {
		step("cache", s.cache.Close)
	}
	if s.db != nil {
		step("database", func() error { return orm.Close(s.db) })
	}
	if s.tracer != nil {
		step("tracing", func() error { return s.tracer.Shutdown(ctx) })
	}
	return errors.Join(errs...)
}

// checkOrigin 握手复用 CORS 白名单，未携带 Origin 的非浏览器客户端放行
func checkOrigin(allowOrigins []string) func(*http.Request) bool {
	match := middleware.OriginMatcher(allowOrigins)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || match(origin)
	}
}
