package advisor

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tokmz/advisor/pkg/logger"
)

// ServerConfig 服务器配置
type ServerConfig struct {
	// Addr 监听地址，默认 ":8000"
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxHeaderBytes 最大请求头字节数
	MaxHeaderBytes int
}

// ShutdownConfig 关机配置
type ShutdownConfig struct {
	// Timeout 关机超时时间，默认 10 秒
	Timeout time.Duration

	// BeforeShutdown 关机前回调
	BeforeShutdown func()

	// AfterShutdown 关机后回调
	AfterShutdown func()
}

// Config 应用配置
type Config struct {
	// Name 服务名，用于 banner
	Name string

	// Version 服务版本
	Version string

	// Mode 运行模式：debug, release, test
	Mode string

	Server   ServerConfig
	Shutdown ShutdownConfig

	// TrustedProxies 信任的代理 IP
	TrustedProxies []string

	// MaxMultipartMemory 最大 multipart 内存（字节）
	MaxMultipartMemory int64

	// Logger 服务日志，nil 时使用 logger.Default()
	Logger logger.Logger

	// Banner 是否打印启动 banner 和路由表
	Banner bool
}

// Option 配置选项函数
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		Name:    "Advisor",
		Version: Version,
		Mode:    gin.DebugMode,
		Server: ServerConfig{
			Addr:           ":8000",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 20, // 1MB
		},
		Shutdown: ShutdownConfig{
			Timeout: 10 * time.Second,
		},
		MaxMultipartMemory: 32 << 20, // 32MB
		Banner:             true,
	}
}

// WithName 设置服务名
func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// WithVersion 设置服务版本
func WithVersion(version string) Option {
	return func(c *Config) {
		c.Version = version
	}
}

// WithMode 设置运行模式
func WithMode(mode string) Option {
	return func(c *Config) {
		c.Mode = mode
	}
}

// WithAddr 设置监听地址
func WithAddr(addr string) Option {
	return func(c *Config) {
		c.Server.Addr = addr
	}
}

// WithTimeouts 设置读、写、空闲超时，零值保持默认
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(c *Config) {
		if read > 0 {
			c.Server.ReadTimeout = read
		}
		if write > 0 {
			c.Server.WriteTimeout = write
		}
		if idle > 0 {
			c.Server.IdleTimeout = idle
		}
	}
}

// WithShutdownTimeout 设置关机超时时间
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Shutdown.Timeout = timeout
	}
}

// WithBeforeShutdown 设置关机前回调
func WithBeforeShutdown(fn func()) Option {
	return func(c *Config) {
		c.Shutdown.BeforeShutdown = fn
	}
}

// WithAfterShutdown 设置关机后回调
func WithAfterShutdown(fn func()) Option {
	return func(c *Config) {
		c.Shutdown.AfterShutdown = fn
	}
}

// WithTrustedProxies 设置信任的代理
func WithTrustedProxies(proxies ...string) Option {
	return func(c *Config) {
		c.TrustedProxies = proxies
	}
}

// WithMaxMultipartMemory 设置最大 multipart 内存
func WithMaxMultipartMemory(size int64) Option {
	return func(c *Config) {
		c.MaxMultipartMemory = size
	}
}

// WithLogger 设置服务日志
func WithLogger(l logger.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithBanner 是否打印 banner
func WithBanner(enable bool) Option {
	return func(c *Config) {
		c.Banner = enable
	}
}
