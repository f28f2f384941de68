package ws

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config 连接管理器配置
type Config struct {
	// 连接配置
	MaxConnections     int           // 最大在线会话数
	HandshakeTimeout   time.Duration // 握手超时时间
	MaxMessageSize     int64         // 入站消息最大字节数
	SendQueueSize      int           // 每个连接的发送队列长度
	WriteWait          time.Duration // 单帧写超时
	MaxInvalidMessages int32         // 连续无效消息上限，超过后关闭连接

	// 清理配置
	SweepInterval  time.Duration // 后台清理间隔
	TypingTimeout  time.Duration // 输入状态过期时间
	SessionTimeout time.Duration // 会话不活跃过期时间

	// Upgrader 配置
	UpgraderConfig UpgraderConfig

	// RoomGuard 入站 join_room 的准入检查，返回错误则拒绝加入；
	// maxMembers > 0 时由管理器在加入的同一临界区内校验容量
	RoomGuard func(userID, roomID string) (maxMembers int, err error)

	// 监控与日志
	Metrics Metrics
	Logger  *zap.Logger

	// Clock 时间源，测试中可替换
	Clock func() time.Time
}

// UpgraderConfig Upgrader 配置
type UpgraderConfig struct {
	ReadBufferSize    int                      // 读缓冲区大小
	WriteBufferSize   int                      // 写缓冲区大小
	CheckOrigin       func(*http.Request) bool // Origin 检查函数
	EnableCompression bool                     // 是否启用压缩
	AllowedOrigins    []string                 // 允许的 Origin 白名单
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		MaxConnections:     10000,
		HandshakeTimeout:   10 * time.Second,
		MaxMessageSize:     64 * 1024,
		SendQueueSize:      256,
		WriteWait:          10 * time.Second,
		MaxInvalidMessages: 10,
		SweepInterval:      30 * time.Second,
		TypingTimeout:      5 * time.Second,
		SessionTimeout:     30 * time.Minute,
		UpgraderConfig: UpgraderConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.MaxConnections <= 0 {
		return fmt.Errorf("MaxConnections must be positive, got %d", c.MaxConnections)
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("HandshakeTimeout must be positive, got %v", c.HandshakeTimeout)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("MaxMessageSize must be positive, got %d", c.MaxMessageSize)
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("SendQueueSize must be positive, got %d", c.SendQueueSize)
	}
	if c.WriteWait <= 0 {
		return fmt.Errorf("WriteWait must be positive, got %v", c.WriteWait)
	}
	if c.MaxInvalidMessages <= 0 {
		return fmt.Errorf("MaxInvalidMessages must be positive, got %d", c.MaxInvalidMessages)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SweepInterval must be positive, got %v", c.SweepInterval)
	}
	if c.TypingTimeout <= 0 {
		return fmt.Errorf("TypingTimeout must be positive, got %v", c.TypingTimeout)
	}
	if c.SessionTimeout <= c.TypingTimeout {
		return fmt.Errorf("SessionTimeout (%v) must be greater than TypingTimeout (%v)",
			c.SessionTimeout, c.TypingTimeout)
	}
	if c.UpgraderConfig.ReadBufferSize <= 0 {
		return fmt.Errorf("UpgraderConfig.ReadBufferSize must be positive, got %d", c.UpgraderConfig.ReadBufferSize)
	}
	if c.UpgraderConfig.WriteBufferSize <= 0 {
		return fmt.Errorf("UpgraderConfig.WriteBufferSize must be positive, got %d", c.UpgraderConfig.WriteBufferSize)
	}
	return nil
}

// Option 配置选项
type Option func(*Config)

// WithMaxConnections 设置最大连接数
func WithMaxConnections(max int) Option {
	return func(c *Config) {
		c.MaxConnections = max
	}
}

// WithMessageSizeLimit 设置消息大小限制
func WithMessageSizeLimit(size int64) Option {
	return func(c *Config) {
		c.MaxMessageSize = size
	}
}

// WithSendQueueSize 设置发送队列大小
func WithSendQueueSize(size int) Option {
	return func(c *Config) {
		c.SendQueueSize = size
	}
}

// WithMaxInvalidMessages 设置连续无效消息上限
func WithMaxInvalidMessages(n int32) Option {
	return func(c *Config) {
		c.MaxInvalidMessages = n
	}
}

// WithWriteWait 设置写超时
func WithWriteWait(d time.Duration) Option {
	return func(c *Config) {
		c.WriteWait = d
	}
}

// WithSweepInterval 设置后台清理间隔
func WithSweepInterval(d time.Duration) Option {
	return func(c *Config) {
		c.SweepInterval = d
	}
}

// WithTypingTimeout 设置输入状态过期时间
func WithTypingTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.TypingTimeout = d
	}
}

// WithSessionTimeout 设置会话不活跃过期时间
func WithSessionTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.SessionTimeout = d
	}
}

// WithCheckOrigin 设置 Origin 检查函数
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(c *Config) {
		c.UpgraderConfig.CheckOrigin = fn
	}
}

// WithCheckOriginWhitelist 设置 Origin 白名单，"*" 表示放行全部
func WithCheckOriginWhitelist(allowedOrigins []string) Option {
	return func(c *Config) {
		c.UpgraderConfig.AllowedOrigins = allowedOrigins
		c.UpgraderConfig.CheckOrigin = createWhitelistChecker(allowedOrigins)
	}
}

// WithAllowAllOrigins 允许所有来源（仅用于开发环境）
func WithAllowAllOrigins() Option {
	return func(c *Config) {
		c.UpgraderConfig.CheckOrigin = func(r *http.Request) bool {
			return true
		}
	}
}

// WithRoomGuard 设置入站加入房间的准入检查
func WithRoomGuard(fn func(userID, roomID string) (int, error)) Option {
	return func(c *Config) {
		c.RoomGuard = fn
	}
}

// WithMetrics 设置监控
func WithMetrics(metrics Metrics) Option {
	return func(c *Config) {
		c.Metrics = metrics
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithClock 设置时间源
func WithClock(clock func() time.Time) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

// defaultCheckOrigin 默认 Origin 检查（同源策略），无 Origin 的非浏览器客户端放行
func defaultCheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// createWhitelistChecker 创建白名单检查器
func createWhitelistChecker(allowedOrigins []string) func(*http.Request) bool {
	whitelist := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		whitelist[origin] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return false
		}
		return whitelist[origin]
	}
}

// newUpgrader 创建 gorilla 升级器
func newUpgrader(config UpgraderConfig, handshakeTimeout time.Duration) *websocket.Upgrader {
	checkOrigin := config.CheckOrigin
	if checkOrigin == nil {
		if len(config.AllowedOrigins) > 0 {
			checkOrigin = createWhitelistChecker(config.AllowedOrigins)
		} else {
			checkOrigin = defaultCheckOrigin
		}
	}

	return &websocket.Upgrader{
		HandshakeTimeout:  handshakeTimeout,
		ReadBufferSize:    config.ReadBufferSize,
		WriteBufferSize:   config.WriteBufferSize,
		CheckOrigin:       checkOrigin,
		EnableCompression: config.EnableCompression,
	}
}
