// Package system 服务信息、健康检查与平台统计
package system

import (
	"context"
	"runtime"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tokmz/advisor/internal/model"
	"github.com/tokmz/advisor/pkg/ws"
)

// ServiceName 健康检查中的服务名
const ServiceName = "student-advisor-portal"

// 健康状态
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// Pinger 可探活的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc 函数适配 Pinger
type PingFunc func(ctx context.Context) error

// Ping 实现 Pinger
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Connections 实时连接统计来源
type Connections interface {
	ConnectionCount() int
	Stats() ws.Stats
}

// Info 对外公布的服务信息
type Info struct {
	Name             string
	Version          string
	Environment      string
	Debug            bool
	PublicURL        string
	GoogleAuth       bool
	MaxContentLength int
	MaxFileSize      int64
	MaxCertificates  int
	MaxConnections   int
}

// Dependencies 健康检查涉及的依赖，Database 决定整体可用性
type Dependencies struct {
	Database Pinger
	Cache    Pinger
	Storage  Pinger
}

// Check 单个依赖的探活结果
type Check struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Health 健康检查结果
type Health struct {
	Status               string    `json:"status"`
	Timestamp            time.Time `json:"timestamp"`
	Database             Check     `json:"database"`
	Cache                Check     `json:"cache"`
	Storage              Check     `json:"storage"`
	WebsocketConnections int       `json:"websocket_connections"`
	Service              string    `json:"service"`
}

// PlatformStats 平台统计
type PlatformStats struct {
	TotalUsers    int64 `json:"total_users"`
	TotalRooms    int64 `json:"total_rooms"`
	MessagesToday int64 `json:"messages_today"`
	OnlineUsers   int   `json:"online_users"`
	ActiveRooms   int   `json:"active_rooms"`
}

// Service 系统服务
type Service struct {
	db    *gorm.DB
	deps  Dependencies
	conns Connections
	info  Info
	now   func() time.Time
}

// NewService 创建系统服务
func NewService(db *gorm.DB, deps Dependencies, conns Connections, info Info) *Service {
	return &Service{db: db, deps: deps, conns: conns, info: info, now: time.Now}
}

// Health 探测所有依赖，数据库不可用时整体不健康，其余依赖失败为降级
func (s *Service) Health(ctx context.Context) *Health {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	h := &Health{
		Status:               StatusHealthy,
		Timestamp:            s.now().UTC(),
		Database:             probe(ctx, s.deps.Database),
		Cache:                probe(ctx, s.deps.Cache),
		Storage:              probe(ctx, s.deps.Storage),
		WebsocketConnections: s.conns.ConnectionCount(),
		Service:              ServiceName,
	}
	switch {
	case h.Database.Status != StatusHealthy:
		h.Status = StatusUnhealthy
	case h.Cache.Status == StatusUnhealthy, h.Storage.Status == StatusUnhealthy:
		h.Status = StatusDegraded
	}
	return h
}

// Stats 用户、房间与最近 24 小时消息数
func (s *Service) Stats(ctx context.Context) (*PlatformStats, error) {
	st := &PlatformStats{}
	db := s.db.WithContext(ctx)
	if err := db.Model(&model.User{}).Where("is_active = ?", true).Count(&st.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Room{}).Where("is_active = ?", true).Count(&st.TotalRooms).Error; err != nil {
		return nil, err
	}
	since := s.now().UTC().Add(-24 * time.Hour)
	if err := db.Model(&model.Message{}).Where("timestamp >= ?", since).Count(&st.MessagesToday).Error; err != nil {
		return nil, err
	}

	live := s.conns.Stats()
	st.OnlineUsers = live.TotalConnections
	st.ActiveRooms = live.ActiveRooms
	return st, nil
}

// Root GET / 的服务简介
func (s *Service) Root() map[string]any {
	return map[string]any{
		"message":       s.info.Name + " API",
		"version":       s.info.Version,
		"status":        "running",
		"websocket_url": "/api/chat/ws",
		"features":      s.features(),
	}
}

// Version GET /api/version
func (s *Service) Version() map[string]any {
	return map[string]any{
		"version":     s.info.Version,
		"name":        s.info.Name,
		"environment": s.info.Environment,
		"debug_mode":  s.info.Debug,
		"go_version":  runtime.Version(),
		"features":    s.features(),
	}
}

// ClientConfig GET /api/config 的前端配置
func (s *Service) ClientConfig() map[string]any {
	base := strings.TrimRight(s.info.PublicURL, "/")
	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/api/chat/ws"
	return map[string]any{
		"websocket_url": wsURL,
		"api_base_url":  base,
		"features": map[string]bool{
			"chat":          true,
			"google_auth":   s.info.GoogleAuth,
			"manual_auth":   true,
			"file_upload":   true,
			"notifications": true,
		},
		"limits": map[string]any{
			"message_length":   s.info.MaxContentLength,
			"file_size_mb":     s.info.MaxFileSize >> 20,
			"max_certificates": s.info.MaxCertificates,
			"max_connections":  s.info.MaxConnections,
		},
		"environment": s.info.Environment,
		"debug":       s.info.Debug,
	}
}

func (s *Service) features() map[string]bool {
	return map[string]bool{
		"authentication":      true,
		"user_management":     true,
		"chat_system":         true,
		"career_guidance":     true,
		"profile_management":  true,
		"document_upload":     true,
		"real_time_messaging": true,
		"google_oauth":        s.info.GoogleAuth,
	}
}

func probe(ctx context.Context, p Pinger) Check {
	if p == nil {
		return Check{Status: "disabled"}
	}
	if err := p.Ping(ctx); err != nil {
		return Check{Status: StatusUnhealthy, Error: err.Error()}
	}
	return Check{Status: StatusHealthy}
}
