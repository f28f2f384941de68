// Package user 用户资料、在线状态与设置
package user

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tokmz/advisor/internal/model"
	"github.com/tokmz/advisor/pkg/logger"
)

// Statuses 允许的用户状态
var Statuses = []string{model.StatusOnline, model.StatusOffline, model.StatusAway, model.StatusBusy}

// Presence 实时在线查询
type Presence interface {
	IsOnline(userID string) bool
}

// ProfileUpdate 资料更新，nil 字段不修改
type ProfileUpdate struct {
	FirstName *string `json:"firstName" binding:"omitempty,max=100"`
	LastName  *string `json:"lastName" binding:"omitempty,max=100"`
	AvatarURL *string `json:"avatar_url" binding:"omitempty,max=512"`
	Bio       *string `json:"bio" binding:"omitempty,max=1000"`
	Status    *string `json:"status"`
}

// ChatInfo 聊天界面所需的用户信息
type ChatInfo struct {
	UserID       string         `json:"user_id"`
	Username     string         `json:"username"`
	Email        string         `json:"email"`
	AvatarURL    *string        `json:"avatar_url"`
	Status       string         `json:"status"`
	LastActivity time.Time      `json:"last_activity"`
	ChatSettings model.Settings `json:"chat_settings"`
	IsOnline     bool           `json:"is_online"`
}

// SettingsView 用户设置的四个分区
type SettingsView struct {
	ChatSettings  model.Settings `json:"chat_settings"`
	Preferences   model.Settings `json:"preferences"`
	Privacy       model.Settings `json:"privacy"`
	Notifications model.Settings `json:"notifications"`
}

// Service 用户服务
type Service struct {
	db       *gorm.DB
	presence Presence
	log      logger.Logger
	now      func() time.Time
}

// NewService 创建用户服务
func NewService(db *gorm.DB, presence Presence, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{db: db, presence: presence, log: log.Named("user"), now: time.Now}
}

// Get 按 id 查询用户
func (s *Service) Get(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).First(&u, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// DisplayName 用户显示名，查询失败时返回用户 id
func (s *Service) DisplayName(ctx context.Context, userID string) string {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return userID
	}
	return u.DisplayName()
}

// UpdateProfile 更新资料并返回最新记录
func (s *Service) UpdateProfile(ctx context.Context, userID string, req *ProfileUpdate) (*model.User, error) {
	updates := map[string]any{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = *req.AvatarURL
	}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if req.Status != nil {
		if !slices.Contains(Statuses, *req.Status) {
			return nil, ErrInvalidStatus.WithMessagef("Invalid status %q", *req.Status)
		}
		updates["status"] = *req.Status
	}

	if err := s.update(ctx, userID, updates); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// ChatInfo 返回聊天信息，is_online 以实时连接为准
func (s *Service) ChatInfo(ctx context.Context, userID string) (*ChatInfo, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ChatInfo{
		UserID:       u.UserID,
		Username:     u.DisplayName(),
		Email:        u.Email,
		AvatarURL:    u.AvatarURL,
		Status:       u.Status,
		LastActivity: u.LastActivity,
		ChatSettings: u.ChatSettings,
		IsOnline:     s.presence != nil && s.presence.IsOnline(userID),
	}, nil
}

// UpdateStatus 修改状态并刷新最后活跃时间
func (s *Service) UpdateStatus(ctx context.Context, userID, status string) error {
	if !slices.Contains(Statuses, status) {
		return ErrInvalidStatus.WithMessagef("Invalid status %q", status)
	}
	return s.update(ctx, userID, map[string]any{
		"status":        status,
		"last_activity": s.now().UTC(),
	})
}

// Settings 读取设置
func (s *Service) Settings(ctx context.Context, userID string) (*SettingsView, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &SettingsView{
		ChatSettings:  orEmpty(u.ChatSettings),
		Preferences:   orEmpty(u.Preferences),
		Privacy:       orEmpty(u.Privacy),
		Notifications: orEmpty(u.Notifications),
	}, nil
}

// UpdateSettings 按分区合并设置，未出现的分区保持不变
func (s *Service) UpdateSettings(ctx context.Context, userID string, patch map[string]model.Settings) (*SettingsView, error) {
	for section := range patch {
		if !slices.Contains(settingsSections, section) {
			return nil, ErrInvalidSection.WithMessagef("Invalid settings section %q", section)
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u model.User
		err := tx.First(&u, "user_id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}

		u.ChatSettings = merge(u.ChatSettings, patch["chat_settings"])
		u.Preferences = merge(u.Preferences, patch["preferences"])
		u.Privacy = merge(u.Privacy, patch["privacy"])
		u.Notifications = merge(u.Notifications, patch["notifications"])

		return tx.Model(&u).Select("chat_settings", "preferences", "privacy", "notifications").Updates(&u).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Settings(ctx, userID)
}

// SyncPresence 按实时连接状态写回 online/offline
//
// 会话替换时关闭与建立事件可能乱序到达，因此以管理器的当前状态为准
func (s *Service) SyncPresence(ctx context.Context, userID string, at time.Time) {
	status := model.StatusOffline
	if s.presence != nil && s.presence.IsOnline(userID) {
		status = model.StatusOnline
	}

	err := s.update(ctx, userID, map[string]any{
		"status":        status,
		"last_activity": at.UTC(),
	})
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		s.log.WarnContext(ctx, "sync presence failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *Service) update(ctx context.Context, userID string, updates map[string]any) error {
	if len(updates) == 0 {
		_, err := s.Get(ctx, userID)
		return err
	}
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("user_id = ?", userID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

var settingsSections = []string{"chat_settings", "preferences", "privacy", "notifications"}

func merge(dst, patch model.Settings) model.Settings {
	if len(patch) == 0 {
		return dst
	}
	out := make(model.Settings, len(dst)+len(patch))
	maps.Copy(out, dst)
	maps.Copy(out, patch)
	return out
}

func orEmpty(s model.Settings) model.Settings {
	if s == nil {
		return model.Settings{}
	}
	return s
}
