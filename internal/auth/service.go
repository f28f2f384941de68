// Package auth 注册、登录与访问令牌
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tokmz/advisor/internal/model"
	"github.com/tokmz/advisor/pkg/broker"
	"github.com/tokmz/advisor/pkg/logger"
)

// EventUserRegistered 新用户注册事件
const EventUserRegistered = "user.registered"

// SignupRequest 注册请求
type SignupRequest struct {
	FirstName string `json:"firstName" binding:"required,max=100"`
	LastName  string `json:"lastName" binding:"required,max=100"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
}

// SigninRequest 登录请求
type SigninRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// GoogleRequest Google 登录请求
type GoogleRequest struct {
	IDToken string `json:"idToken" binding:"required"`
	Name    string `json:"name"`
}

// Result 登录类接口的响应
type Result struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    *model.User `json:"user"`
}

// Service 认证服务
type Service struct {
	db        *gorm.DB
	tokens    *TokenManager
	hasher    *Hasher
	google    GoogleVerifier
	publisher broker.Publisher
	log       logger.Logger
	now       func() time.Time
}

// NewService 创建认证服务，google 为 nil 时 Google 登录不可用
func NewService(db *gorm.DB, tokens *TokenManager, hasher *Hasher, google GoogleVerifier, publisher broker.Publisher, log logger.Logger) *Service {
	if publisher == nil {
		publisher = broker.Noop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		db:        db,
		tokens:    tokens,
		hasher:    hasher,
		google:    google,
		publisher: publisher,
		log:       log.Named("auth"),
		now:       time.Now,
	}
}

// Tokens 令牌管理器
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// Signup 手动注册，成功后即视为在线
func (s *Service) Signup(ctx context.Context, req *SignupRequest) (*Result, error) {
	email := normalizeEmail(req.Email)

	exists, err := s.emailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &model.User{
		UserID:       email,
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Password:     hash,
		AuthProvider: model.ProviderManual,
		Status:       model.StatusOnline,
		IsActive:     true,
		ChatSettings: model.DefaultChatSettings(),
		Preferences:  model.DefaultPreferences(),
		LastActivity: now,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	s.publish(ctx, user)
	s.log.InfoContext(ctx, "user registered", zap.String("email", email), zap.String("provider", model.ProviderManual))
	return s.result(user, "Registration successful")
}

// Signin 邮箱密码登录
func (s *Service) Signin(ctx context.Context, req *SigninRequest) (*Result, error) {
	email := normalizeEmail(req.Email)

	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.Password == "" || !s.hasher.Verify(req.Password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	if err := s.markOnline(ctx, &user); err != nil {
		return nil, err
	}
	return s.result(&user, "Login successful")
}

// Google 以 Google ID token 登录，首次登录时创建用户
func (s *Service) Google(ctx context.Context, req *GoogleRequest) (*Result, error) {
	if s.google == nil {
		return nil, ErrGoogleToken.WithMessage("Google sign-in is not configured")
	}

	identity, err := s.google.Verify(ctx, req.IDToken)
	if err != nil {
		return nil, err
	}
	email := normalizeEmail(identity.Email)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = identity.Name
	}
	first, last := splitName(name)

	var user model.User
	err = s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = model.User{
			UserID:       email,
			Email:        email,
			FirstName:    first,
			LastName:     last,
			AuthProvider: model.ProviderGoogle,
			GoogleUID:    identity.UID,
			Status:       model.StatusOnline,
			IsActive:     true,
			ChatSettings: model.DefaultChatSettings(),
			Preferences:  model.DefaultPreferences(),
			LastActivity: s.now().UTC(),
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, err
		}
		s.publish(ctx, &user)
		s.log.InfoContext(ctx, "user registered", zap.String("email", email), zap.String("provider", model.ProviderGoogle))
	case err != nil:
		return nil, err
	default:
		if !user.IsActive {
			return nil, ErrUserInactive
		}
		user.GoogleUID = identity.UID
		if err := s.markOnline(ctx, &user); err != nil {
			return nil, err
		}
	}

	return s.result(&user, "Google login successful!")
}

// Profile 当前用户
func (s *Service) Profile(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).First(&user, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) emailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) markOnline(ctx context.Context, user *model.User) error {
	user.Status = model.StatusOnline
	user.LastActivity = s.now().UTC()
	return s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"status":        user.Status,
		"last_activity": user.LastActivity,
		"google_uid":    user.GoogleUID,
	}).Error
}

func (s *Service) result(user *model.User, message string) (*Result, error) {
	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return nil, err
	}
	return &Result{Message: message, Token: token, User: user}, nil
}

// publish 事件发布失败不影响注册结果
func (s *Service) publish(ctx context.Context, user *model.User) {
	ev := broker.NewEvent(EventUserRegistered, user.UserID, map[string]string{
		"user_id":       user.UserID,
		"auth_provider": user.AuthProvider,
	})
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.WarnContext(ctx, "publish user.registered failed", zap.Error(err))
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// splitName 第一个词为名，其余为姓
func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "Google", "User"
	case 1:
		return parts[0], "User"
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// ProfileResult GET /auth/profile 响应
type ProfileResult struct {
	User *model.User `json:"user"`
}
