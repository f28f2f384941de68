// Package profile 职业档案与职业表单
package profile

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tokmz/advisor/internal/model"
	"github.com/tokmz/advisor/pkg/cache"
	"github.com/tokmz/advisor/pkg/logger"
)

// Service 职业档案服务，读取走旁路缓存
type Service struct {
	db    *gorm.DB
	cache *cache.Group
	ttl   time.Duration
	log   logger.Logger
}

// NewService 创建档案服务
func NewService(db *gorm.DB, c cache.Cache, ttl time.Duration, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{db: db, cache: cache.NewGroup(c), ttl: ttl, log: log.Named("profile")}
}

func cacheKey(userID string) string {
	return "profile:" + userID
}

// Get 查询档案，不存在时返回 ErrProfileNotFound
func (s *Service) Get(ctx context.Context, userID string) (*Response, error) {
	userID, err := normalizeID(userID)
	if err != nil {
		return nil, err
	}
	return cache.Remember(ctx, s.cache, cacheKey(userID), s.ttl, func(ctx context.Context) (*Response, error) {
		var m model.CareerProfile
		err := s.db.WithContext(ctx).First(&m, "user_id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		if err != nil {
			return nil, err
		}
		return fromModel(&m), nil
	})
}

// Exists 档案是否存在
func (s *Service) Exists(ctx context.Context, userID string) (bool, error) {
	_, err := s.Get(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Create 创建档案，已存在时返回 ErrProfileExists
func (s *Service) Create(ctx context.Context, userID string, p *Profile) (*Response, error) {
	userID, err := normalizeID(userID)
	if err != nil {
		return nil, err
	}

	m := toModel(userID, p)
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrProfileExists
		}
		return nil, err
	}
	s.invalidate(ctx, userID)
	s.log.InfoContext(ctx, "profile created", zap.String("user_id", userID))
	return fromModel(m), nil
}

// Upsert 创建或整体覆盖档案，冲突时不改写创建时间
func (s *Service) Upsert(ctx context.Context, userID string, p *Profile) (*Response, error) {
	userID, err := normalizeID(userID)
	if err != nil {
		return nil, err
	}

	m := toModel(userID, p)
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(m).Error
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return s.Get(ctx, userID)
}

// Delete 删除档案，不存在时返回 ErrProfileNotFound
func (s *Service) Delete(ctx context.Context, userID string) error {
	userID, err := normalizeID(userID)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Delete(&model.CareerProfile{}, "user_id = ?", userID)
	if res.Error != nil {
		return res.Error
	}
	s.invalidate(ctx, userID)
	if res.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// SubmitCareerForm 更新职业与教育背景，档案不存在时创建只含邮箱的最小档案
func (s *Service) SubmitCareerForm(ctx context.Context, email string, form *CareerForm) (*Response, error) {
	if !form.complete() {
		return nil, ErrMissingFields
	}

	current, err := s.Get(ctx, email)
	var p Profile
	switch {
	case err == nil:
		p = current.Profile
	case errors.Is(err, ErrProfileNotFound):
		p = Profile{PersonalInfo: PersonalInfo{Email: strings.TrimSpace(email)}}
	default:
		return nil, err
	}

	p.CareerInfo = CareerInfo{
		CurrentRole:       form.CurrentRole,
		Industry:          form.Industry,
		ExpectedSalary:    form.ExpectedSalary,
		PreferredLocation: form.PreferredLocation,
	}
	p.AcademicBackground = &AcademicBackground{
		EducationLevel:    form.EducationLevel,
		FieldOfStudy:      form.FieldOfStudy,
		YearsOfExperience: form.YearsOfExperience,
		Interests:         form.Interests,
	}
	return s.Upsert(ctx, email, &p)
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Invalidate(ctx, cacheKey(userID)); err != nil {
		s.log.WarnContext(ctx, "invalidate profile cache failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func normalizeID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrUserIDRequired
	}
	return userID, nil
}
