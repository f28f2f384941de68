// Package document 简历与证书上传
package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tokmz/advisor/internal/model"
	"github.com/tokmz/advisor/pkg/broker"
	"github.com/tokmz/advisor/pkg/logger"
	"github.com/tokmz/advisor/pkg/storage"
)

// EventDocumentsUploaded 上传完成事件
const EventDocumentsUploaded = "documents.uploaded"

// Limits 上传限制
type Limits struct {
	MaxFileSize     int64
	MaxCertificates int
}

// DefaultLimits 单文件 10MiB，最多 10 张证书
func DefaultLimits() Limits {
	return Limits{MaxFileSize: 10 << 20, MaxCertificates: 10}
}

// UploadInput 一次上传的表单内容
type UploadInput struct {
	UserEmail         string
	Domain            string
	PortfolioURL      string
	LinkedinURL       string
	GithubURL         string
	PersonalPortfolio string
	Resume            *multipart.FileHeader
	Certificates      []*multipart.FileHeader
}

// UploadedFile 上传结果中的单个文件
type UploadedFile struct {
	Type       string `json:"type"`
	Filename   string `json:"filename"`
	Size       int64  `json:"size"`
	StorageKey string `json:"storage_key"`
}

// UploadResult 上传结果
type UploadResult struct {
	Success         bool           `json:"success"`
	Message         string         `json:"message"`
	UserEmail       string         `json:"user_email"`
	UploadSessionID string         `json:"upload_session_id"`
	UploadedFiles   []UploadedFile `json:"uploaded_files"`
	SkippedFiles    []string       `json:"skipped_files,omitempty"`
	TotalFiles      int            `json:"total_files"`
	TotalSize       int64          `json:"total_size"`
	CreatedAt       time.Time      `json:"created_at"`
	Status          string         `json:"status"`
}

// Stats 文档统计
type Stats struct {
	UsersWithDocuments int64 `json:"users_with_documents"`
	TotalFiles         int64 `json:"total_files"`
	TotalSize          int64 `json:"total_size"`
}

// Service 文档服务，文件进对象存储，元数据进数据库
type Service struct {
	db        *gorm.DB
	store     storage.Storage
	publisher broker.Publisher
	limits    Limits
	log       logger.Logger
	now       func() time.Time
}

// NewService 创建文档服务
func NewService(db *gorm.DB, store storage.Storage, publisher broker.Publisher, limits Limits, log logger.Logger) *Service {
	if publisher == nil {
		publisher = broker.Noop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	def := DefaultLimits()
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = def.MaxFileSize
	}
	if limits.MaxCertificates <= 0 {
		limits.MaxCertificates = def.MaxCertificates
	}
	return &Service{
		db:        db,
		store:     store,
		publisher: publisher,
		limits:    limits,
		log:       log.Named("document"),
		now:       time.Now,
	}
}

// Limits 当前上传限制
func (s *Service) Limits() Limits {
	return s.limits
}

// Upload 校验并保存一次上传，整体替换该用户之前的文档信息
func (s *Service) Upload(ctx context.Context, in *UploadInput) (*UploadResult, error) {
	email, err := normalizeEmail(in.UserEmail)
	if err != nil {
		return nil, err
	}
	domain := strings.TrimSpace(in.Domain)
	if domain == "" {
		return nil, ErrDomainRequired
	}
	if in.Resume == nil || strings.TrimSpace(in.Resume.Filename) == "" {
		return nil, ErrResumeRequired
	}

	certs := make([]*multipart.FileHeader, 0, len(in.Certificates))
	for _, fh := range in.Certificates {
		if fh != nil && strings.TrimSpace(fh.Filename) != "" {
			certs = append(certs, fh)
		}
	}
	if len(certs) > s.limits.MaxCertificates {
		return nil, ErrTooManyCerts.WithMessagef("Maximum %d certificates allowed", s.limits.MaxCertificates)
	}

	resume, problems := validateFile(in.Resume, model.DocumentResume, s.limits.MaxFileSize)
	if resume == nil {
		return nil, ErrInvalidResume.WithMessage("Resume validation failed: " + strings.Join(problems, ", "))
	}

	valid := []*sniffed{resume}
	var skipped []string
	for _, fh := range certs {
		f, problems := validateFile(fh, model.DocumentCertificate, s.limits.MaxFileSize)
		if f == nil {
			s.log.WarnContext(ctx, "certificate skipped",
				zap.String("user_email", email),
				zap.String("filename", fh.Filename),
				zap.Strings("problems", problems))
			skipped = append(skipped, fh.Filename)
			continue
		}
		valid = append(valid, f)
	}

	previous, err := s.find(ctx, email)
	if err != nil && !errors.Is(err, ErrDocumentsNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	sessionID := uuid.NewString()
	record := &model.DocumentUpload{
		UserEmail:    email,
		Domain:       domain,
		PortfolioURL: strings.TrimSpace(in.PortfolioURL),
		SocialLinks: model.SocialLinks{
			LinkedinURL:          strings.TrimSpace(in.LinkedinURL),
			GithubURL:            strings.TrimSpace(in.GithubURL),
			PersonalPortfolioURL: strings.TrimSpace(in.PersonalPortfolio),
		},
		Certificates:    []model.DocumentFile{},
		UploadSessionID: sessionID,
		OverallStatus:   model.DocumentCompleted,
		CompletedAt:     &now,
	}

	result := &UploadResult{
		Success:         true,
		UserEmail:       email,
		UploadSessionID: sessionID,
		SkippedFiles:    skipped,
		CreatedAt:       now,
		Status:          model.DocumentCompleted,
	}

	stored := make([]string, 0, len(valid))
	usedKeys := make(map[string]struct{}, len(valid))
	for i, f := range valid {
		docType, title := model.DocumentResume, "Resume/CV"
		if i > 0 {
			docType, title = model.DocumentCertificate, fmt.Sprintf("Certificate %d", i)
		}
		key, err := objectKey(email, docType, f.filename, now, usedKeys)
		if err != nil {
			s.rollback(ctx, stored)
			return nil, ErrUploadFailed.WithError(err)
		}

		info, err := s.put(ctx, key, f)
		if err != nil {
			s.rollback(ctx, stored)
			s.log.ErrorContext(ctx, "store document failed", zap.String("key", key), zap.Error(err))
			return nil, ErrUploadFailed.WithError(err)
		}
		stored = append(stored, key)

		file := model.DocumentFile{
			DocumentType:  docType,
			Title:         title,
			Status:        model.DocumentUploaded,
			Filename:      f.filename,
			FileSize:      info.Size,
			ContentType:   f.contentType,
			FileExtension: f.extension,
			StorageKey:    key,
			UploadedAt:    now,
		}
		if docType == model.DocumentResume {
			record.Resume = &file
		} else {
			record.Certificates = append(record.Certificates, file)
		}
		result.UploadedFiles = append(result.UploadedFiles, UploadedFile{
			Type:       docType,
			Filename:   file.Filename,
			Size:       file.FileSize,
			StorageKey: key,
		})
		record.TotalFilesCount++
		record.TotalFilesSize += info.Size
	}

	if err := s.save(ctx, record); err != nil {
		s.rollback(ctx, stored)
		return nil, err
	}

	if previous != nil {
		var stale []string
		for _, f := range previous.Files() {
			if !slices.Contains(stored, f.StorageKey) {
				stale = append(stale, f.StorageKey)
			}
		}
		s.rollback(ctx, stale)
	}

	result.TotalFiles = record.TotalFilesCount
	result.TotalSize = record.TotalFilesSize
	result.Message = fmt.Sprintf("Successfully uploaded %d file(s)", record.TotalFilesCount)

	s.log.InfoContext(ctx, "documents uploaded",
		zap.String("user_email", email),
		zap.String("session_id", sessionID),
		zap.Int("files", record.TotalFilesCount),
		zap.Int("skipped", len(skipped)))
	s.publish(ctx, broker.NewEvent(EventDocumentsUploaded, email, map[string]any{
		"user_email":        email,
		"upload_session_id": sessionID,
		"total_files":       record.TotalFilesCount,
		"total_size":        record.TotalFilesSize,
	}))
	return result, nil
}

// Get 查询用户文档信息，不存在时返回 ErrDocumentsNotFound
func (s *Service) Get(ctx context.Context, email string) (*model.DocumentUpload, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, email)
}

// DeleteUser 删除用户全部文件与元数据，返回是否存在过
func (s *Service) DeleteUser(ctx context.Context, email string) (bool, error) {
	record, err := s.Get(ctx, email)
	if errors.Is(err, ErrDocumentsNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	keys := make([]string, 0, record.TotalFilesCount)
	for _, f := range record.Files() {
		keys = append(keys, f.StorageKey)
	}
	s.rollback(ctx, keys)

	if err := s.db.WithContext(ctx).Delete(&model.DocumentUpload{}, "user_email = ?", record.UserEmail).Error; err != nil {
		return false, err
	}
	s.log.InfoContext(ctx, "documents deleted", zap.String("user_email", record.UserEmail), zap.Int("files", len(keys)))
	return true, nil
}

// UpdateStatus 更新整体处理状态
func (s *Service) UpdateStatus(ctx context.Context, email, status string) error {
	if !validStatus(status) {
		return ErrInvalidStatus.WithMessagef("Invalid status %q", status)
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&model.DocumentUpload{}).
		Where("user_email = ?", email).
		Updates(map[string]any{"overall_status": status, "updated_at": s.now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDocumentsNotFound
	}
	s.log.InfoContext(ctx, "document status updated", zap.String("user_email", email), zap.String("status", status))
	return nil
}

// Open 打开单个文件，调用方负责关闭返回的 reader
func (s *Service) Open(ctx context.Context, email, fileType string, index int) (io.ReadCloser, *model.DocumentFile, error) {
	record, err := s.Get(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	file, err := pick(record, fileType, index)
	if err != nil {
		return nil, nil, err
	}

	rc, _, err := s.store.Get(ctx, file.StorageKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, nil, ErrFileNotFound.WithMessage("File not found in storage")
	}
	if err != nil {
		return nil, nil, err
	}
	return rc, file, nil
}

// DeleteFile 删除单个文件并重算合计，返回被删除的文件
func (s *Service) DeleteFile(ctx context.Context, email, fileType string, index int) (*model.DocumentFile, *model.DocumentUpload, error) {
	record, err := s.Get(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	target, err := pick(record, fileType, index)
	if err != nil {
		return nil, nil, err
	}
	deleted := *target

	if fileType == model.DocumentResume {
		record.Resume = nil
	} else {
		record.Certificates = slices.Delete(record.Certificates, index, index+1)
	}
	record.TotalFilesCount, record.TotalFilesSize = 0, 0
	for _, f := range record.Files() {
		record.TotalFilesCount++
		record.TotalFilesSize += f.FileSize
	}

	if err := s.store.Delete(ctx, deleted.StorageKey); err != nil {
		return nil, nil, err
	}
	if err := s.save(ctx, record); err != nil {
		return nil, nil, err
	}
	return &deleted, record, nil
}

// Stats 汇总所有用户的文档数据
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.WithContext(ctx).Model(&model.DocumentUpload{}).
		Select("COUNT(*) AS users_with_documents, COALESCE(SUM(total_files_count), 0) AS total_files, COALESCE(SUM(total_files_size), 0) AS total_size").
		Scan(&st).Error
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Service) find(ctx context.Context, email string) (*model.DocumentUpload, error) {
	var record model.DocumentUpload
	err := s.db.WithContext(ctx).First(&record, "user_email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentsNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Service) save(ctx context.Context, record *model.DocumentUpload) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_email"}},
		UpdateAll: true,
	}).Create(record).Error
}

func (s *Service) put(ctx context.Context, key string, f *sniffed) (*storage.ObjectInfo, error) {
	src, err := f.header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return s.store.Put(ctx, key, src, f.contentType)
}

// rollback 尽力删除对象，失败只记日志
func (s *Service) rollback(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.WarnContext(ctx, "delete document object failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *Service) publish(ctx context.Context, ev broker.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.WarnContext(ctx, "publish event failed", zap.String("event", ev.Type), zap.Error(err))
	}
}

func pick(record *model.DocumentUpload, fileType string, index int) (*model.DocumentFile, error) {
	switch fileType {
	case model.DocumentResume:
		if record.Resume != nil && index == 0 {
			return record.Resume, nil
		}
	case model.DocumentCertificate:
		if index >= 0 && index < len(record.Certificates) {
			return &record.Certificates[index], nil
		}
	default:
		return nil, ErrInvalidFileType.WithMessagef("Invalid file type %q", fileType)
	}
	return nil, ErrFileNotFound
}

// objectKey documents/{safe_email}/{type}/{YYYYmmdd_HHMMSS}_{filename}，同批重名追加序号
func objectKey(email, docType, filename string, at time.Time, used map[string]struct{}) (string, error) {
	prefix := fmt.Sprintf("documents/%s/%s/%s_", safeEmail(email), docType, at.Format("20060102_150405"))
	name := filename
	for n := 1; ; n++ {
		if _, ok := used[prefix+name]; !ok {
			break
		}
		ext := path.Ext(filename)
		name = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(filename, ext), n, ext)
	}
	key, err := storage.CleanKey(prefix + name)
	if err != nil {
		return "", err
	}
	used[key] = struct{}{}
	return key, nil
}

func validStatus(status string) bool {
	switch status {
	case model.DocumentPending, model.DocumentUploaded, model.DocumentProcessing,
		model.DocumentCompleted, model.DocumentFailed:
		return true
	}
	return false
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrEmailRequired
	}
	return email, nil
}
