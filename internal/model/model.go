// Package model 持久化实体
package model

import (
	"time"

	"gorm.io/gorm"
)

// 用户状态
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusAway    = "away"
	StatusBusy    = "busy"
)

// 认证方式
const (
	ProviderManual = "manual"
	ProviderGoogle = "google"
)

// Settings 用户设置的一个分区
type Settings map[string]any

// User 用户，UserID 即邮箱
type User struct {
	UserID        string    `gorm:"primaryKey;size:255" json:"user_id"`
	Email         string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	FirstName     string    `gorm:"size:100" json:"firstName"`
	LastName      string    `gorm:"size:100" json:"lastName"`
	Password      string    `gorm:"size:255" json:"-"`
	AuthProvider  string    `gorm:"size:16;default:manual" json:"auth_provider"`
	GoogleUID     string    `gorm:"size:128;index" json:"-"`
	AvatarURL     *string   `gorm:"size:512" json:"avatar_url"`
	Bio           string    `gorm:"size:1000" json:"bio"`
	Status        string    `gorm:"size:16;index;default:offline" json:"status"`
	IsActive      bool      `gorm:"default:true" json:"is_active"`
	ChatSettings  Settings  `gorm:"serializer:json;type:text" json:"chat_settings"`
	Preferences   Settings  `gorm:"serializer:json;type:text" json:"preferences"`
	Privacy       Settings  `gorm:"serializer:json;type:text" json:"privacy"`
	Notifications Settings  `gorm:"serializer:json;type:text" json:"notifications"`
	LastActivity  time.Time `json:"last_activity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DisplayName 名字 + 姓氏，均为空时返回用户 id
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.UserID
	}
}

// DefaultChatSettings 新用户的聊天设置
func DefaultChatSettings() Settings {
	return Settings{
		"notifications_enabled": true,
		"sound_enabled":         true,
		"online_status_visible": true,
	}
}

// DefaultPreferences 新用户的偏好设置
func DefaultPreferences() Settings {
	return Settings{
		"theme":    "light",
		"language": "en",
	}
}

// CareerProfile 职业档案，UserID 为邮箱
type CareerProfile struct {
	UserID string `gorm:"primaryKey;size:255"`

	Name     string `gorm:"size:100"`
	Email    string `gorm:"size:255"`
	Phone    string `gorm:"size:15"`
	Location string `gorm:"size:100"`

	CurrentRole       string `gorm:"size:100"`
	Industry          string `gorm:"size:100"`
	ExpectedSalary    string `gorm:"size:50"`
	PreferredLocation string `gorm:"size:200"`

	// HasAcademic 为 false 时以下字段无意义
	HasAcademic       bool
	EducationLevel    string   `gorm:"size:100"`
	FieldOfStudy      string   `gorm:"size:100"`
	YearsOfExperience string   `gorm:"size:50"`
	Interests         []string `gorm:"serializer:json;type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// 文档类型
const (
	DocumentResume      = "resume"
	DocumentCertificate = "certificate"
)

// 文档状态
const (
	DocumentPending    = "pending"
	DocumentUploaded   = "uploaded"
	DocumentProcessing = "processing"
	DocumentCompleted  = "completed"
	DocumentFailed     = "failed"
)

// DocumentFile 单个已上传文件
type DocumentFile struct {
	DocumentType  string    `json:"document_type"`
	Title         string    `json:"document_title"`
	Status        string    `json:"status"`
	Filename      string    `json:"filename"`
	FileSize      int64     `json:"file_size"`
	ContentType   string    `json:"content_type"`
	FileExtension string    `json:"file_extension"`
	StorageKey    string    `json:"storage_key"`
	UploadedAt    time.Time `json:"upload_timestamp"`
}

// SocialLinks 社交链接
type SocialLinks struct {
	LinkedinURL          string `json:"linkedin_url,omitempty"`
	GithubURL            string `json:"github_url,omitempty"`
	PersonalPortfolioURL string `json:"personal_portfolio_url,omitempty"`
}

// DocumentUpload 用户最近一次上传的文档信息
type DocumentUpload struct {
	UserEmail       string         `gorm:"primaryKey;size:255" json:"user_email"`
	Domain          string         `gorm:"size:100" json:"domain"`
	PortfolioURL    string         `gorm:"size:512" json:"portfolio_url,omitempty"`
	SocialLinks     SocialLinks    `gorm:"serializer:json;type:text" json:"social_links"`
	Resume          *DocumentFile  `gorm:"serializer:json;type:text" json:"resume"`
	Certificates    []DocumentFile `gorm:"serializer:json;type:text" json:"certificates"`
	UploadSessionID string         `gorm:"size:36" json:"upload_session_id"`
	TotalFilesCount int            `json:"total_files_count"`
	TotalFilesSize  int64          `json:"total_files_size"`
	OverallStatus   string         `gorm:"size:16" json:"overall_status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	CompletedAt     *time.Time     `json:"completed_at"`
}

// Files 所有文件，简历在前
func (d *DocumentUpload) Files() []DocumentFile {
	files := make([]DocumentFile, 0, len(d.Certificates)+1)
	if d.Resume != nil {
		files = append(files, *d.Resume)
	}
	return append(files, d.Certificates...)
}

// 房间类型
const (
	RoomGeneral    = "general"
	RoomCourse     = "course"
	RoomStudyGroup = "study_group"
	RoomProject    = "project"
	RoomHelp       = "help"
	RoomPrivate    = "private"
)

// RoomSettings 房间设置
type RoomSettings struct {
	AllowFileUpload   bool `json:"allow_file_upload"`
	AllowReactions    bool `json:"allow_reactions"`
	MaxFileSizeMB     int  `json:"max_file_size_mb"`
	Moderated         bool `json:"moderated"`
	RequireApproval   bool `json:"require_approval"`
	MuteNotifications bool `json:"mute_notifications"`
}

// DefaultRoomSettings 默认房间设置
func DefaultRoomSettings() RoomSettings {
	return RoomSettings{AllowFileUpload: true, AllowReactions: true, MaxFileSizeMB: 10}
}

// Room 持久化的聊天房间
type Room struct {
	RoomID       string       `gorm:"primaryKey;size:64" json:"room_id"`
	Name         string       `gorm:"size:100;not null" json:"name"`
	Description  string       `gorm:"size:1000" json:"description"`
	RoomType     string       `gorm:"size:16;default:general" json:"room_type"`
	CreatedBy    string       `gorm:"size:255" json:"created_by"`
	Moderators   []string     `gorm:"serializer:json;type:text" json:"moderators"`
	IsActive     bool         `gorm:"index;default:true" json:"is_active"`
	IsPublic     bool         `gorm:"index;default:true" json:"is_public"`
	MaxMembers   *int         `json:"max_members"`
	Settings     RoomSettings `gorm:"serializer:json;type:text" json:"settings"`
	Tags         []string     `gorm:"serializer:json;type:text" json:"tags"`
	LastActivity time.Time    `json:"last_activity"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// 消息类型
const (
	MessageText   = "text"
	MessageFile   = "file"
	MessageImage  = "image"
	MessageVideo  = "video"
	MessageAudio  = "audio"
	MessageSystem = "system"
)

// Message 聊天消息
type Message struct {
	MessageID   string    `gorm:"primaryKey;size:36" json:"message_id"`
	RoomID      string    `gorm:"size:64;index:idx_room_time,priority:1;not null" json:"room_id"`
	SenderID    string    `gorm:"size:255;index" json:"sender_id"`
	SenderName  string    `gorm:"size:200" json:"sender_name"`
	Content     string    `gorm:"type:text" json:"content"`
	MessageType string    `gorm:"size:16;default:text" json:"message_type"`
	Timestamp   time.Time `gorm:"index:idx_room_time,priority:2" json:"timestamp"`
	ReplyTo     *string   `gorm:"size:36" json:"reply_to"`
	Mentions    []string  `gorm:"serializer:json;type:text" json:"mentions"`
	IsEdited    bool      `json:"is_edited"`
	IsDeleted   bool      `json:"is_deleted"`
	IsPinned    bool      `json:"is_pinned"`
}

// All 参与自动迁移的实体
func All() []any {
	return []any{&User{}, &CareerProfile{}, &DocumentUpload{}, &Room{}, &Message{}}
}

// Migrate 自动迁移所有实体
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
