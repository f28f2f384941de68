// Package chat 聊天房间、消息与 WebSocket 入站处理
package chat

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tokmz/advisor/internal/model"
	"github.com/tokmz/advisor/pkg/broker"
	"github.com/tokmz/advisor/pkg/logger"
	"github.com/tokmz/advisor/pkg/ws"
)

// 下发与入站的消息类型
const (
	TypeNewMessage  = "new_message"
	TypeSendMessage = "send_message"
)

// EventMessagePosted 消息发布事件
const EventMessagePosted = "chat.message_posted"

// 分页默认值
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

var roomTypes = []string{
	model.RoomGeneral, model.RoomCourse, model.RoomStudyGroup,
	model.RoomProject, model.RoomHelp, model.RoomPrivate,
}

var messageTypes = []string{
	model.MessageText, model.MessageFile, model.MessageImage,
	model.MessageVideo, model.MessageAudio, model.MessageSystem,
}

// Options 聊天服务配置
type Options struct {
	MaxContentLength int
	DefaultRoom      string
}

// CreateRoomRequest 创建房间请求
type CreateRoomRequest struct {
	Name        string              `json:"name" binding:"required"`
	Description string              `json:"description" binding:"max=1000"`
	RoomType    string              `json:"room_type"`
	IsPublic    *bool               `json:"is_public"`
	MaxMembers  *int                `json:"max_members" binding:"omitempty,min=2"`
	Settings    *model.RoomSettings `json:"settings"`
	Tags        []string            `json:"tags" binding:"max=10,dive,max=30"`
}

// SendMessageRequest 发送消息请求，REST 与 WebSocket 共用
type SendMessageRequest struct {
	RoomID      string   `json:"room_id"`
	Content     string   `json:"content"`
	MessageType string   `json:"message_type"`
	ReplyTo     *string  `json:"reply_to"`
	Mentions    []string `json:"mentions"`
}

// RoomDetail 房间及其实时在线成员
type RoomDetail struct {
	model.Room
	OnlineMembers []string `json:"online_members"`
	MemberCount   int      `json:"member_count"`
}

// Service 聊天服务
type Service struct {
	db        *gorm.DB
	publisher broker.Publisher
	opts      Options
	log       logger.Logger
	now       func() time.Time

	manager *ws.Manager
}

// NewService 创建聊天服务，Mount 之前不可处理实时消息
func NewService(db *gorm.DB, publisher broker.Publisher, opts Options, log logger.Logger) *Service {
	if publisher == nil {
		publisher = broker.Noop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = 2000
	}
	if opts.DefaultRoom == "" {
		opts.DefaultRoom = model.RoomGeneral
	}
	return &Service{
		db:        db,
		publisher: publisher,
		opts:      opts,
		log:       log.Named("chat"),
		now:       time.Now,
	}
}

// Mount 绑定连接管理器并注册 send_message 处理器，须在 Manager.Run 之前调用
func (s *Service) Mount(m *ws.Manager) error {
	s.manager = m
	return ws.Handle[SendMessageRequest, model.Message](m.Router(), TypeSendMessage,
		func(c *ws.Client, req *SendMessageRequest) (*model.Message, error) {
			roomID := strings.TrimSpace(req.RoomID)
			if roomID == "" {
				return nil, ws.ErrMissingRoomID
			}
			if !slices.Contains(m.UserRooms(c.UserID()), roomID) {
				return nil, clientError(ErrNotRoomMember)
			}
			msg, err := s.PostMessage(context.Background(), roomID, c.UserID(), c.Username(), req)
			if err != nil {
				return nil, clientError(err)
			}
			return msg, nil
		})
}

// GuardRoom 加入房间前的检查：房间存在且可用，返回人数上限交由连接管理器在加入时校验
func (s *Service) GuardRoom(_, roomID string) (int, error) {
	room, err := s.room(context.Background(), roomID)
	if err != nil {
		return 0, clientError(err)
	}
	if !room.IsActive {
		return 0, clientError(ErrRoomInactive)
	}
	if room.MaxMembers != nil {
		return *room.MaxMembers, nil
	}
	return 0, nil
}

// EnsureDefaultRoom 确保默认公共房间存在
func (s *Service) EnsureDefaultRoom(ctx context.Context) error {
	now := s.now().UTC()
	room := &model.Room{
		RoomID:       s.opts.DefaultRoom,
		Name:         "General Discussion",
		Description:  "Main chat room for all users",
		RoomType:     model.RoomGeneral,
		CreatedBy:    "system",
		Moderators:   []string{},
		IsActive:     true,
		IsPublic:     true,
		Settings:     model.DefaultRoomSettings(),
		Tags:         []string{},
		LastActivity: now,
	}
	res := s.db.WithContext(ctx).Where(model.Room{RoomID: room.RoomID}).FirstOrCreate(room)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		s.log.InfoContext(ctx, "default room created", zap.String("room_id", room.RoomID))
	}
	return nil
}

// ListRooms 公开且可用的房间，最近活跃在前
func (s *Service) ListRooms(ctx context.Context) ([]model.Room, error) {
	var rooms []model.Room
	err := s.db.WithContext(ctx).
		Where("is_public = ? AND is_active = ?", true, true).
		Order("last_activity DESC").
		Find(&rooms).Error
	return rooms, err
}

// CreateRoom 创建房间，创建者即版主
func (s *Service) CreateRoom(ctx context.Context, userID string, req *CreateRoomRequest) (*model.Room, error) {
	name := strings.TrimSpace(req.Name)
	if n := utf8.RuneCountInString(name); n < 2 || n > 100 {
		return nil, ErrInvalidRoomName
	}
	roomType := req.RoomType
	if roomType == "" {
		roomType = model.RoomGeneral
	}
	if !slices.Contains(roomTypes, roomType) {
		return nil, ErrInvalidRoomType.WithMessagef("Invalid room type %q", roomType)
	}

	now := s.now().UTC()
	room := &model.Room{
		RoomID:       uuid.NewString(),
		Name:         name,
		Description:  strings.TrimSpace(req.Description),
		RoomType:     roomType,
		CreatedBy:    userID,
		Moderators:   []string{userID},
		IsActive:     true,
		IsPublic:     roomType != model.RoomPrivate,
		MaxMembers:   req.MaxMembers,
		Settings:     model.DefaultRoomSettings(),
		Tags:         req.Tags,
		LastActivity: now,
	}
	if req.IsPublic != nil {
		room.IsPublic = *req.IsPublic
	}
	if req.Settings != nil {
		room.Settings = *req.Settings
	}
	if room.Tags == nil {
		room.Tags = []string{}
	}

	// is_public/is_active 带数据库默认值，Create 会把零值 false 回填为 true，需先记下再显式写入
	isPublic, isActive := room.IsPublic, room.IsActive
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		return tx.Model(room).Updates(map[string]any{
			"is_public": isPublic,
			"is_active": isActive,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	room.IsPublic, room.IsActive = isPublic, isActive
	s.log.InfoContext(ctx, "room created",
		zap.String("room_id", room.RoomID),
		zap.String("room_type", room.RoomType),
		zap.String("created_by", userID))
	return room, nil
}

// GetRoom 房间详情，附带当前在线成员
func (s *Service) GetRoom(ctx context.Context, roomID string) (*RoomDetail, error) {
	room, err := s.room(ctx, roomID)
	if err != nil {
		return nil, err
	}
	detail := &RoomDetail{Room: *room, OnlineMembers: []string{}}
	if s.manager != nil {
		if members := s.manager.RoomMembers(roomID); members != nil {
			detail.OnlineMembers = members
		}
	}
	detail.MemberCount = len(detail.OnlineMembers)
	return detail, nil
}

// Messages 分页读取房间消息，页内按时间正序
func (s *Service) Messages(ctx context.Context, roomID string, page, size int) ([]model.Message, int64, error) {
	if _, err := s.room(ctx, roomID); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	size = min(size, MaxPageSize)

	visible := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&model.Message{}).Where("room_id = ? AND is_deleted = ?", roomID, false)
	}
	var total int64
	if err := visible().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var msgs []model.Message
	err := visible().Order("timestamp DESC").Offset((page - 1) * size).Limit(size).Find(&msgs).Error
	if err != nil {
		return nil, 0, err
	}
	slices.Reverse(msgs)
	return msgs, total, nil
}

// PostMessage 校验并保存消息，然后向房间广播 new_message（包括发送者）
func (s *Service) PostMessage(ctx context.Context, roomID, senderID, senderName string, req *SendMessageRequest) (*model.Message, error) {
	msgType := req.MessageType
	if msgType == "" {
		msgType = model.MessageText
	}
	if !slices.Contains(messageTypes, msgType) {
		return nil, ErrInvalidMessageType.WithMessagef("Invalid message type %q", msgType)
	}
	if utf8.RuneCountInString(req.Content) > s.opts.MaxContentLength {
		return nil, ErrContentTooLong.WithMessagef("Message cannot exceed %d characters", s.opts.MaxContentLength)
	}
	if msgType == model.MessageText && strings.TrimSpace(req.Content) == "" {
		return nil, ErrEmptyContent
	}

	room, err := s.room(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, ErrRoomInactive
	}

	if senderName == "" {
		senderName = senderID
	}
	mentions := req.Mentions
	if mentions == nil {
		mentions = []string{}
	}
	now := s.now().UTC()
	msg := &model.Message{
		MessageID:   uuid.NewString(),
		RoomID:      roomID,
		SenderID:    senderID,
		SenderName:  senderName,
		Content:     req.Content,
		MessageType: msgType,
		Timestamp:   now,
		ReplyTo:     req.ReplyTo,
		Mentions:    mentions,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Room{}).Where("room_id = ?", roomID).Update("last_activity", now).Error
	})
	if err != nil {
		return nil, err
	}

	if s.manager != nil {
		s.manager.BroadcastToRoom(roomID, ws.NewEnvelope(TypeNewMessage, msg), "")
	}
	if err := s.publisher.Publish(ctx, broker.NewEvent(EventMessagePosted, roomID, msg)); err != nil {
		s.log.WarnContext(ctx, "publish event failed", zap.String("event", EventMessagePosted), zap.Error(err))
	}
	return msg, nil
}

// OnlineUsers 当前在线会话
func (s *Service) OnlineUsers() []ws.Session {
	if s.manager == nil {
		return []ws.Session{}
	}
	users := s.manager.OnlineUsers()
	sessions := make([]ws.Session, 0, len(users))
	for _, id := range users {
		if sess, ok := s.manager.Session(id); ok {
			sessions = append(sessions, sess)
		}
	}
	return sessions
}

// Stats 连接统计
func (s *Service) Stats() ws.Stats {
	if s.manager == nil {
		return ws.Stats{UsersByRoom: map[string]int{}, TypingUsers: map[string]int{}}
	}
	return s.manager.Stats()
}

func (s *Service) room(ctx context.Context, roomID string) (*model.Room, error) {
	var room model.Room
	err := s.db.WithContext(ctx).First(&room, "room_id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}
