package chat

import (
	"context"
	"errors"
	"strconv"

	"github.com/tokmz/advisor"
	"github.com/tokmz/advisor/internal/model"
	apperrors "github.com/tokmz/advisor/pkg/errors"
	"github.com/tokmz/advisor/pkg/ws"
)

// NameResolver 根据用户 id 解析显示名
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) string
}

type roomURI struct {
	RoomID string `uri:"room_id"`
}

// PostMessageRequest POST /rooms/:room_id/messages 请求
type PostMessageRequest struct {
	roomURI
	Content     string   `json:"content"`
	MessageType string   `json:"message_type"`
	ReplyTo     *string  `json:"reply_to"`
	Mentions    []string `json:"mentions"`
}

// RoomList 房间列表
type RoomList struct {
	Rooms []model.Room `json:"rooms"`
	Total int          `json:"total"`
}

// OnlineUsers 在线用户列表
type OnlineUsers struct {
	Users []ws.Session `json:"online_users"`
	Total int          `json:"total"`
}

// Handler 聊天路由
type Handler struct {
	svc     *Service
	manager *ws.Manager
	names   NameResolver
}

// NewHandler 创建聊天路由
func NewHandler(svc *Service, m *ws.Manager, names NameResolver) *Handler {
	return &Handler{svc: svc, manager: m, names: names}
}

// Register 挂载 /api/chat 下的 REST 路由，调用方负责认证中间件
func (h *Handler) Register(rg *advisor.RouterGroup) {
	advisor.GETOnly(rg, "/rooms", func(c *advisor.Context) (*RoomList, error) {
		rooms, err := h.svc.ListRooms(c.RequestContext())
		if err != nil {
			return nil, err
		}
		return &RoomList{Rooms: rooms, Total: len(rooms)}, nil
	})
	rg.POST("/rooms", h.createRoom)
	advisor.GET(rg, "/rooms/:room_id", func(c *advisor.Context, req *roomURI) (*RoomDetail, error) {
		return h.svc.GetRoom(c.RequestContext(), c.Param("room_id"))
	})
	rg.GET("/rooms/:room_id/messages", h.messages)
	advisor.POST(rg, "/rooms/:room_id/messages", func(c *advisor.Context, req *PostMessageRequest) (*model.Message, error) {
		ctx, roomID := c.RequestContext(), c.Param("room_id")
		return h.svc.PostMessage(ctx, roomID, c.UserID(), h.names.DisplayName(ctx, c.UserID()), &SendMessageRequest{
			RoomID:      roomID,
			Content:     req.Content,
			MessageType: req.MessageType,
			ReplyTo:     req.ReplyTo,
			Mentions:    req.Mentions,
		})
	})
	advisor.GETOnly(rg, "/online-users", func(c *advisor.Context) (*OnlineUsers, error) {
		users := h.svc.OnlineUsers()
		return &OnlineUsers{Users: users, Total: len(users)}, nil
	})
	advisor.GETOnly(rg, "/stats", func(c *advisor.Context) (*ws.Stats, error) {
		st := h.svc.Stats()
		return &st, nil
	})
}

// Socket WebSocket 入口，需在认证中间件之后
func (h *Handler) Socket(c *advisor.Context) {
	userID := c.UserID()
	name := h.names.DisplayName(c.RequestContext(), userID)

	err := h.manager.HandleUpgrade(c.Writer(), c.Request(), userID, name)
	switch {
	case errors.Is(err, ws.ErrTooManyConnections), errors.Is(err, ws.ErrManagerClosed):
		c.RespondError(ErrTooManyConnections.WithError(err))
	case errors.Is(err, ws.ErrEmptyUserID):
		c.RespondError(apperrors.ErrUnauthorized)
	case err != nil:
		c.Abort()
	}
}

func (h *Handler) createRoom(c *advisor.Context) {
	var req CreateRoomRequest
	if err := c.BindJSON(&req); err != nil {
		return
	}
	room, err := h.svc.CreateRoom(c.RequestContext(), c.UserID(), &req)
	if err != nil {
		c.RespondError(err)
		return
	}
	c.Created(room, "Room created successfully")
}

func (h *Handler) messages(c *advisor.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(DefaultPageSize)))
	page, size = max(page, 1), min(max(size, 1), MaxPageSize)

	msgs, total, err := h.svc.Messages(c.RequestContext(), c.Param("room_id"), page, size)
	if err != nil {
		c.RespondError(err)
		return
	}
	c.Page(msgs, uint64(total), page, size)
}
