package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Manager 连接管理器
//
// 持有所有在线会话、房间成员索引与输入状态索引。所有复合操作
// （替换会话、断开时离开全部房间、广播后清理投递失败的成员）
// 都在同一把互斥锁内完成，对外表现为原子操作。
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session
	rooms    roomIndex
	typing   typingIndex

	router   *MessageRouter
	events   *EventBus
	config   *Config
	upgrader *websocket.Upgrader
	metrics  Metrics
	logger   *zap.Logger
	now      func() time.Time

	// 生命周期
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
	closed  atomic.Bool
}

// NewManager 创建管理器
func NewManager(opts ...Option) (*Manager, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.Metrics == nil {
		config.Metrics = &NoopMetrics{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		sessions: make(map[string]*session),
		rooms:    make(roomIndex),
		typing:   make(typingIndex),
		router:   NewMessageRouter(),
		events:   NewEventBus(4, 1024),
		config:   config,
		upgrader: newUpgrader(config.UpgraderConfig, config.HandshakeTimeout),
		metrics:  config.Metrics,
		logger:   config.Logger.Named("ws"),
		now:      config.Clock,
		ctx:      ctx,
		cancel:   cancel,
	}

	m.registerBuiltins()

	return m, nil
}

// Router 入站消息路由器，需在 Run 之前注册处理器
func (m *Manager) Router() *MessageRouter {
	return m.router
}

// Subscribe 订阅会话与房间事件
func (m *Manager) Subscribe(eventType EventType, handler EventHandler) {
	m.events.Subscribe(eventType, handler)
}

// Run 启动后台清理，立即返回
func (m *Manager) Run() error {
	if m.closed.Load() {
		return ErrManagerClosed
	}
	if !m.running.CompareAndSwap(false, true) {
		return nil
	}

	m.router.Freeze()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runSweep(m.ctx)
	}()

	return nil
}

// Shutdown 停止后台清理并断开全部会话
func (m *Manager) Shutdown(ctx context.Context) error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.cancel()

	m.mu.Lock()
	for _, userID := range sortedKeys(m.sessions) {
		if s, ok := m.sessions[userID]; ok {
			m.disconnectLocked(s, websocket.CloseGoingAway, "Server shutting down")
		}
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		m.events.Close()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect 完成握手并注册会话
//
// 同一用户已有会话时，先以 1000 "Session replaced" 关闭旧连接并完整拆除旧会话，
// 再登记新会话。握手失败时不登记任何状态。
func (m *Manager) Connect(t Transport, userID, username string) (Session, error) {
	if m.closed.Load() {
		return Session{}, ErrManagerClosed
	}
	if userID == "" {
		return Session{}, ErrEmptyUserID
	}
	if m.atCapacity(userID) {
		return Session{}, ErrTooManyConnections
	}

	conn, err := t.Accept()
	if err != nil {
		m.logger.Warn("websocket handshake failed", zap.String("user_id", userID), zap.Error(err))
		return Session{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		_ = conn.Close(websocket.CloseGoingAway, "Server shutting down")
		return Session{}, ErrManagerClosed
	}

	if old, ok := m.sessions[userID]; ok {
		m.logger.Info("replacing existing session",
			zap.String("user_id", userID),
			zap.String("session_id", old.id),
		)
		m.disconnectLocked(old, websocket.CloseNormalClosure, "Session replaced")
	} else if len(m.sessions) >= m.config.MaxConnections {
		_ = conn.Close(websocket.CloseTryAgainLater, "Too many connections")
		return Session{}, ErrTooManyConnections
	}

	now := m.now()
	s := newSession(uuid.NewString(), userID, username, conn, now)
	m.sessions[userID] = s
	m.metrics.IncrementConnections()
	m.metrics.SetConnectionCount(len(m.sessions))

	if !m.sendLocked(s, NewEnvelope(TypeConnectionEstablished, ConnectionEstablished{
		UserID:    userID,
		Timestamp: FormatTime(now),
		SessionID: s.id,
	})) {
		return Session{}, ErrConnectionClosed
	}

	m.events.Publish(Event{
		Type:      EventSessionOpened,
		UserID:    userID,
		Username:  s.username,
		SessionID: s.id,
		Time:      now,
	})

	m.logger.Info("user connected",
		zap.String("user_id", userID),
		zap.String("session_id", s.id),
		zap.Int("online", len(m.sessions)),
	)

	return s.snapshot(), nil
}

func (m *Manager) atCapacity(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, replacing := m.sessions[userID]
	return !replacing && len(m.sessions) >= m.config.MaxConnections
}

// Disconnect 拆除用户会话，无会话时为空操作
func (m *Manager) Disconnect(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		m.disconnectLocked(s, websocket.CloseNormalClosure, "Disconnected")
	}
}

// release 连接读循环结束，仅当会话仍是同一个时才拆除
func (m *Manager) release(userID, sessionID string, code int, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok && s.id == sessionID {
		m.disconnectLocked(s, code, reason)
	}
}

// disconnectLocked 唯一的会话拆除路径
func (m *Manager) disconnectLocked(s *session, code int, reason string) {
	if s.closing {
		return
	}
	s.closing = true

	for _, roomID := range sortedKeys(s.rooms) {
		m.leaveRoomLocked(s, roomID)
	}

	for _, roomID := range m.typing.roomsOf(s.userID) {
		m.typing.clear(roomID, s.userID)
		m.broadcastTypingLocked(s, roomID, false)
	}
	s.typingIn = ""

	if cur, ok := m.sessions[s.userID]; ok && cur == s {
		delete(m.sessions, s.userID)
	}
	m.metrics.DecrementConnections()
	m.metrics.SetConnectionCount(len(m.sessions))

	if err := s.conn.Close(code, reason); err != nil {
		m.logger.Debug("close connection failed", zap.String("user_id", s.userID), zap.Error(err))
	}

	m.events.Publish(Event{
		Type:      EventSessionClosed,
		UserID:    s.userID,
		Username:  s.username,
		SessionID: s.id,
		Time:      m.now(),
	})

	m.logger.Info("user disconnected",
		zap.String("user_id", s.userID),
		zap.String("session_id", s.id),
		zap.String("reason", reason),
	)
}

// JoinRoom 加入房间；无会话、已是成员或投递 room_joined 失败时返回 false
func (m *Manager) JoinRoom(userID, roomID string) bool {
	joined, _ := m.JoinRoomLimited(userID, roomID, 0)
	return joined
}

// JoinRoomLimited 同 JoinRoom，房间已有 maxMembers 名其他成员时返回 ErrRoomFull；maxMembers <= 0 不限
func (m *Manager) JoinRoomLimited(userID, roomID string, maxMembers int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok || s.closing {
		return false, nil
	}
	if maxMembers > 0 && !m.rooms.has(roomID, userID) && m.rooms.count(roomID) >= maxMembers {
		return false, ErrRoomFull
	}
	return m.joinRoomLocked(s, roomID), nil
}

func (m *Manager) joinRoomLocked(s *session, roomID string) bool {
	if !m.rooms.add(roomID, s.userID) {
		return false
	}
	s.rooms[roomID] = struct{}{}
	m.metrics.SetRoomCount(len(m.rooms))

	now := m.now()
	m.broadcastLocked(roomID, NewEnvelope(TypeUserJoined, MemberChange{
		UserID:      s.userID,
		Username:    s.username,
		RoomID:      roomID,
		Timestamp:   FormatTime(now),
		MemberCount: m.rooms.count(roomID),
	}), s.userID)

	if !m.sendLocked(s, NewEnvelope(TypeRoomJoined, RoomJoined{
		RoomID:        roomID,
		MemberCount:   m.rooms.count(roomID),
		OnlineMembers: m.rooms.members(roomID),
	})) && s.closing {
		return false
	}

	m.events.Publish(Event{
		Type:      EventRoomJoined,
		UserID:    s.userID,
		Username:  s.username,
		SessionID: s.id,
		RoomID:    roomID,
		Time:      now,
	})

	return true
}

// LeaveRoom 离开房间；无会话或不是成员时为空操作
func (m *Manager) LeaveRoom(userID, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		m.leaveRoomLocked(s, roomID)
	}
}

func (m *Manager) leaveRoomLocked(s *session, roomID string) {
	if !m.rooms.has(roomID, s.userID) {
		delete(s.rooms, roomID)
		return
	}

	delete(s.rooms, roomID)
	remaining := m.rooms.remove(roomID, s.userID)
	m.metrics.SetRoomCount(len(m.rooms))

	now := m.now()
	if remaining > 0 {
		m.broadcastLocked(roomID, NewEnvelope(TypeUserLeft, MemberChange{
			UserID:      s.userID,
			Username:    s.username,
			RoomID:      roomID,
			Timestamp:   FormatTime(now),
			MemberCount: remaining,
		}), s.userID)
	}

	if m.typing.clear(roomID, s.userID) {
		if s.typingIn == roomID {
			s.typingIn = ""
		}
		m.broadcastTypingLocked(s, roomID, false)
	}

	m.events.Publish(Event{
		Type:      EventRoomLeft,
		UserID:    s.userID,
		Username:  s.username,
		SessionID: s.id,
		RoomID:    roomID,
		Time:      now,
	})
}

// BroadcastToRoom 向房间成员广播，投递失败的成员随后被断开
func (m *Manager) BroadcastToRoom(roomID string, env *Envelope, excludeUser string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.broadcastLocked(roomID, env, excludeUser)
}

func (m *Manager) broadcastLocked(roomID string, env *Envelope, excludeUser string) {
	if m.rooms.count(roomID) == 0 {
		return
	}

	data, err := env.Encode()
	if err != nil {
		m.logger.Error("encode broadcast failed", zap.String("room_id", roomID), zap.String("type", env.Type), zap.Error(err))
		return
	}

	var failed []*session
	for _, userID := range m.rooms.members(roomID) {
		if userID == excludeUser {
			continue
		}
		s, ok := m.sessions[userID]
		if !ok || s.closing {
			continue
		}
		if !m.deliverLocked(s, data) {
			failed = append(failed, s)
		}
	}

	for _, s := range failed {
		m.disconnectLocked(s, websocket.CloseInternalServerErr, "Delivery failed")
	}
}

// SendToUser 向单个用户发送，无会话或投递失败返回 false；投递失败的会话随即断开
func (m *Manager) SendToUser(userID string, env *Envelope) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok || s.closing {
		return false
	}
	return m.sendLocked(s, env)
}

// sendToSession 仅当会话仍是 sessionID 时发送
func (m *Manager) sendToSession(userID, sessionID string, env *Envelope) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok || s.closing || s.id != sessionID {
		return false
	}
	return m.sendLocked(s, env)
}

// sendLocked 定向发送，投递失败时断开该会话
func (m *Manager) sendLocked(s *session, env *Envelope) bool {
	data, err := env.Encode()
	if err != nil {
		m.logger.Error("encode message failed", zap.String("type", env.Type), zap.Error(err))
		return false
	}
	if !m.deliverLocked(s, data) {
		m.disconnectLocked(s, websocket.CloseInternalServerErr, "Delivery failed")
		return false
	}
	return true
}

// deliverLocked 单次投递，不重试
func (m *Manager) deliverLocked(s *session, data []byte) bool {
	if err := s.conn.Send(data); err != nil {
		m.metrics.IncrementDeliveryFailures()
		m.logger.Warn("deliver message failed", zap.String("user_id", s.userID), zap.Error(err))
		return false
	}
	s.lastActivity = m.now()
	return true
}

// HandleTyping 更新输入状态，并始终向房间其他成员广播
func (m *Manager) HandleTyping(userID, roomID string, isTyping bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok || s.closing {
		return
	}

	if isTyping {
		m.typing.set(roomID, userID, m.now())
		s.typingIn = roomID
	} else if m.typing.clear(roomID, userID) && s.typingIn == roomID {
		s.typingIn = ""
	}

	m.broadcastTypingLocked(s, roomID, isTyping)
}

func (m *Manager) broadcastTypingLocked(s *session, roomID string, isTyping bool) {
	m.broadcastLocked(roomID, NewEnvelope(TypeTypingIndicator, TypingIndicator{
		UserID:    s.userID,
		Username:  s.username,
		RoomID:    roomID,
		IsTyping:  isTyping,
		Timestamp: FormatTime(m.now()),
	}), s.userID)
}

// touch 入站消息刷新活跃时间
func (m *Manager) touch(userID, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok && s.id == sessionID {
		s.lastActivity = m.now()
	}
}

// isCurrent 会话是否仍在线且未被替换
func (m *Manager) isCurrent(userID, sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	return ok && !s.closing && s.id == sessionID
}

// OnlineUsers 在线用户（有序）
func (m *Manager) OnlineUsers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.sessions)
}

// RoomMembers 房间成员（有序），房间不存在返回 nil
func (m *Manager) RoomMembers(roomID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms.members(roomID)
}

// UserRooms 用户所在房间（有序）
func (m *Manager) UserRooms(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return nil
	}
	return sortedKeys(s.rooms)
}

// IsOnline 用户是否在线
func (m *Manager) IsOnline(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	return ok
}

// Session 获取会话快照
func (m *Manager) Session(userID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return s.snapshot(), true
}

// ConnectionCount 在线会话数
func (m *Manager) ConnectionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
