package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tokmz/advisor/internal/apitest"
	"github.com/tokmz/advisor/internal/model"
	"github.com/tokmz/advisor/internal/model/modeltest"
	"github.com/tokmz/advisor/middleware"
	"github.com/tokmz/advisor/pkg/broker"
	"github.com/tokmz/advisor/pkg/ws"
)

type frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

type recordingConn struct {
	mu     sync.Mutex
	frames []frame
}

func (c *recordingConn) Send(data []byte) error {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *recordingConn) Close(int, string) error { return nil }

func (c *recordingConn) ofType(typ string) []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []frame
	for _, f := range c.frames {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []broker.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev broker.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type staticNames map[string]string

func (n staticNames) DisplayName(_ context.Context, userID string) string {
	if name, ok := n[userID]; ok {
		return name
	}
	return userID
}

type fixture struct {
	svc     *Service
	db      *gorm.DB
	manager *ws.Manager
	pub     *recordingPublisher
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:  modeltest.Open(t),
		pub: &recordingPublisher{},
		now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.db, f.pub, Options{MaxContentLength: 20}, nil)
	f.svc.now = func() time.Time { return f.now }

	m, err := ws.NewManager(ws.WithRoomGuard(f.svc.GuardRoom))
	require.NoError(t, err)
	require.NoError(t, f.svc.Mount(m))
	require.NoError(t, m.Run())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	f.manager = m

	require.NoError(t, f.svc.EnsureDefaultRoom(context.Background()))
	return f
}

func (f *fixture) connect(t *testing.T, userID string) *recordingConn {
	t.Helper()
	conn := &recordingConn{}
	_, err := f.manager.Connect(ws.TransportFunc(func() (ws.Conn, error) { return conn, nil }), userID, strings.ToUpper(userID))
	require.NoError(t, err)
	return conn
}

func TestService_Rooms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.EnsureDefaultRoom(ctx))
	var count int64
	require.NoError(t, f.db.Model(&model.Room{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err := f.svc.CreateRoom(ctx, "ada", &CreateRoomRequest{Name: " x "})
	assert.ErrorIs(t, err, ErrInvalidRoomName)
	_, err = f.svc.CreateRoom(ctx, "ada", &CreateRoomRequest{Name: strings.Repeat("n", 101)})
	assert.ErrorIs(t, err, ErrInvalidRoomName)
	_, err = f.svc.CreateRoom(ctx, "ada", &CreateRoomRequest{Name: "Party", RoomType: "party"})
	assert.ErrorIs(t, err, ErrInvalidRoomType)

	course, err := f.svc.CreateRoom(ctx, "ada", &CreateRoomRequest{Name: "  Go 101  ", RoomType: model.RoomCourse, Tags: []string{"go"}})
	require.NoError(t, err)
	assert.Equal(t, "Go 101", course.Name)
	assert.True(t, course.IsPublic)
	assert.Equal(t, []string{"ada"}, course.Moderators)

	private, err := f.svc.CreateRoom(ctx, "ada", &CreateRoomRequest{Name: "Secret", RoomType: model.RoomPrivate})
	require.NoError(t, err)
	assert.False(t, private.IsPublic)

	hidden, err := f.svc.CreateRoom(ctx, "ada", &CreateRoomRequest{Name: "Hidden", RoomType: model.RoomCourse, IsPublic: new(bool)})
	require.NoError(t, err)
	assert.False(t, hidden.IsPublic)

	for _, id := range []string{private.RoomID, hidden.RoomID} {
		var stored model.Room
		require.NoError(t, f.db.First(&stored, "room_id = ?", id).Error)
		assert.False(t, stored.IsPublic, id)
		assert.True(t, stored.IsActive, id)
	}

	rooms, err := f.svc.ListRooms(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.RoomID)
	}
	assert.ElementsMatch(t, []string{model.RoomGeneral, course.RoomID}, ids)

	f.connect(t, "ada")
	require.True(t, f.manager.JoinRoom("ada", course.RoomID))
	detail, err := f.svc.GetRoom(ctx, course.RoomID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ada"}, detail.OnlineMembers)
	assert.Equal(t, 1, detail.MemberCount)

	_, err = f.svc.GetRoom(ctx, "nope")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestService_GuardRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ce *ws.ClientError
	_, err := f.svc.GuardRoom("ada", "missing")
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ws.CodeNotFound, ce.Code)

	limit, err := f.svc.GuardRoom("ada", model.RoomGeneral)
	require.NoError(t, err)
	assert.Zero(t, limit)

	two := 2
	small, err := f.svc.CreateRoom(ctx, "ada", &CreateRoomRequest{Name: "Pair", MaxMembers: &two})
	require.NoError(t, err)
	limit, err = f.svc.GuardRoom("ada", small.RoomID)
	require.NoError(t, err)
	assert.Equal(t, 2, limit)

	require.NoError(t, f.db.Model(&model.Room{}).Where("room_id = ?", model.RoomGeneral).Update("is_active", false).Error)
	_, err = f.svc.GuardRoom("a", model.RoomGeneral)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ws.CodeForbidden, ce.Code)
}

func TestService_PostMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ada := f.connect(t, "ada")
	bob := f.connect(t, "bob")
	require.True(t, f.manager.JoinRoom("ada", model.RoomGeneral))
	require.True(t, f.manager.JoinRoom("bob", model.RoomGeneral))

	tests := []struct {
		name string
		req  SendMessageRequest
		want error
	}{
		{name: "blank text", req: SendMessageRequest{Content: "   "}, want: ErrEmptyContent},
		{name: "too long", req: SendMessageRequest{Content: strings.Repeat("x", 21)}, want: ErrContentTooLong},
		{name: "bad type", req: SendMessageRequest{Content: "hi", MessageType: "sticker"}, want: ErrInvalidMessageType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.PostMessage(ctx, model.RoomGeneral, "ada", "Ada", &tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	_, err := f.svc.PostMessage(ctx, "nope", "ada", "Ada", &SendMessageRequest{Content: "hi"})
	assert.ErrorIs(t, err, ErrRoomNotFound)

	// 非文本消息允许空内容
	_, err = f.svc.PostMessage(ctx, model.RoomGeneral, "ada", "Ada", &SendMessageRequest{MessageType: model.MessageImage})
	require.NoError(t, err)

	f.now = f.now.Add(time.Minute)
	msg, err := f.svc.PostMessage(ctx, model.RoomGeneral, "ada", "", &SendMessageRequest{Content: "hello", Mentions: []string{"bob"}})
	require.NoError(t, err)
	assert.Equal(t, "ada", msg.SenderName)
	assert.Equal(t, model.MessageText, msg.MessageType)
	assert.Len(t, msg.MessageID, 36)

	for _, conn := range []*recordingConn{ada, bob} {
		got := conn.ofType(TypeNewMessage)
		require.Len(t, got, 2)
		var m model.Message
		require.NoError(t, json.Unmarshal(got[1].Data, &m))
		assert.Equal(t, msg.MessageID, m.MessageID)
		assert.Equal(t, []string{"bob"}, m.Mentions)
	}

	var room model.Room
	require.NoError(t, f.db.First(&room, "room_id = ?", model.RoomGeneral).Error)
	assert.True(t, room.LastActivity.Equal(f.now))

	require.Len(t, f.pub.events, 2)
	assert.Equal(t, EventMessagePosted, f.pub.events[1].Type)
	assert.Equal(t, model.RoomGeneral, f.pub.events[1].Key)
}

func TestService_MessagesPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := range 5 {
		f.now = f.now.Add(time.Second)
		_, err := f.svc.PostMessage(ctx, model.RoomGeneral, "ada", "Ada", &SendMessageRequest{Content: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}
	require.NoError(t, f.db.Model(&model.Message{}).Where("content = ?", "m4").Update("is_deleted", true).Error)

	msgs, total, err := f.svc.Messages(ctx, model.RoomGeneral, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[0].Content)
	assert.Equal(t, "m3", msgs[1].Content)

	msgs, _, err = f.svc.Messages(ctx, model.RoomGeneral, 2, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m0", msgs[0].Content)

	msgs, _, err = f.svc.Messages(ctx, model.RoomGeneral, 3, 2)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, _, err = f.svc.Messages(ctx, "nope", 1, 2)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func newChatServer(t *testing.T, f *fixture) *httptest.Server {
	t.Helper()
	e := apitest.NewEngine(t)
	h := NewHandler(f.svc, f.manager, staticNames{"ada": "Ada Lovelace"})
	auth := middleware.Auth(&middleware.AuthConfig{Verifier: apitest.StaticVerifier{}, QueryParam: "token"})
	g := e.Group("/api/chat")
	g.GET("/ws", h.Socket, auth)
	h.Register(e.Group("/api/chat", auth))

	srv := httptest.NewServer(e.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var f frame
		require.NoError(t, json.Unmarshal(data, &f))
		if f.Type == typ {
			return f
		}
	}
}

func TestSocket_SendMessage(t *testing.T) {
	f := newFixture(t)
	srv := newChatServer(t, f)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws?token=ada"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	readUntil(t, conn, ws.TypeConnectionEstablished)

	sess, ok := f.manager.Session("ada")
	require.True(t, ok)
	assert.Equal(t, "Ada Lovelace", sess.Username)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":       TypeSendMessage,
		"request_id": "r1",
		"data":       map[string]string{"room_id": model.RoomGeneral, "content": "hi"},
	}))
	errFrame := readUntil(t, conn, ws.TypeError)
	var payload ws.ErrorPayload
	require.NoError(t, json.Unmarshal(errFrame.Data, &payload))
	assert.Equal(t, ws.CodeForbidden, payload.Code)
	assert.Equal(t, "r1", payload.RequestID)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": ws.TypeJoinRoom,
		"data": map[string]string{"room_id": "missing"},
	}))
	require.NoError(t, json.Unmarshal(readUntil(t, conn, ws.TypeError).Data, &payload))
	assert.Equal(t, ws.CodeNotFound, payload.Code)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": ws.TypeJoinRoom,
		"data": map[string]string{"room_id": model.RoomGeneral},
	}))
	readUntil(t, conn, ws.TypeRoomJoined)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":       TypeSendMessage,
		"request_id": "r2",
		"data":       map[string]string{"room_id": model.RoomGeneral, "content": "hello all"},
	}))
	broadcast := readUntil(t, conn, TypeNewMessage)
	var msg model.Message
	require.NoError(t, json.Unmarshal(broadcast.Data, &msg))
	assert.Equal(t, "hello all", msg.Content)
	assert.Equal(t, "Ada Lovelace", msg.SenderName)

	resp := readUntil(t, conn, ws.TypeResponse)
	assert.Equal(t, "r2", resp.RequestID)

	msgs, total, err := f.svc.Messages(context.Background(), model.RoomGeneral, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, msg.MessageID, msgs[0].MessageID)
}

func TestSocket_RoomCapacityUnderConcurrentJoins(t *testing.T) {
	f := newFixture(t)
	srv := newChatServer(t, f)

	two := 2
	small, err := f.svc.CreateRoom(context.Background(), "ada", &CreateRoomRequest{Name: "Pair", MaxMembers: &two})
	require.NoError(t, err)

	users := []string{"a", "b", "c", "d", "e", "f"}
	conns := make([]*websocket.Conn, 0, len(users))
	for _, u := range users {
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/chat/ws?token="+u, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		readUntil(t, conn, ws.TypeConnectionEstablished)
		conns = append(conns, conn)
	}

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(conn *websocket.Conn) {
			defer wg.Done()
			assert.NoError(t, conn.WriteJSON(map[string]any{
				"type": ws.TypeJoinRoom,
				"data": map[string]string{"room_id": small.RoomID},
			}))
		}(conn)
	}
	wg.Wait()

	var joined, full int
	for _, conn := range conns {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		for done := false; !done; {
			var fr frame
			require.NoError(t, conn.ReadJSON(&fr))
			switch fr.Type {
			case ws.TypeRoomJoined:
				joined++
				done = true
			case ws.TypeError:
				var payload ws.ErrorPayload
				require.NoError(t, json.Unmarshal(fr.Data, &payload))
				assert.Equal(t, ws.CodeForbidden, payload.Code)
				full++
				done = true
			}
		}
	}
	assert.Equal(t, 2, joined)
	assert.Equal(t, len(users)-2, full)
	assert.Len(t, f.manager.RoomMembers(small.RoomID), 2)
}

func TestSocket_RequiresToken(t *testing.T) {
	f := newFixture(t)
	srv := newChatServer(t, f)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/chat/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_Routes(t *testing.T) {
	f := newFixture(t)
	e := apitest.NewEngine(t)
	auth := middleware.Auth(&middleware.AuthConfig{Verifier: apitest.StaticVerifier{}})
	NewHandler(f.svc, f.manager, staticNames{"ada": "Ada Lovelace"}).Register(e.Group("/api/chat", auth))

	w := apitest.DoJSON(e, http.MethodGet, "/api/chat/rooms", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = apitest.DoJSON(e, http.MethodPost, "/api/chat/rooms", `{"name":"Study Hall","room_type":"study_group"}`, "ada")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var room model.Room
	apitest.Decode(t, w, &room)
	assert.Equal(t, "ada", room.CreatedBy)

	w = apitest.DoJSON(e, http.MethodPost, "/api/chat/rooms", `{"name":"x"}`, "ada")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = apitest.DoJSON(e, http.MethodGet, "/api/chat/rooms", "", "ada")
	var list RoomList
	apitest.Decode(t, w, &list)
	assert.Equal(t, 2, list.Total)

	w = apitest.DoJSON(e, http.MethodPost, "/api/chat/rooms/"+room.RoomID+"/messages", `{"content":"first"}`, "ada")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var msg model.Message
	apitest.Decode(t, w, &msg)
	assert.Equal(t, "Ada Lovelace", msg.SenderName)

	w = apitest.DoJSON(e, http.MethodGet, "/api/chat/rooms/"+room.RoomID+"/messages?page=1&size=500", "", "ada")
	var page struct {
		List  []model.Message `json:"list"`
		Total uint64          `json:"total"`
		Size  int             `json:"size"`
	}
	apitest.Decode(t, w, &page)
	assert.Equal(t, uint64(1), page.Total)
	assert.Equal(t, MaxPageSize, page.Size)
	require.Len(t, page.List, 1)
	assert.Equal(t, "first", page.List[0].Content)

	w = apitest.DoJSON(e, http.MethodGet, "/api/chat/rooms/nope", "", "ada")
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.connect(t, "bob")
	w = apitest.DoJSON(e, http.MethodGet, "/api/chat/online-users", "", "ada")
	var online OnlineUsers
	apitest.Decode(t, w, &online)
	require.Equal(t, 1, online.Total)
	assert.Equal(t, "bob", online.Users[0].UserID)

	w = apitest.DoJSON(e, http.MethodGet, "/api/chat/stats", "", "ada")
	var st ws.Stats
	apitest.Decode(t, w, &st)
	assert.Equal(t, 1, st.TotalConnections)
}
