package user

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tokmz/advisor/internal/apitest"
	"github.com/tokmz/advisor/internal/model"
	"github.com/tokmz/advisor/internal/model/modeltest"
	"github.com/tokmz/advisor/middleware"
	"github.com/tokmz/advisor/pkg/ws"
)

type fakePresence struct {
	mu     sync.Mutex
	online map[string]bool
}

func (p *fakePresence) IsOnline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID]
}

func (p *fakePresence) set(userID string, online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[userID] = online
}

func seedUser(t *testing.T, db *gorm.DB, email string) {
	t.Helper()
	require.NoError(t, db.Create(&model.User{
		UserID:       email,
		Email:        email,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Status:       model.StatusOffline,
		IsActive:     true,
		ChatSettings: model.DefaultChatSettings(),
		Preferences:  model.DefaultPreferences(),
	}).Error)
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *fakePresence) {
	t.Helper()
	db := modeltest.Open(t)
	seedUser(t, db, "ada@example.com")
	presence := &fakePresence{online: map[string]bool{}}
	return NewService(db, presence, nil), db, presence
}

func TestService_UpdateProfile(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	bio := "Analyst"
	u, err := svc.UpdateProfile(ctx, "ada@example.com", &ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Analyst", u.Bio)
	assert.Equal(t, "Ada", u.FirstName)

	bad := "sleeping"
	_, err = svc.UpdateProfile(ctx, "ada@example.com", &ProfileUpdate{Status: &bad})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.UpdateProfile(ctx, "nobody@example.com", &ProfileUpdate{Bio: &bio})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_StatusAndChatInfo(t *testing.T) {
	svc, _, presence := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.UpdateStatus(ctx, "ada@example.com", model.StatusBusy))
	assert.ErrorIs(t, svc.UpdateStatus(ctx, "ada@example.com", "gone"), ErrInvalidStatus)

	presence.set("ada@example.com", true)
	info, err := svc.ChatInfo(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", info.Username)
	assert.Equal(t, model.StatusBusy, info.Status)
	assert.True(t, info.IsOnline)
}

func TestService_Settings(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	view, err := svc.UpdateSettings(ctx, "ada@example.com", map[string]model.Settings{
		"preferences": {"theme": "dark"},
		"privacy":     {"show_email": false},
	})
	require.NoError(t, err)
	assert.Equal(t, "dark", view.Preferences["theme"])
	assert.Equal(t, "en", view.Preferences["language"])
	assert.Equal(t, false, view.Privacy["show_email"])
	assert.Equal(t, true, view.ChatSettings["sound_enabled"])
	assert.Empty(t, view.Notifications)

	_, err = svc.UpdateSettings(ctx, "ada@example.com", map[string]model.Settings{"billing": {}})
	assert.ErrorIs(t, err, ErrInvalidSection)
}

func TestService_SyncPresence(t *testing.T) {
	svc, _, presence := newTestService(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	presence.set("ada@example.com", true)
	svc.SyncPresence(ctx, "ada@example.com", at)
	u, err := svc.Get(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOnline, u.Status)

	presence.set("ada@example.com", false)
	svc.SyncPresence(ctx, "ada@example.com", at.Add(time.Minute))
	u, err = svc.Get(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOffline, u.Status)
	assert.True(t, u.LastActivity.Equal(at.Add(time.Minute)))

	// 未知用户静默忽略
	svc.SyncPresence(ctx, "ghost@example.com", at)
}

func TestSubscribe_ManagerEvents(t *testing.T) {
	db := modeltest.Open(t)
	seedUser(t, db, "ada@example.com")

	m, err := ws.NewManager()
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	svc := NewService(db, m, nil)
	svc.Subscribe(m)

	_, err = m.Connect(ws.TransportFunc(func() (ws.Conn, error) { return nopConn{}, nil }), "ada@example.com", "Ada")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		u, err := svc.Get(context.Background(), "ada@example.com")
		return err == nil && u.Status == model.StatusOnline
	}, 2*time.Second, 10*time.Millisecond)

	m.Disconnect("ada@example.com")
	assert.Eventually(t, func() bool {
		u, err := svc.Get(context.Background(), "ada@example.com")
		return err == nil && u.Status == model.StatusOffline
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_Routes(t *testing.T) {
	svc, _, _ := newTestService(t)
	e := apitest.NewEngine(t)
	NewHandler(svc).Register(e.Group("/api/user", middleware.Auth(&middleware.AuthConfig{Verifier: apitest.StaticVerifier{}})))
	const token = "ada@example.com"

	w := apitest.DoJSON(e, http.MethodGet, "/api/user/profile", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	var u model.User
	apitest.Decode(t, w, &u)
	assert.Equal(t, "Ada", u.FirstName)

	w = apitest.DoJSON(e, http.MethodPut, "/api/user/profile", `{"firstName":"Augusta"}`, token)
	require.Equal(t, http.StatusOK, w.Code)
	var res MessageResult
	apitest.Decode(t, w, &res)
	assert.Equal(t, "Augusta", res.User.FirstName)

	w = apitest.DoJSON(e, http.MethodPut, "/api/user/status", `{"status":"away"}`, token)
	require.Equal(t, http.StatusOK, w.Code)
	w = apitest.DoJSON(e, http.MethodPut, "/api/user/status", `{"status":"nope"}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = apitest.DoJSON(e, http.MethodGet, "/api/user/chat-info", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	var info ChatInfo
	apitest.Decode(t, w, &info)
	assert.Equal(t, "away", info.Status)
	assert.False(t, info.IsOnline)

	w = apitest.DoJSON(e, http.MethodPut, "/api/user/settings", `{"chat_settings":{"sound_enabled":false}}`, token)
	require.Equal(t, http.StatusOK, w.Code)
	var view SettingsView
	env := apitest.Decode(t, w, &view)
	assert.Equal(t, "Settings updated successfully", env.Message)
	assert.Equal(t, false, view.ChatSettings["sound_enabled"])
	assert.Equal(t, true, view.ChatSettings["notifications_enabled"])

	w = apitest.DoJSON(e, http.MethodGet, "/api/user/profile", "", "ghost@example.com")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type nopConn struct{}

func (nopConn) Send([]byte) error       { return nil }
func (nopConn) Close(int, string) error { return nil }
