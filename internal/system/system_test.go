package system

import (
	"context"
	"errors"
	"net/http"
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

type fakeConnections struct {
	stats ws.Stats
}

func (f *fakeConnections) ConnectionCount() int { return f.stats.TotalConnections }
func (f *fakeConnections) Stats() ws.Stats      { return f.stats }

var (
	healthy = PingFunc(func(context.Context) error { return nil })
	broken  = PingFunc(func(context.Context) error { return errors.New("connection refused") })
)

func testInfo() Info {
	return Info{
		Name:             "Student Advisor Portal",
		Version:          "1.2.3",
		Environment:      "test",
		PublicURL:        "https://portal.example.com/",
		MaxContentLength: 2000,
		MaxFileSize:      10 << 20,
		MaxCertificates:  10,
	}
}

func seed(t *testing.T, db *gorm.DB, now time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&[]model.User{
		{UserID: "a@x.io", Email: "a@x.io", IsActive: true},
		{UserID: "b@x.io", Email: "b@x.io", IsActive: true},
	}).Error)
	require.NoError(t, db.Create(&model.Room{RoomID: "general", Name: "General", IsActive: true, IsPublic: true}).Error)
	require.NoError(t, db.Create(&[]model.Message{
		{MessageID: "m1", RoomID: "general", Content: "old", Timestamp: now.Add(-48 * time.Hour)},
		{MessageID: "m2", RoomID: "general", Content: "new", Timestamp: now.Add(-time.Hour)},
	}).Error)
}

func TestService_Health(t *testing.T) {
	conns := &fakeConnections{stats: ws.Stats{TotalConnections: 3}}

	svc := NewService(nil, Dependencies{Database: healthy, Cache: healthy}, conns, testInfo())
	h := svc.Health(context.Background())
	assert.Equal(t, StatusHealthy, h.Status)
	assert.Equal(t, "disabled", h.Storage.Status)
	assert.Equal(t, 3, h.WebsocketConnections)
	assert.Equal(t, ServiceName, h.Service)

	svc = NewService(nil, Dependencies{Database: healthy, Cache: broken, Storage: healthy}, conns, testInfo())
	h = svc.Health(context.Background())
	assert.Equal(t, StatusDegraded, h.Status)
	assert.Equal(t, "connection refused", h.Cache.Error)

	svc = NewService(nil, Dependencies{Database: broken, Cache: healthy}, conns, testInfo())
	assert.Equal(t, StatusUnhealthy, svc.Health(context.Background()).Status)
}

func TestService_Stats(t *testing.T) {
	db := modeltest.Open(t)
	now := time.Now().UTC()
	seed(t, db, now)

	conns := &fakeConnections{stats: ws.Stats{TotalConnections: 2, ActiveRooms: 1}}
	svc := NewService(db, Dependencies{}, conns, testInfo())

	st, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &PlatformStats{
		TotalUsers:    2,
		TotalRooms:    1,
		MessagesToday: 1,
		OnlineUsers:   2,
		ActiveRooms:   1,
	}, st)
}

func TestService_ClientConfig(t *testing.T) {
	svc := NewService(nil, Dependencies{}, &fakeConnections{}, testInfo())
	cfg := svc.ClientConfig()
	assert.Equal(t, "wss://portal.example.com/api/chat/ws", cfg["websocket_url"])
	assert.Equal(t, "https://portal.example.com", cfg["api_base_url"])
	assert.Equal(t, int64(10), cfg["limits"].(map[string]any)["file_size_mb"])
}

func TestHandler_Routes(t *testing.T) {
	db := modeltest.Open(t)
	seed(t, db, time.Now().UTC())

	deps := Dependencies{Database: broken, Cache: healthy}
	h := NewHandler(NewService(db, deps, &fakeConnections{}, testInfo()))
	e := apitest.NewEngine(t)
	h.Register(e)
	h.RegisterStats(e.Group("", middleware.Auth(&middleware.AuthConfig{Verifier: apitest.StaticVerifier{}})))

	w := apitest.DoJSON(e, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"service":"student-advisor-portal"`)

	w = apitest.DoJSON(e, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Student Advisor Portal API")

	w = apitest.DoJSON(e, http.MethodGet, "/api/version", "", "")
	var version map[string]any
	apitest.Decode(t, w, &version)
	assert.Equal(t, "1.2.3", version["version"])

	w = apitest.DoJSON(e, http.MethodGet, "/api/config", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = apitest.DoJSON(e, http.MethodGet, "/stats", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = apitest.DoJSON(e, http.MethodGet, "/stats", "", "a@x.io")
	var st PlatformStats
	apitest.Decode(t, w, &st)
	assert.Equal(t, int64(2), st.TotalUsers)
}
