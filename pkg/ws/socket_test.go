package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWSServer(t *testing.T, m *Manager) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user")
		if err := m.HandleUpgrade(w, r, userID, strings.ToUpper(userID)); err != nil {
			if errors.Is(err, ErrTooManyConnections) {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestSocket_EndToEnd(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)
	require.NoError(t, m.Run())
	t.Cleanup(func() { _ = m.Shutdown(t.Context()) })
	srv := newWSServer(t, m)

	alice := dial(t, srv, "alice")
	established := readFrame(t, alice)
	assert.Equal(t, TypeConnectionEstablished, established.Type)

	require.NoError(t, alice.WriteJSON(map[string]any{
		"type": "join_room",
		"data": map[string]string{"room_id": "general"},
	}))
	joined := readFrame(t, alice)
	require.Equal(t, TypeRoomJoined, joined.Type)
	assert.Equal(t, 1, decodeData[RoomJoined](t, joined).MemberCount)

	bob := dial(t, srv, "bob")
	readFrame(t, bob)
	require.NoError(t, bob.WriteJSON(map[string]any{
		"type": "join_room",
		"data": map[string]string{"room_id": "general"},
	}))

	userJoined := readFrame(t, alice)
	require.Equal(t, TypeUserJoined, userJoined.Type)
	data := decodeData[MemberChange](t, userJoined)
	assert.Equal(t, "bob", data.UserID)
	assert.Equal(t, "BOB", data.Username)
	assert.Equal(t, 2, data.MemberCount)

	require.NoError(t, bob.Close())

	left := readFrame(t, alice)
	require.Equal(t, TypeUserLeft, left.Type)
	assert.Equal(t, 1, decodeData[MemberChange](t, left).MemberCount)
	assert.Eventually(t, func() bool { return !m.IsOnline("bob") }, time.Second, 10*time.Millisecond)
}

func TestSocket_SessionReplaced(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(t.Context()) })
	srv := newWSServer(t, m)

	first := dial(t, srv, "alice")
	readFrame(t, first)

	second := dial(t, srv, "alice")
	assert.Equal(t, TypeConnectionEstablished, readFrame(t, second).Type)

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = first.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
	assert.Equal(t, "Session replaced", closeErr.Text)

	assert.Equal(t, []string{"alice"}, m.OnlineUsers())
}

func TestSocket_SendAfterClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sock := NewSocket(conn, 1, time.Second)
		_ = sock.Close(websocket.CloseNormalClosure, "bye")
		<-sock.Done()
		assert.ErrorIs(t, sock.Send([]byte("x")), ErrConnectionClosed)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestSocket_NonTextFramesRefreshActivity(t *testing.T) {
	clock := newFakeClock()
	m, err := NewManager(WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(t.Context()) })
	srv := newWSServer(t, m)

	alice := dial(t, srv, "alice")
	readFrame(t, alice)

	lastActivity := func() time.Time {
		sess, ok := m.Session("alice")
		require.True(t, ok)
		return sess.LastActivity
	}

	clock.Advance(10 * time.Minute)
	require.NoError(t, alice.WriteMessage(websocket.BinaryMessage, []byte{0x1}))
	assert.Eventually(t, func() bool { return lastActivity().Equal(clock.Now()) }, time.Second, 10*time.Millisecond)

	clock.Advance(10 * time.Minute)
	require.NoError(t, alice.WriteControl(websocket.PingMessage, []byte("hb"), time.Now().Add(time.Second)))
	assert.Eventually(t, func() bool { return lastActivity().Equal(clock.Now()) }, time.Second, 10*time.Millisecond)
	assert.True(t, m.IsOnline("alice"))
}
