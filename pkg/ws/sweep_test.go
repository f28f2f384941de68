package ws

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep_ClearsStaleTyping(t *testing.T) {
	m, clock := newTestManager(t)
	a := connect(t, m, "a")
	connect(t, m, "b")
	require.True(t, m.JoinRoom("a", "general"))
	require.True(t, m.JoinRoom("b", "general"))
	m.HandleTyping("b", "general", true)
	a.reset()

	clock.Advance(4 * time.Second)
	result := m.Sweep()
	assert.Zero(t, result.TypingCleared)
	assert.Empty(t, a.ofType(t, TypeTypingIndicator))

	clock.Advance(2 * time.Second)
	result = m.Sweep()
	assert.Equal(t, 1, result.TypingCleared)

	typing := a.ofType(t, TypeTypingIndicator)
	require.Len(t, typing, 1)
	indicator := decodeData[TypingIndicator](t, typing[0])
	assert.False(t, indicator.IsTyping)
	assert.Equal(t, "b", indicator.UserID)
	assert.Equal(t, "general", indicator.RoomID)

	assert.Empty(t, m.Stats().TypingUsers)
	sess, _ := m.Session("b")
	assert.Empty(t, sess.TypingIn)

	// 已清理的条目不会再次广播
	m.Sweep()
	assert.Len(t, a.ofType(t, TypeTypingIndicator), 1)
}

func TestSweep_RefreshedTypingSurvives(t *testing.T) {
	m, clock := newTestManager(t)
	connect(t, m, "a")
	require.True(t, m.JoinRoom("a", "general"))

	m.HandleTyping("a", "general", true)
	clock.Advance(4 * time.Second)
	m.HandleTyping("a", "general", true)
	clock.Advance(4 * time.Second)

	assert.Zero(t, m.Sweep().TypingCleared)
	assert.Equal(t, map[string]int{"general": 1}, m.Stats().TypingUsers)
}

func TestSweep_ExpiresInactiveSessions(t *testing.T) {
	m, clock := newTestManager(t)
	idle := connect(t, m, "idle")
	active := connect(t, m, "active")
	require.True(t, m.JoinRoom("idle", "general"))
	require.True(t, m.JoinRoom("active", "general"))

	clock.Advance(29 * time.Minute)
	sess, _ := m.Session("active")
	m.touch("active", sess.SessionID)
	active.reset()

	clock.Advance(2 * time.Minute)
	result := m.Sweep()

	assert.Equal(t, 1, result.SessionsExpired)
	assert.False(t, m.IsOnline("idle"))
	assert.True(t, m.IsOnline("active"))

	closed, code, reason := idle.closeInfo()
	assert.True(t, closed)
	assert.Equal(t, websocket.CloseNormalClosure, code)
	assert.Equal(t, "Session timeout", reason)

	left := active.ofType(t, TypeUserLeft)
	require.Len(t, left, 1)
	assert.Equal(t, 1, decodeData[MemberChange](t, left[0]).MemberCount)
}

func TestSweep_ClearsTypingOutsideMembership(t *testing.T) {
	m, clock := newTestManager(t)
	a := connect(t, m, "a")
	require.True(t, m.JoinRoom("a", "general"))

	// 未加入房间也可以设置输入状态
	connect(t, m, "b")
	m.HandleTyping("b", "general", true)
	a.reset()

	clock.Advance(6 * time.Second)
	m.Sweep()

	typing := a.ofType(t, TypeTypingIndicator)
	require.Len(t, typing, 1)
	assert.False(t, decodeData[TypingIndicator](t, typing[0]).IsTyping)
}

func TestRun_SweepsOnTicker(t *testing.T) {
	m, err := NewManager(
		WithSweepInterval(10*time.Millisecond),
		WithTypingTimeout(time.Millisecond),
		WithSessionTimeout(time.Hour),
	)
	require.NoError(t, err)
	require.NoError(t, m.Run())

	connect(t, m, "a")
	require.True(t, m.JoinRoom("a", "general"))
	m.HandleTyping("a", "general", true)

	assert.Eventually(t, func() bool {
		return len(m.Stats().TypingUsers) == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Shutdown(t.Context()))
	assert.False(t, m.IsOnline("a"))
	assert.ErrorIs(t, m.Run(), ErrManagerClosed)
}

func TestShutdown_ClosesSessions(t *testing.T) {
	m, _ := newTestManager(t)
	a := connect(t, m, "a")
	b := connect(t, m, "b")

	require.NoError(t, m.Shutdown(t.Context()))

	for _, conn := range []*fakeConn{a, b} {
		closed, code, _ := conn.closeInfo()
		assert.True(t, closed)
		assert.Equal(t, websocket.CloseGoingAway, code)
	}
	assert.Empty(t, m.OnlineUsers())

	_, err := m.Connect(TransportFunc(func() (Conn, error) { return &fakeConn{}, nil }), "c", "")
	assert.ErrorIs(t, err, ErrManagerClosed)
}
