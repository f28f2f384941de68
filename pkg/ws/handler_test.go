package ws

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectClient(t *testing.T, m *Manager, userID string) (*Client, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	sess, err := m.Connect(TransportFunc(func() (Conn, error) { return conn, nil }), userID, "")
	require.NoError(t, err)
	conn.reset()
	return newClient(m, sess), conn
}

func TestDispatch_JoinLeaveTyping(t *testing.T) {
	m, _ := newTestManager(t)
	a, aConn := connectClient(t, m, "a")
	b, _ := connectClient(t, m, "b")

	assert.True(t, m.dispatch(a, []byte(`{"type":"join_room","request_id":"r1","data":{"room_id":"general"}}`)))
	assert.True(t, m.dispatch(b, []byte(`{"type":"join_room","data":{"room_id":"general"}}`)))
	assert.Equal(t, []string{"a", "b"}, m.RoomMembers("general"))

	responses := aConn.ofType(t, TypeResponse)
	require.Len(t, responses, 1)
	assert.Equal(t, "r1", responses[0].RequestID)
	assert.Equal(t, JoinResult{RoomID: "general", Joined: true}, decodeData[JoinResult](t, responses[0]))

	assert.True(t, m.dispatch(b, []byte(`{"type":"typing","data":{"room_id":"general","is_typing":true}}`)))
	assert.Len(t, aConn.ofType(t, TypeTypingIndicator), 1)

	assert.True(t, m.dispatch(b, []byte(`{"type":"leave_room","data":{"room_id":"general"}}`)))
	assert.Equal(t, []string{"a"}, m.RoomMembers("general"))
	assert.Len(t, aConn.ofType(t, TypeUserLeft), 1)
}

func TestDispatch_Ping(t *testing.T) {
	m, _ := newTestManager(t)
	c, conn := connectClient(t, m, "a")

	assert.True(t, m.dispatch(c, []byte(`{"type":"ping"}`)))
	assert.Len(t, conn.ofType(t, TypePong), 1)
}

func TestDispatch_Errors(t *testing.T) {
	m, _ := newTestManager(t)
	c, conn := connectClient(t, m, "a")

	tests := []struct {
		name string
		raw  string
		code int
	}{
		{name: "unknown type", raw: `{"type":"dance","request_id":"x"}`, code: CodeNotFound},
		{name: "missing room id", raw: `{"type":"join_room","data":{}}`, code: CodeBadRequest},
		{name: "bad data", raw: `{"type":"typing","data":"nope"}`, code: CodeBadRequest},
		{name: "invalid json", raw: `not json`, code: CodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn.reset()
			assert.True(t, m.dispatch(c, []byte(tt.raw)))
			errs := conn.ofType(t, TypeError)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.code, decodeData[ErrorPayload](t, errs[0]).Code)
		})
	}
}

func TestDispatch_TooManyInvalidMessages(t *testing.T) {
	m, _ := newTestManager(t)
	c, _ := connectClient(t, m, "a")

	for i := 0; i < int(m.config.MaxInvalidMessages); i++ {
		require.True(t, m.dispatch(c, []byte(`{`)))
	}
	assert.False(t, m.dispatch(c, []byte(`{`)))
}

func TestDispatch_ValidMessageResetsInvalidCount(t *testing.T) {
	m, _ := newTestManager(t)
	c, _ := connectClient(t, m, "a")

	for i := 0; i < 5; i++ {
		require.True(t, m.dispatch(c, []byte(`{`)))
	}
	require.True(t, m.dispatch(c, []byte(`{"type":"ping"}`)))
	for i := 0; i < int(m.config.MaxInvalidMessages); i++ {
		require.True(t, m.dispatch(c, []byte(`{`)))
	}
}

func TestDispatch_RoomGuard(t *testing.T) {
	m, _ := newTestManager(t, WithRoomGuard(func(userID, roomID string) (int, error) {
		switch roomID {
		case "private":
			return 0, errors.New("room is private")
		case "missing":
			return 0, NewClientError(CodeNotFound, "room not found")
		case "pair":
			return 1, nil
		}
		return 0, nil
	}))
	c, conn := connectClient(t, m, "a")
	other, _ := connectClient(t, m, "b")
	require.True(t, m.dispatch(other, []byte(`{"type":"join_room","data":{"room_id":"pair"}}`)))

	m.dispatch(c, []byte(`{"type":"join_room","data":{"room_id":"private"}}`))
	m.dispatch(c, []byte(`{"type":"join_room","data":{"room_id":"missing"}}`))
	m.dispatch(c, []byte(`{"type":"join_room","request_id":"p","data":{"room_id":"pair"}}`))
	m.dispatch(c, []byte(`{"type":"join_room","data":{"room_id":"open"}}`))

	errs := conn.ofType(t, TypeError)
	require.Len(t, errs, 3)
	assert.Equal(t, ErrorPayload{Code: CodeForbidden, Message: "room is private"}, decodeData[ErrorPayload](t, errs[0]))
	assert.Equal(t, CodeNotFound, decodeData[ErrorPayload](t, errs[1]).Code)
	assert.Equal(t, ErrorPayload{Code: CodeForbidden, Message: "Room is full", RequestID: "p"}, decodeData[ErrorPayload](t, errs[2]))
	assert.Equal(t, []string{"open"}, m.UserRooms("a"))
	assert.Equal(t, []string{"b"}, m.RoomMembers("pair"))
}

func TestDispatch_TouchesLastActivity(t *testing.T) {
	m, clock := newTestManager(t)
	c, _ := connectClient(t, m, "a")

	clock.Advance(10 * time.Minute)
	m.dispatch(c, []byte(`{`))

	sess, _ := m.Session("a")
	assert.Equal(t, clock.Now(), sess.LastActivity)
}

func TestDispatch_ReplacedSessionIsIgnored(t *testing.T) {
	m, _ := newTestManager(t)
	stale, _ := connectClient(t, m, "a")
	connectClient(t, m, "a")

	m.dispatch(stale, []byte(`{"type":"join_room","data":{"room_id":"general"}}`))
	assert.Nil(t, m.RoomMembers("general"))
	assert.False(t, stale.Active())
}
