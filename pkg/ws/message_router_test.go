package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRouter_MiddlewareOrder(t *testing.T) {
	r := NewMessageRouter()
	var calls []string

	r.Use(func(c *Client, m *Message, next NextFunc) error {
		calls = append(calls, "first")
		return next()
	}, func(c *Client, m *Message, next NextFunc) error {
		calls = append(calls, "second")
		return next()
	})
	require.NoError(t, r.Register("echo", func(c *Client, m *Message) error {
		calls = append(calls, "handler")
		return nil
	}))

	require.NoError(t, r.Route(&Client{}, &Message{Type: "echo"}))
	assert.Equal(t, []string{"first", "second", "handler"}, calls)

	calls = nil
	r.Freeze()
	require.NoError(t, r.Route(&Client{}, &Message{Type: "echo"}))
	assert.Equal(t, []string{"first", "second", "handler"}, calls)
}

func TestMessageRouter_Register(t *testing.T) {
	r := NewMessageRouter()
	h := func(c *Client, m *Message) error { return nil }

	require.NoError(t, r.Register("a", h))
	assert.ErrorIs(t, r.Register("a", h), ErrHandlerExists)

	r.Freeze()
	assert.ErrorIs(t, r.Register("b", h), ErrRouterFrozen)
	assert.ErrorIs(t, r.Route(&Client{}, &Message{Type: "b"}), ErrHandlerNotFound)
	assert.Equal(t, []string{"a"}, r.Types())
}

func TestMessageRouter_MiddlewareShortCircuit(t *testing.T) {
	r := NewMessageRouter()
	r.Use(func(c *Client, m *Message, next NextFunc) error {
		return NewClientError(CodeForbidden, "denied")
	})
	called := false
	require.NoError(t, r.Register("x", func(c *Client, m *Message) error {
		called = true
		return nil
	}))

	err := r.Route(&Client{}, &Message{Type: "x"})
	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeForbidden, ce.Code)
	assert.False(t, called)
}

func TestHandle0_DecodesRequest(t *testing.T) {
	r := NewMessageRouter()
	var got TypingRequest
	require.NoError(t, Handle0[TypingRequest](r, "typing", func(c *Client, req *TypingRequest) error {
		got = *req
		return nil
	}))

	require.NoError(t, r.Route(&Client{}, &Message{
		Type: "typing",
		Data: []byte(`{"room_id":"general","is_typing":true}`),
	}))
	assert.Equal(t, TypingRequest{RoomID: "general", IsTyping: true}, got)

	err := r.Route(&Client{}, &Message{Type: "typing", Data: []byte(`[]`)})
	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeBadRequest, ce.Code)
}
