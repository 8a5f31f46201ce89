package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h, cancel
}

func receive(t *testing.T, c *Connection) []byte {
	t.Helper()
	select {
	case data := <-c.Send:
		return data
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestBroadcastReachesBoundConnections(t *testing.T) {
	h, _ := startHub(t)
	a, b, other := h.NewConnection(nil), h.NewConnection(nil), h.NewConnection(nil)
	for _, c := range []*Connection{a, b, other} {
		h.Register(c)
	}
	h.BindSession(a, "chat-1")
	h.BindSession(b, "chat-1")
	h.BindSession(other, "chat-2")

	require.NoError(t, h.BroadcastJSON("chat-1", map[string]string{"type": "delta"}))
	assert.JSONEq(t, `{"type":"delta"}`, string(receive(t, a)))
	assert.JSONEq(t, `{"type":"delta"}`, string(receive(t, b)))
	assert.Empty(t, other.Send)

	conns, sessions := h.Stats()
	assert.Equal(t, 3, conns)
	assert.Equal(t, 2, sessions)
}

func TestRebindMovesConnection(t *testing.T) {
	h, _ := startHub(t)
	c := h.NewConnection(nil)
	h.Register(c)
	h.BindSession(c, "old")
	h.BindSession(c, "new")

	assert.False(t, h.HasActiveConnections("old"))
	assert.True(t, h.HasActiveConnections("new"))
}

func TestUnregisterClosesSend(t *testing.T) {
	h, _ := startHub(t)
	c := h.NewConnection(nil)
	h.Register(c)
	h.BindSession(c, "chat")
	h.Unregister(c)

	_, ok := <-c.Send
	assert.False(t, ok)
	assert.False(t, h.HasActiveConnections("chat"))
	assert.ErrorIs(t, h.SendToConnection(c, []byte("x")), ErrClosed)
}

func TestSendToConnectionBufferFull(t *testing.T) {
	h, _ := startHub(t)
	c := h.NewConnection(nil)
	h.Register(c)
	for i := 0; i < sendBuffer; i++ {
		require.NoError(t, h.SendToConnection(c, []byte("x")))
	}
	assert.ErrorIs(t, h.SendToConnection(c, []byte("x")), ErrBufferFull)
}

func TestStopClosesConnections(t *testing.T) {
	h, cancel := startHub(t)
	c := h.NewConnection(nil)
	h.Register(c)
	cancel()

	_, ok := <-c.Send
	assert.False(t, ok)

	// calls after the hub stopped do not block
	h.Unregister(c)
	h.Broadcast("chat", []byte("x"))
	late := h.NewConnection(nil)
	h.Register(late)
	_, ok = <-late.Send
	assert.False(t, ok)
}
