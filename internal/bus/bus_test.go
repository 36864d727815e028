package bus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hub struct {
	upgrader websocket.Upgrader
	conns    chan *websocket.Conn
}

func newHub(t *testing.T) (*hub, string) {
	t.Helper()
	h := &hub{conns: make(chan *websocket.Conn, 4)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.conns <- conn
	}))
	t.Cleanup(srv.Close)
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (h *hub) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-h.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("client never connected")
		return nil
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m Message
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestClient_PublishesEvents(t *testing.T) {
	h, url := newHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(url, "sophie", WithReconnect(10*time.Millisecond))
	go c.Run(ctx)
	conn := h.accept(t)
	defer conn.Close()

	c.Publish(KindTurn, "hello")
	m := readMessage(t, conn)
	assert.Equal(t, "sophie", m.From)
	assert.Equal(t, KindTurn, m.Kind)
	assert.Equal(t, "hello", m.Content)
}

func TestClient_DeliversCommandsAddressedToIt(t *testing.T) {
	h, url := newHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 2)
	c := New(url, "sophie", OnCommand(func(cmd string) { got <- cmd }))
	go c.Run(ctx)
	conn := h.accept(t)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Message{To: "other", Kind: KindCommand, Content: "trigger"}))
	require.NoError(t, conn.WriteJSON(Message{To: "sophie", Kind: KindCommand, Content: "reset"}))

	select {
	case cmd := <-got:
		assert.Equal(t, "reset", cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("command not delivered")
	}
}

func TestClient_Reconnects(t *testing.T) {
	h, url := newHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(url, "sophie", WithReconnect(10*time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	first := h.accept(t)
	require.NoError(t, first.Close())

	second := h.accept(t)
	defer second.Close()

	c.Publish(KindReset, "")
	assert.Equal(t, KindReset, readMessage(t, second).Kind)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
