package wsrouter

import (
	"context"
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

type echoInput struct {
	Text string `json:"text"`
}

func newTestServer(t *testing.T, router *WSRouter) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = router.ServeConn(context.Background(), conn)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestServeConnRoutesAndReportsErrors(t *testing.T) {
	router := New()

	var order []string
	router.Use(func(next HandlerFunc[any]) HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			order = append(order, "outer:"+GetMessageTypeFromCtx(ctx))
			return next(ctx, conn, payload)
		}
	})

	Handle(router, "echo", func(ctx context.Context, conn *websocket.Conn, in echoInput) error {
		return conn.WriteJSON(map[string]string{"type": "echo", "text": in.Text})
	})
	Handle(router, "fail", func(ctx context.Context, conn *websocket.Conn, _ struct{}) error {
		return errors.New("boom")
	})
	router.OnError(func(ctx context.Context, conn *websocket.Conn, err error) {
		_ = conn.WriteJSON(map[string]string{"type": "error", "text": err.Error()})
	})

	conn := newTestServer(t, router)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	read := func() map[string]string {
		var out map[string]string
		require.NoError(t, conn.ReadJSON(&out))
		return out
	}

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "echo", "payload": map[string]string{"text": "hi"}}))
	assert.Equal(t, map[string]string{"type": "echo", "text": "hi"}, read())

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "fail"}))
	assert.Equal(t, "boom", read()["text"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "nope"}))
	assert.Contains(t, read()["text"], ErrUnknownMessageType.Error())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Contains(t, read()["text"], ErrInvalidMessage.Error())

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "echo", "payload": "wrong-shape"}))
	assert.Contains(t, read()["text"], ErrInvalidMessage.Error())

	assert.Equal(t, []string{"outer:echo", "outer:fail", "outer:nope", "outer:echo"}, order)
}
