package transport

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialTestServer(t *testing.T, s *WebSocketServer) (*websocket.Conn, func()) {
	t.Helper()
	httpSrv := httptest.NewServer(s)
	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn, func() {
		_ = conn.Close()
		httpSrv.Close()
	}
}

func TestWebSocketHeartbeatIntervalOption(t *testing.T) {
	t.Parallel()

	s := NewWebSocketServer(&fakeDispatcher{}, nil, 0, WithHeartbeatInterval(5*time.Second))
	require.Equal(t, 5*time.Second, s.pingEvery)
	require.Equal(t, 10*time.Second, s.pongWait())
}

func TestWebSocketSendsWelcomeOnConnect(t *testing.T) {
	t.Parallel()

	s := NewWebSocketServer(&fakeDispatcher{}, nil, 0)
	conn, cleanup := dialTestServer(t, s)
	defer cleanup()

	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "welcome", msg["type"])
	require.NotEmpty(t, msg["connectionId"])
}

func TestWebSocketDispatchesJSONRPCFrames(t *testing.T) {
	t.Parallel()

	s := NewWebSocketServer(&fakeDispatcher{}, nil, 0)
	conn, cleanup := dialTestServer(t, s)
	defer cleanup()

	var welcome map[string]any
	require.NoError(t, conn.ReadJSON(&welcome))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)))

	var resp map[string]any
	require.NoError(t, conn.ReadJSON(&resp))
	require.Equal(t, "handled", resp["result"])
}

func TestWebSocketRejectsConnectionsOverCapacity(t *testing.T) {
	t.Parallel()

	s := NewWebSocketServer(&fakeDispatcher{}, nil, 1)
	conn1, cleanup1 := dialTestServer(t, s)
	defer cleanup1()

	var welcome map[string]any
	require.NoError(t, conn1.ReadJSON(&welcome))

	httpSrv := httptest.NewServer(s)
	defer httpSrv.Close()
	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http")
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn2.Close()

	_, _, err = conn2.ReadMessage()
	require.Error(t, err)
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok)
	require.Equal(t, closeCodeOverCapacity, closeErr.Code)
}

func TestWebSocketSendBroadcastsWithFilter(t *testing.T) {
	t.Parallel()

	s := NewWebSocketServer(&fakeDispatcher{}, nil, 0)
	conn, cleanup := dialTestServer(t, s)
	defer cleanup()

	var welcome map[string]any
	require.NoError(t, conn.ReadJSON(&welcome))
	connID := welcome["connectionId"].(string)

	require.Eventually(t, func() bool { return s.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	err := s.Send(map[string]any{"type": "broadcast", "text": "hi"}, func(id string) bool { return id == connID })
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "broadcast", msg["type"])

	err = s.Send(map[string]any{"type": "never"}, func(id string) bool { return false })
	require.NoError(t, err)
}
