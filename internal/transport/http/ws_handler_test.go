package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, ts *testServer) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func sendLine(t *testing.T, conn *websocket.Conn, line string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(line)))
}

func expectWSLine(t *testing.T, conn *websocket.Conn, want string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	typ, data, err := conn.Read(ctx)
	require.NoError(t, err, "waiting for %q", want)
	assert.Equal(t, websocket.MessageText, typ)
	assert.Equal(t, want, string(data))
}

func expectWSClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestWebSocketChat(t *testing.T) {
	ts := startTestServer(t)
	token := registerAndLogin(t, ts, "alice", "Alice")
	registerAndLogin(t, ts, "bob", "Bob")

	alice := dialWS(t, ts)
	sendLine(t, alice, "/auth alice secret1")
	expectWSLine(t, alice, "/authok Alice alice")
	expectWSLine(t, alice, "/notify Alice вошел в чат")

	bob := dialWS(t, ts)
	sendLine(t, bob, "/auth bob wrong")
	expectWSLine(t, bob, "Неправильный логин или пароль")
	sendLine(t, bob, "/auth bob secret1")
	expectWSLine(t, bob, "/authok Bob bob")
	expectWSLine(t, bob, "/notify Bob вошел в чат")
	expectWSLine(t, alice, "/notify Bob вошел в чат")

	resp, data := doJSON(t, ts, http.MethodGet, "/api/online", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var online OnlineResponse
	require.NoError(t, json.Unmarshal(data, &online))
	assert.Equal(t, OnlineResponse{Count: 2, Nicks: []string{"Alice", "Bob"}}, online)

	sendLine(t, alice, "hi there")
	expectWSLine(t, alice, "[Alice]: hi there")
	expectWSLine(t, bob, "[Alice]: hi there")

	sendLine(t, bob, "/chnick Bobby")
	expectWSLine(t, bob, "/chnickok Bobby")
	expectWSLine(t, bob, "/notify [Bob сменил ник на Bobby]")
	expectWSLine(t, alice, "/notify [Bob сменил ник на Bobby]")

	sendLine(t, bob, "/end")
	expectWSClosed(t, bob)
	expectWSLine(t, alice, "/notify Bobby покинул чат")
}

func TestWebSocketClientCloseAnnouncesLeave(t *testing.T) {
	ts := startTestServer(t)
	registerAndLogin(t, ts, "alice", "Alice")
	registerAndLogin(t, ts, "bob", "Bob")

	alice := dialWS(t, ts)
	sendLine(t, alice, "/auth alice secret1")
	expectWSLine(t, alice, "/authok Alice alice")
	expectWSLine(t, alice, "/notify Alice вошел в чат")

	bob := dialWS(t, ts)
	sendLine(t, bob, "/auth bob secret1")
	expectWSLine(t, bob, "/authok Bob bob")
	expectWSLine(t, alice, "/notify Bob вошел в чат")

	require.NoError(t, bob.Close(websocket.StatusNormalClosure, "bye"))
	expectWSLine(t, alice, "/notify Bob покинул чат")
	require.Eventually(t, func() bool { return ts.hub.Registry().Len() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketBinaryMessageEndsSession(t *testing.T) {
	ts := startTestServer(t)

	conn := dialWS(t, ts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageBinary, []byte{0x01, 0x02}))

	expectWSClosed(t, conn)
}
