package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeolun/medius/pkg/protocol"
)

func dialWebSocket(t *testing.T, srv *Server, clock *fakeClock, role string) *pipeClient {
	t.Helper()
	ts := httptest.NewServer(srv.AdminHandler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + role
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	conn := newWSConn(ws)
	p := &pipeClient{
		t:      t,
		srv:    srv,
		clock:  clock,
		conn:   conn,
		frames: make(chan *protocol.Frame, 64),
		done:   make(chan struct{}),
	}
	go p.readLoop()
	t.Cleanup(func() { conn.Close() })
	return p
}

func TestWebSocketHandshakeAndLogin(t *testing.T) {
	srv, store, clock := newTestServer(t)
	store.addAccount(testAppID, "alice", "secret")

	p := dialWebSocket(t, srv, clock, "auth")
	p.handshake(testAppID)
	assert.Equal(t, 1, srv.Role(RoleAuth).Count())

	p.sendApp(&protocol.SessionBeginRequest{MessageID: "s1"})
	session := recvApp[*protocol.SessionBeginResponse](p)
	require.Equal(t, protocol.StatusSuccess, session.StatusCode)

	p.sendApp(&protocol.AccountLoginRequest{MessageID: "l1", Username: "alice", Password: "secret"})
	login := recvApp[*protocol.AccountLoginResponse](p)
	assert.Equal(t, protocol.StatusSuccess, login.StatusCode)
}

func TestWebSocketTextMessageCloses(t *testing.T) {
	srv, _, clock := newTestServer(t)
	p := dialWebSocket(t, srv, clock, "lobby")

	ws := p.conn.(*wsConn).ws
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("hello")))
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		srv.Tick(clock.Now())
		select {
		case <-p.done:
			assert.Zero(t, srv.Role(RoleLobby).Count())
			return
		case <-time.After(5 * time.Millisecond):
		}
	}
	t.Fatal("connection stayed open")
}

func TestWebSocketUnknownRole(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := adminGet(t, srv.AdminHandler(), http.MethodGet, "/ws/medius")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
