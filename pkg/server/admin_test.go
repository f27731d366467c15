package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminGet(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAdminHealth(t *testing.T) {
	srv, _, clock := newTestServer(t)
	c, _ := testConn(t, srv, RoleLobby, testAppID)
	loggedIn(t, srv, c, 1, "alice")
	srv.Tick(clock.Now())

	rec := adminGet(t, srv.AdminHandler(), http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.Connections[string(RoleLobby)])
	assert.Equal(t, 0, health.Connections[string(RoleAuth)])
	assert.Equal(t, 1, health.Clients)
}

func TestAdminGamesListAndEnd(t *testing.T) {
	srv, _, _ := newTestServer(t)
	c, _ := testConn(t, srv, RoleLobby, testAppID)
	host := loggedIn(t, srv, c, 1, "host")
	g := createArena(t, srv, host, "Arena1")
	h := srv.AdminHandler()

	rec := adminGet(t, h, http.MethodGet, "/api/games")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Games []GameInfo `json:"games"`
		Count int        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "Arena1", list.Games[0].Name)
	assert.Equal(t, "host", list.Games[0].Host)

	rec = adminGet(t, h, http.MethodGet, fmt.Sprintf("/api/games?app_id=%d", testAppID+1))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Zero(t, list.Count)

	rec = adminGet(t, h, http.MethodPost, fmt.Sprintf("/api/games/%d/end", g.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, srv.games.Count())
	assert.False(t, g.Channel.NameTaken("Arena1"))

	rec = adminGet(t, h, http.MethodPost, fmt.Sprintf("/api/games/%d/end", g.ID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminBadParameters(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.AdminHandler()

	for _, path := range []string{"/api/games?app_id=abc", "/api/channels?app_id=1.5", "/api/clients?app_id=x"} {
		rec := adminGet(t, h, http.MethodGet, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
	rec := adminGet(t, h, http.MethodPost, "/api/games/abc/end")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminChannelsClientsNodes(t *testing.T) {
	srv, _, _ := newTestServer(t)
	c, _ := testConn(t, srv, RoleLobby, testAppID)
	cl := loggedIn(t, srv, c, 7, "alice")
	lobby := srv.channels.DefaultLobby(testAppID, defaultLobbyName)
	cl.JoinChannel(lobby)
	registerNode(t, srv)
	h := srv.AdminHandler()

	var channels struct {
		Channels []ChannelInfo `json:"channels"`
	}
	rec := adminGet(t, h, http.MethodGet, "/api/channels")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &channels))
	require.Len(t, channels.Channels, 1)
	assert.Equal(t, defaultLobbyName, channels.Channels[0].Name)
	assert.EqualValues(t, 1, channels.Channels[0].PlayerCount)

	var clients struct {
		Clients []ClientInfo `json:"clients"`
	}
	rec = adminGet(t, h, http.MethodGet, fmt.Sprintf("/api/clients?app_id=%d", testAppID))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &clients))
	var names []string
	for _, ci := range clients.Clients {
		names = append(names, ci.AccountName)
	}
	assert.Contains(t, names, "alice")

	var nodes struct {
		Nodes []NodeInfo `json:"nodes"`
		Count int        `json:"count"`
	}
	rec = adminGet(t, h, http.MethodGet, "/api/nodes")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nodes))
	require.Equal(t, 1, nodes.Count)
	assert.Equal(t, "10.0.0.7:50000", nodes.Nodes[0].Address)
}

func TestAdminMetrics(t *testing.T) {
	srv, _, clock := newTestServer(t)
	testConn(t, srv, RoleAuth, testAppID)
	srv.Tick(clock.Now())

	rec := adminGet(t, srv.AdminHandler(), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `medius_active_connections{role="auth"} 1`), body)
}

func TestAdminMetricsDisabled(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.cfg.MetricsEnabled = false
	rec := adminGet(t, srv.AdminHandler(), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
