package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeolun/medius/pkg/server"
)

func newAPI(t *testing.T, appID int32) *apiClient {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.EncryptionEnabled = false
	def := server.DefaultTOMLConfig()
	srv, err := server.NewServer(cfg, server.NewAppTable(def.Apps, cfg.Pre108CompleteApps))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.AdminHandler())
	t.Cleanup(ts.Close)
	return &apiClient{base: ts.URL, appID: appID, http: ts.Client()}
}

func TestHealthTable(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(newAPI(t, 0), &out, "health", nil))
	assert.Contains(t, out.String(), "healthy")
	assert.Contains(t, out.String(), "Connections (lobby)")
}

func TestChannelsTableFiltersByApp(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(newAPI(t, 11184), &out, "channels", nil))
	assert.Contains(t, out.String(), "Lobby")
	assert.Contains(t, out.String(), "11184")
	assert.NotContains(t, out.String(), "10684")
}

func TestEmptyTables(t *testing.T) {
	api := newAPI(t, 0)
	for _, cmd := range []string{"games", "clients", "nodes"} {
		var out bytes.Buffer
		require.NoError(t, run(api, &out, cmd, nil), cmd)
		assert.NotEmpty(t, out.String(), cmd)
	}
}

func TestEndUnknownGame(t *testing.T) {
	var out bytes.Buffer
	err := run(newAPI(t, 0), &out, "end", []string{"99"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "game not found")

	assert.Error(t, run(newAPI(t, 0), &out, "end", []string{"abc"}))
	assert.Error(t, run(newAPI(t, 0), &out, "end", nil))
}

func TestUnknownCommand(t *testing.T) {
	err := run(&apiClient{base: "http://127.0.0.1:1", http: http.DefaultClient}, &bytes.Buffer{}, "restart", nil)
	assert.EqualError(t, err, `unknown command "restart"`)
}
