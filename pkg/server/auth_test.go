package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeolun/medius/pkg/database"
	"github.com/aeolun/medius/pkg/plugins"
	"github.com/aeolun/medius/pkg/protocol"
)

// call hands msg to the role handler of c
func call(t *testing.T, c *Conn, msg protocol.Message) {
	t.Helper()
	require.NoError(t, c.role.handler.handleApp(c, msg))
}

// beginSession runs a session begin on c and returns the new identity
func beginSession(t *testing.T, c *Conn) *Client {
	t.Helper()
	call(t, c, &protocol.SessionBeginRequest{MessageID: "begin"})
	resp := only[*protocol.SessionBeginResponse](t, drain(c))
	require.Equal(t, protocol.StatusSuccess, resp.StatusCode)
	require.NotNil(t, c.Client())
	require.Equal(t, c.Client().SessionKey, resp.SessionKey)
	return c.Client()
}

// login sends an account login and waits for the asynchronous answer
func login(t *testing.T, c *Conn, name, password string) *protocol.AccountLoginResponse {
	t.Helper()
	call(t, c, &protocol.AccountLoginRequest{MessageID: "login", Username: name, Password: password})
	if msgs := drain(c); len(msgs) > 0 {
		return only[*protocol.AccountLoginResponse](t, msgs)
	}
	runPosted(t, c)
	return only[*protocol.AccountLoginResponse](t, drain(c))
}

func TestLoginSuccess(t *testing.T) {
	sink := &recordSink{}
	srv, store, _ := newTestServer(t, WithEventSink(sink))
	acct := store.addAccount(testAppID, "alice", "secret")

	c, _ := testConn(t, srv, RoleAuth, testAppID)
	cl := beginSession(t, c)

	resp := login(t, c, "alice", "secret")
	assert.Equal(t, protocol.StatusSuccess, resp.StatusCode)
	assert.EqualValues(t, acct.ID, resp.AccountID)

	lobby := srv.channels.DefaultLobby(testAppID, defaultLobbyName)
	assert.Equal(t, lobby.ID, resp.MediusWorldID)
	assert.Equal(t, lobby.ID, resp.ConnectInfo.WorldID)
	assert.Equal(t, cl.SessionKey, resp.ConnectInfo.SessionKey)
	assert.Equal(t, cl.AccessToken, resp.ConnectInfo.AccessKey)
	assert.EqualValues(t, srv.cfg.Listeners[RoleLobby].Port, resp.ConnectInfo.AddressList[0].Port)

	assert.True(t, cl.IsLoggedIn())
	assert.Equal(t, "alice", cl.AccountName())
	found, ok := srv.clients.ByAccount(testAppID, int32(acct.ID))
	require.True(t, ok)
	assert.Same(t, cl, found)
	assert.Equal(t, []string{"10.0.0.7"}, store.postedIPs[acct.ID])
	assert.Contains(t, sink.types(), plugins.EventPlayerLoggedIn)
}

func TestLoginBadPasswordKeepsConnection(t *testing.T) {
	srv, store, _ := newTestServer(t)
	store.addAccount(testAppID, "alice", "secret")

	c, _ := testConn(t, srv, RoleAuth, testAppID)
	cl := beginSession(t, c)

	resp := login(t, c, "alice", "wrong")
	assert.Equal(t, protocol.StatusInvalidPassword, resp.StatusCode)
	assert.True(t, c.Alive())
	assert.False(t, cl.IsLoggedIn())

	// The same connection can retry
	resp = login(t, c, "alice", "secret")
	assert.Equal(t, protocol.StatusSuccess, resp.StatusCode)
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(store *memStore, acct *database.Account)
		user   string
		status protocol.CallbackStatus
	}{
		{
			name:   "unknown account",
			user:   "bob",
			status: protocol.StatusAccountNotFound,
		},
		{
			name:   "banned account",
			setup:  func(store *memStore, acct *database.Account) { store.setBanned(acct.ID) },
			user:   "alice",
			status: protocol.StatusAccountBanned,
		},
		{
			name:   "banned ip",
			setup:  func(store *memStore, _ *database.Account) { store.ipBans["10.0.0.7"] = true },
			user:   "alice",
			status: protocol.StatusAccountBanned,
		},
		{
			name:   "maintenance",
			setup:  func(store *memStore, _ *database.Account) { store.flags.Maintenance = true },
			user:   "alice",
			status: protocol.StatusRequestDenied,
		},
		{
			name:   "store failure",
			setup:  func(store *memStore, _ *database.Account) { store.failLookups = assert.AnError },
			user:   "alice",
			status: protocol.StatusDBError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store, _ := newTestServer(t)
			acct := store.addAccount(testAppID, "alice", "secret")
			if tt.setup != nil {
				tt.setup(store, acct)
			}

			c, _ := testConn(t, srv, RoleAuth, testAppID)
			cl := beginSession(t, c)
			resp := login(t, c, tt.user, "secret")
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.False(t, cl.IsLoggedIn())
			assert.True(t, c.Alive())
		})
	}
}

func TestLoginMachineBan(t *testing.T) {
	srv, store, _ := newTestServer(t)
	store.addAccount(testAppID, "alice", "secret")
	store.machineBans["0a0b"] = true

	c, _ := testConn(t, srv, RoleAuth, testAppID)
	cl := beginSession(t, c)
	call(t, c, &protocol.MachineSignaturePost{MessageID: "sig", MachineSignature: []byte{0x0a, 0x0b}})
	assert.Equal(t, "0a0b", cl.MachineID())
	assert.Empty(t, drain(c), "machine signature has no response")

	resp := login(t, c, "alice", "secret")
	assert.Equal(t, protocol.StatusMachineBanned, resp.StatusCode)
}

func TestLoginWithoutSession(t *testing.T) {
	srv, store, _ := newTestServer(t)
	store.addAccount(testAppID, "alice", "secret")

	c, _ := testConn(t, srv, RoleAuth, testAppID)
	resp := login(t, c, "alice", "secret")
	assert.Equal(t, protocol.StatusInvalidOperation, resp.StatusCode)
}

func TestLoginTwice(t *testing.T) {
	srv, store, _ := newTestServer(t)
	store.addAccount(testAppID, "alice", "secret")

	c, _ := testConn(t, srv, RoleAuth, testAppID)
	beginSession(t, c)
	require.Equal(t, protocol.StatusSuccess, login(t, c, "alice", "secret").StatusCode)
	assert.Equal(t, protocol.StatusAccountLoggedIn, login(t, c, "alice", "secret").StatusCode)

	// A second identity cannot take the account either
	other, _ := testConn(t, srv, RoleAuth, testAppID)
	beginSession(t, other)
	assert.Equal(t, protocol.StatusAccountLoggedIn, login(t, other, "alice", "secret").StatusCode)
}

func TestLoginCreatesAccountOnNotFound(t *testing.T) {
	srv, store, _ := newTestServer(t)
	srv.apps.Replace([]AppSettings{{AppID: testAppID, MediusVersion: 109, CreateAccountOnNotFound: true}})

	c, _ := testConn(t, srv, RoleAuth, testAppID)
	beginSession(t, c)
	resp := login(t, c, "newcomer", "pw")
	assert.Equal(t, protocol.StatusSuccess, resp.StatusCode)

	acct, err := store.GetAccountByName(t.Context(), "newcomer", testAppID)
	require.NoError(t, err)
	assert.EqualValues(t, acct.ID, resp.AccountID)
	assert.True(t, acct.CheckPassword("pw"))
}

func TestLoginWhitelist(t *testing.T) {
	srv, store, _ := newTestServer(t)
	srv.apps.Replace([]AppSettings{{AppID: testAppID, MediusVersion: 109, WhitelistEnabled: true, Whitelist: []string{"Alice"}}})
	store.addAccount(testAppID, "alice", "secret")
	store.addAccount(testAppID, "mallory", "secret")

	c, _ := testConn(t, srv, RoleAuth, testAppID)
	beginSession(t, c)
	assert.Equal(t, protocol.StatusFail, login(t, c, "mallory", "secret").StatusCode)
	assert.Equal(t, protocol.StatusSuccess, login(t, c, "alice", "secret").StatusCode)
}

func TestRegister(t *testing.T) {
	srv, store, _ := newTestServer(t)
	c, _ := testConn(t, srv, RoleAuth, testAppID)
	beginSession(t, c)

	register := func(name string) *protocol.AccountRegistrationResponse {
		call(t, c, &protocol.AccountRegistrationRequest{MessageID: "reg", AccountName: name, Password: "pw"})
		if msgs := drain(c); len(msgs) > 0 {
			return only[*protocol.AccountRegistrationResponse](t, msgs)
		}
		runPosted(t, c)
		return only[*protocol.AccountRegistrationResponse](t, drain(c))
	}

	resp := register("carol")
	require.Equal(t, protocol.StatusSuccess, resp.StatusCode)
	acct, err := store.GetAccountByID(t.Context(), int64(resp.AccountID))
	require.NoError(t, err)
	assert.Equal(t, "carol", acct.Name)

	assert.Equal(t, protocol.StatusAccountAlreadyExists, register("Carol").StatusCode)

	srv.apps.Replace([]AppSettings{{AppID: testAppID, MediusVersion: 109, DisableAccountCreation: true}})
	app, _ := srv.apps.Lookup(testAppID)
	c.setApp(app)
	assert.Equal(t, protocol.StatusFail, register("dave").StatusCode)
}

func TestRegisterRejectsFilteredName(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.apps.Replace([]AppSettings{{AppID: testAppID, MediusVersion: 109, FilterWords: []string{"badword"}}})
	c, _ := testConn(t, srv, RoleAuth, testAppID)
	beginSession(t, c)

	call(t, c, &protocol.AccountRegistrationRequest{MessageID: "reg", AccountName: "xXbadwordXx", Password: "pw"})
	resp := only[*protocol.AccountRegistrationResponse](t, drain(c))
	assert.Equal(t, protocol.StatusFail, resp.StatusCode)
}

func TestLogout(t *testing.T) {
	sink := &recordSink{}
	srv, store, _ := newTestServer(t, WithEventSink(sink))
	store.addAccount(testAppID, "alice", "secret")

	c, _ := testConn(t, srv, RoleAuth, testAppID)
	cl := beginSession(t, c)
	require.Equal(t, protocol.StatusSuccess, login(t, c, "alice", "secret").StatusCode)

	call(t, c, &protocol.AccountLogoutRequest{MessageID: "out"})
	resp := only[*protocol.AccountLogoutResponse](t, drain(c))
	assert.Equal(t, protocol.StatusSuccess, resp.StatusCode)
	assert.False(t, cl.IsLoggedIn())
	assert.Contains(t, sink.types(), plugins.EventPlayerLoggedOut)

	call(t, c, &protocol.AccountLogoutRequest{MessageID: "out"})
	resp = only[*protocol.AccountLogoutResponse](t, drain(c))
	assert.Equal(t, protocol.StatusInvalidOperation, resp.StatusCode)
}

func TestSessionEndRemovesIdentity(t *testing.T) {
	srv, _, _ := newTestServer(t)
	c, _ := testConn(t, srv, RoleAuth, testAppID)
	cl := beginSession(t, c)

	call(t, c, &protocol.SessionEndRequest{MessageID: "end"})
	resp := only[*protocol.SessionEndResponse](t, drain(c))
	assert.Equal(t, protocol.StatusSuccess, resp.StatusCode)
	_, ok := srv.clients.BySessionKey(cl.SessionKey)
	assert.False(t, ok)
}

func TestAnonymousLogin(t *testing.T) {
	srv, _, _ := newTestServer(t)
	c, _ := testConn(t, srv, RoleAuth, testAppID)
	cl := beginSession(t, c)

	call(t, c, &protocol.AnonymousLoginRequest{MessageID: "anon", SessionDisplayName: "guest"})
	resp := only[*protocol.AnonymousLoginResponse](t, drain(c))
	assert.Equal(t, protocol.StatusSuccess, resp.StatusCode)
	assert.Less(t, resp.AccountID, int32(0))
	assert.True(t, cl.IsLoggedIn())
	assert.Equal(t, "guest", cl.AccountName())
}

func TestLoginKeepsIdentityAcrossHandOff(t *testing.T) {
	srv, store, clock := newTestServer(t)
	store.addAccount(testAppID, "alice", "secret")

	c, _ := testConn(t, srv, RoleAuth, testAppID)
	cl := beginSession(t, c)
	require.Equal(t, protocol.StatusSuccess, login(t, c, "alice", "secret").StatusCode)

	// The auth connection closes; the identity waits for the lobby
	c.Close(ErrConnectionClosed)
	srv.Tick(clock.Now())
	assert.False(t, c.Alive())
	_, ok := srv.clients.ByAccessToken(cl.AccessToken)
	assert.True(t, ok)

	clock.Advance(srv.clients.KeepAliveGrace() + time.Second)
	srv.Tick(clock.Now())
	_, ok = srv.clients.ByAccessToken(cl.AccessToken)
	assert.False(t, ok, "identity expires once the grace passes")
	assert.False(t, cl.IsLoggedIn())
}

func TestServerTimeAndVersion(t *testing.T) {
	srv, _, clock := newTestServer(t)
	c, _ := testConn(t, srv, RoleAuth, testAppID)

	call(t, c, &protocol.GetServerTimeRequest{MessageID: "time"})
	st := only[*protocol.GetServerTimeResponse](t, drain(c))
	assert.EqualValues(t, clock.Now().Unix(), st.GMTTime)

	call(t, c, &protocol.VersionServerRequest{MessageID: "ver"})
	v := only[*protocol.VersionServerResponse](t, drain(c))
	assert.Equal(t, versionServerString, v.VersionServer)
}
