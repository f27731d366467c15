package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/aeolun/medius/pkg/plugins"
	"github.com/aeolun/medius/pkg/protocol"
)

func TestCorrelationIDRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		game := rapid.Int32Range(0, 99999).Draw(rt, "game")
		account := rapid.Int32Range(0, 99999).Draw(rt, "account")
		msg := rapid.StringMatching(`[a-z0-9]{0,8}`).Draw(rt, "msg")

		id := correlationID(game, account, msg)
		if len(id) >= protocol.MessageIDLen {
			rt.Fatalf("id %q does not fit the message id field", id)
		}
		g, a, _, ok := parseCorrelationID(id)
		if !ok || g != game || a != account {
			rt.Fatalf("parse(%q) = %d, %d, %v", id, g, a, ok)
		}
	})
}

func TestParseCorrelationIDRejectsGarbage(t *testing.T) {
	for _, id := range []string{"", "abc", "1", "x-2-m", "1-y-m"} {
		_, _, _, ok := parseCorrelationID(id)
		assert.False(t, ok, id)
	}
}

func TestNodeRegistrationForms(t *testing.T) {
	srv, _, _ := newTestServer(t)

	ac, _ := testConn(t, srv, RoleRouting, testAppID)
	var list protocol.NetAddressList
	list[0] = protocol.NetAddress{AddressType: protocol.NetAddressTypeExternal, Address: "203.0.113.9", Port: 51000}
	call(t, ac, &protocol.ServerAuthenticationRequest{MessageID: "auth", AddressList: list})
	auth := only[*protocol.ServerAuthenticationResponse](t, drain(ac))
	assert.Equal(t, protocol.MGCLSuccess, auth.Confirmation)
	require.NotNil(t, ac.Client())
	assert.Equal(t, ac.Client().SessionKey, auth.ConnectInfo.SessionKey)

	n, ok := srv.nodes.ForConn(ac)
	require.True(t, ok)
	assert.Equal(t, "203.0.113.9", n.Address().Address)

	// Attributes update the address of the same node
	call(t, ac, &protocol.ServerSetAttributesRequest{
		MessageID:           "attrs",
		ListenServerAddress: protocol.NetAddress{Port: 51001},
	})
	attrs := only[*protocol.ServerSetAttributesResponse](t, drain(ac))
	assert.Equal(t, protocol.MGCLSuccess, attrs.Confirmation)
	again, _ := srv.nodes.ForConn(ac)
	assert.Same(t, n, again)
	assert.Equal(t, "10.0.0.7", n.Address().Address)
	assert.EqualValues(t, 51001, n.Address().Port)
	assert.Equal(t, protocol.NetAddressTypeExternal, n.Address().AddressType)
	assert.Len(t, srv.nodes.List(), 1)
}

func TestLeastLoadedNode(t *testing.T) {
	srv, _, _ := newTestServer(t)
	busy, first := registerNode(t, srv)
	_, second := registerNode(t, srv)

	best, ok := srv.nodes.Least(testAppID)
	require.True(t, ok)
	assert.Same(t, first, best, "ties go to the older node")

	call(t, busy, &protocol.ServerReport{MaxWorlds: 10, ActiveWorldCount: 4, TotalActivePlayers: 12})
	best, _ = srv.nodes.Least(testAppID)
	assert.Same(t, second, best)
	assert.EqualValues(t, 4, first.Info().ActiveWorlds)

	_, ok = srv.nodes.Least(testAppID + 1)
	assert.False(t, ok, "nodes registered for one title do not serve another")
}

func TestCreateReservesNodeCapacity(t *testing.T) {
	srv, _, _ := newTestServer(t)
	nc, node := registerNode(t, srv)
	hc, _ := testConn(t, srv, RoleLobby, testAppID)
	loggedIn(t, srv, hc, 1, "host")

	call(t, hc, &protocol.CreateGameRequest{MessageID: "create", GameName: "Arena1"})
	drain(nc)
	assert.Equal(t, 1, node.Load())

	call(t, nc, &protocol.ServerReport{ActiveWorldCount: 1})
	assert.Equal(t, 1, node.Load(), "a report replaces reservations")
}

func TestAnswerFromUnknownRequest(t *testing.T) {
	srv, _, _ := newTestServer(t)
	nc, _ := registerNode(t, srv)
	call(t, nc, &protocol.ServerCreateGameWithAttributesResponse{MessageID: "garbage", Confirmation: protocol.MGCLSuccess})
	assert.Empty(t, drain(nc))

	stranger, _ := testConn(t, srv, RoleRouting, testAppID)
	call(t, stranger, &protocol.ServerJoinGameResponse{MessageID: "1-1-x", Confirmation: protocol.MGCLSuccess})
	assert.Empty(t, drain(stranger))
}

func TestConnectNotificationEmitsJoinAndLeave(t *testing.T) {
	sink := &recordSink{}
	srv, _, clock := newTestServer(t, WithEventSink(sink))
	nc, _ := registerNode(t, srv)
	hc, _ := testConn(t, srv, RoleLobby, testAppID)
	host := loggedIn(t, srv, hc, 1, "host")
	g := createRouted(t, srv, hc, nc, "Arena1", 3)
	host.JoinGame(g, 0)

	call(t, nc, &protocol.ServerConnectNotification{
		ConnectEventType: protocol.EventClientConnect,
		MediusWorldUID:   3,
		PlayerSessionKey: host.SessionKey,
	})
	assert.True(t, g.HostJoined())
	assert.Contains(t, sink.types(), plugins.EventPlayerJoinedGame)

	call(t, nc, &protocol.ServerConnectNotification{
		ConnectEventType: protocol.EventClientDisconnect,
		MediusWorldUID:   3,
		PlayerSessionKey: host.SessionKey,
	})
	assert.Contains(t, sink.types(), plugins.EventPlayerLeftGame)
	assert.Nil(t, host.CurrentGame())

	srv.games.Tick(clock.Now())
	assert.True(t, g.Closed())
}

func TestNodeEndGameSoftAndBrutal(t *testing.T) {
	srv, _, clock := newTestServer(t)
	nc, _ := registerNode(t, srv)
	hc, _ := testConn(t, srv, RoleLobby, testAppID)
	host := loggedIn(t, srv, hc, 1, "host")

	soft := createRouted(t, srv, hc, nc, "Soft", 3)
	host.JoinGame(soft, 0)
	call(t, nc, &protocol.ServerEndGameRequest{MessageID: "e1", WorldID: 3})
	resp := only[*protocol.ServerEndGameResponse](t, drain(nc))
	assert.Equal(t, protocol.MGCLSuccess, resp.Confirmation)
	assert.True(t, soft.Closed())
	_, ok := srv.games.Get(soft.ID)
	assert.True(t, ok, "a soft end leaves the game to the reaper")

	brutal := createRouted(t, srv, hc, nc, "Brutal", 4)
	host.JoinGame(brutal, 0)
	call(t, nc, &protocol.ServerEndGameRequest{MessageID: "e2", WorldID: 4, BrutalFlag: true})
	msgs := drain(nc)
	require.NotEmpty(t, msgs)
	resp = msgs[len(msgs)-1].(*protocol.ServerEndGameResponse)
	assert.Equal(t, protocol.MGCLSuccess, resp.Confirmation)
	_, ok = srv.games.Get(brutal.ID)
	assert.False(t, ok)
	assert.Nil(t, host.CurrentGame())

	// The name is free straight away
	again := createRouted(t, srv, hc, nc, "Brutal", 5)
	assert.NotEqual(t, brutal.ID, again.ID)

	call(t, nc, &protocol.ServerEndGameRequest{MessageID: "e3", WorldID: 99})
	resp = only[*protocol.ServerEndGameResponse](t, drain(nc))
	assert.Equal(t, protocol.MGCLInvalidArg, resp.Confirmation)

	srv.games.Tick(clock.Now())
	clock.Advance(2 * reapGrace)
	srv.games.Tick(clock.Now())
	_, ok = srv.games.Get(soft.ID)
	assert.False(t, ok)
}

func TestPeerHostedGame(t *testing.T) {
	sink := &recordSink{}
	srv, _, _ := newTestServer(t, WithEventSink(sink))
	hc, _ := testConn(t, srv, RoleLobby, testAppID)
	host := loggedIn(t, srv, hc, 1, "host")

	rc, _ := testConn(t, srv, RoleRouting, testAppID)
	var list protocol.NetAddressList
	list[0] = protocol.NetAddress{AddressType: protocol.NetAddressTypeExternal, Address: "192.168.1.5", Port: 6000}
	call(t, rc, &protocol.ServerCreateGameOnMeRequest{
		MessageID:    "onme",
		GameName:     "Peer",
		MaxClients:   4,
		GameHostType: protocol.HostPeerToPeer,
		AddressList:  list,
		WorldID:      77,
		AccountID:    1,
	})
	created := only[*protocol.ServerCreateGameOnMeResponse](t, drain(rc))
	require.Equal(t, protocol.MGCLSuccess, created.Confirmation)
	g, ok := srv.games.Get(created.MediusWorldID)
	require.True(t, ok)
	assert.Nil(t, g.Node)
	assert.Same(t, g, host.CurrentGame())
	assert.Contains(t, sink.types(), plugins.EventGameCreated)

	pc, _ := testConn(t, srv, RoleLobby, testAppID)
	player := loggedIn(t, srv, pc, 2, "player")
	call(t, pc, &protocol.JoinGameRequest{MessageID: "join", MediusWorldID: g.ID})
	joined := only[*protocol.JoinGameResponse](t, drain(pc))
	assert.Equal(t, protocol.StatusSuccess, joined.StatusCode)
	assert.Equal(t, protocol.NetConnectionPeerToPeerUDP, joined.ConnectInfo.Type)
	assert.Equal(t, "192.168.1.5", joined.ConnectInfo.AddressList[0].Address)
	assert.EqualValues(t, 77, joined.ConnectInfo.WorldID)
	assert.Same(t, g, player.CurrentGame())

	call(t, rc, &protocol.ServerWorldReportOnMe{
		MediusWorldID: g.ID,
		GameName:      "Peer",
		MaxClients:    4,
		WorldStatus:   protocol.WorldActive,
	})
	assert.Equal(t, protocol.WorldActive, g.Status())

	// Another machine cannot end it
	other, _ := testConn(t, srv, RoleRouting, testAppID)
	call(t, other, &protocol.ServerEndGameOnMeRequest{MessageID: "end", MediusWorldID: g.ID})
	refused := only[*protocol.ServerEndGameOnMeResponse](t, drain(other))
	assert.Equal(t, protocol.MGCLInvalidArg, refused.Confirmation)

	call(t, rc, &protocol.ServerEndGameOnMeRequest{MessageID: "end", MediusWorldID: g.ID})
	ended := only[*protocol.ServerEndGameOnMeResponse](t, drain(rc))
	assert.Equal(t, protocol.MGCLSuccess, ended.Confirmation)
	assert.Equal(t, 0, srv.games.Count())
	assert.Nil(t, player.CurrentGame())
}

func TestCreateGameOnMeRefusals(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rc, _ := testConn(t, srv, RoleRouting, testAppID)

	call(t, rc, &protocol.ServerCreateGameOnMeRequest{MessageID: "onme", GameName: "Peer", AccountID: 42})
	resp := only[*protocol.ServerCreateGameOnMeResponse](t, drain(rc))
	assert.Equal(t, protocol.MGCLNotInitialized, resp.Confirmation)

	hc, _ := testConn(t, srv, RoleLobby, testAppID)
	host := loggedIn(t, srv, hc, 42, "host")
	createArena(t, srv, host, "Peer")

	call(t, rc, &protocol.ServerCreateGameOnMeRequest{MessageID: "onme", GameName: "peer", AccountID: 42})
	resp = only[*protocol.ServerCreateGameOnMeResponse](t, drain(rc))
	assert.Equal(t, protocol.MGCLUnsuccessful, resp.Confirmation)
}

func TestWorldStatus(t *testing.T) {
	srv, _, _ := newTestServer(t)
	nc, _ := registerNode(t, srv)
	hc, _ := testConn(t, srv, RoleLobby, testAppID)
	host := loggedIn(t, srv, hc, 1, "host")
	g := createRouted(t, srv, hc, nc, "Arena1", 3)
	host.JoinGame(g, 0)

	call(t, nc, &protocol.ServerWorldStatusRequest{MessageID: "ws", WorldID: g.ID})
	resp := only[*protocol.ServerWorldStatusResponse](t, drain(nc))
	assert.Equal(t, protocol.MGCLSuccess, resp.Confirmation)
	assert.EqualValues(t, 4, resp.MaxClients)
	assert.EqualValues(t, 1, resp.ActiveClients)
	assert.Equal(t, testAppID, resp.ApplicationID)

	call(t, nc, &protocol.ServerWorldStatusRequest{MessageID: "ws", ApplicationID: testAppID, WorldID: 404})
	resp = only[*protocol.ServerWorldStatusResponse](t, drain(nc))
	assert.Equal(t, protocol.MGCLInvalidArg, resp.Confirmation)
}

func TestNodeSessionEnd(t *testing.T) {
	srv, _, clock := newTestServer(t)
	nc, _ := registerNode(t, srv)
	cl := nc.Client()

	call(t, nc, &protocol.ServerSessionEndRequest{MessageID: "bye"})
	resp := only[*protocol.ServerSessionEndResponse](t, drain(nc))
	assert.Equal(t, protocol.MGCLSuccess, resp.Confirmation)
	_, ok := srv.nodes.ForConn(nc)
	assert.False(t, ok)

	// The identity outlives the connection for the keep-alive grace
	nc.Close(ErrConnectionClosed)
	cl.release(nc, clock.Now())
	assert.NotContains(t, srv.clients.Expired(clock.Now()), cl)

	bare, _ := testConn(t, srv, RoleRouting, testAppID)
	call(t, bare, &protocol.ServerSessionEndRequest{MessageID: "bye"})
	resp = only[*protocol.ServerSessionEndResponse](t, drain(bare))
	assert.Equal(t, protocol.MGCLSessionEndFailed, resp.Confirmation)
}

func TestRoutingDisconnectForgetsNode(t *testing.T) {
	srv, _, _ := newTestServer(t)
	nc, _ := registerNode(t, srv)
	nc.role.handler.disconnected(nc)
	_, ok := srv.nodes.ForConn(nc)
	assert.False(t, ok)
	assert.Empty(t, srv.nodes.List())
}

// gameNamed returns the registered game called name
func gameNamed(t *testing.T, srv *Server, name string) *Game {
	t.Helper()
	for _, g := range srv.games.List() {
		if g.Name() == name {
			return g
		}
	}
	t.Fatalf("no game named %q", name)
	return nil
}

func TestNodeLossFailsPendingRequests(t *testing.T) {
	srv, _, _ := newTestServer(t)
	nc, node := registerNode(t, srv)
	hc, _ := testConn(t, srv, RoleLobby, testAppID)
	loggedIn(t, srv, hc, 1, "host")
	g := createRouted(t, srv, hc, nc, "Arena1", 3)

	pc, _ := testConn(t, srv, RoleLobby, testAppID)
	loggedIn(t, srv, pc, 2, "player")
	call(t, pc, &protocol.JoinGameRequest{MessageID: "join", MediusWorldID: g.ID})

	oc, _ := testConn(t, srv, RoleLobby, testAppID)
	loggedIn(t, srv, oc, 3, "other")
	call(t, oc, &protocol.CreateGameRequest{MessageID: "create2", GameName: "Arena2"})
	pendingGame := gameNamed(t, srv, "Arena2")

	drain(nc)
	assert.Empty(t, drain(pc))
	assert.Empty(t, drain(oc))
	require.Equal(t, 2, node.Pending())

	nc.role.handler.disconnected(nc)

	join := only[*protocol.JoinGameResponse](t, drain(pc))
	assert.Equal(t, "join", join.MessageID)
	assert.Equal(t, protocol.StatusFail, join.StatusCode)

	create := only[*protocol.CreateGameResponse](t, drain(oc))
	assert.Equal(t, "create2", create.MessageID)
	assert.Equal(t, protocol.StatusFail, create.StatusCode)
	_, ok := srv.games.Get(pendingGame.ID)
	assert.False(t, ok, "a create the node never answered ends its game")

	assert.Equal(t, 0, node.Pending())
	_, ok = srv.games.Get(g.ID)
	assert.True(t, ok, "games already running on the node stay until they empty")
}

func TestNodeSessionEndFailsPendingRequests(t *testing.T) {
	srv, _, _ := newTestServer(t)
	nc, _ := registerNode(t, srv)
	hc, _ := testConn(t, srv, RoleLobby, testAppID)
	loggedIn(t, srv, hc, 1, "host")
	call(t, hc, &protocol.CreateGameRequest{MessageID: "create", GameName: "Arena1"})
	drain(nc)

	call(t, nc, &protocol.ServerSessionEndRequest{MessageID: "bye"})
	end := only[*protocol.ServerSessionEndResponse](t, drain(nc))
	assert.Equal(t, protocol.MGCLSuccess, end.Confirmation)

	resp := only[*protocol.CreateGameResponse](t, drain(hc))
	assert.Equal(t, protocol.StatusFail, resp.StatusCode)
	assert.Zero(t, srv.games.Count())
}

func TestSilentNodeRequestsExpire(t *testing.T) {
	srv, _, clock := newTestServer(t)
	nc, node := registerNode(t, srv)
	hc, _ := testConn(t, srv, RoleLobby, testAppID)
	loggedIn(t, srv, hc, 1, "host")

	call(t, hc, &protocol.CreateGameRequest{MessageID: "create", GameName: "Arena1"})
	req := only[*protocol.ServerCreateGameWithAttributesRequest](t, drain(nc))
	g := gameNamed(t, srv, "Arena1")
	require.Equal(t, 1, node.Load())

	srv.expireRouting(clock.Advance(srv.cfg.RoutingTimeout - time.Second))
	assert.Empty(t, drain(hc), "still within the answer window")
	assert.Equal(t, 1, node.Pending())

	srv.expireRouting(clock.Advance(2 * time.Second))
	resp := only[*protocol.CreateGameResponse](t, drain(hc))
	assert.Equal(t, "create", resp.MessageID)
	assert.Equal(t, protocol.StatusFail, resp.StatusCode)
	_, ok := srv.games.Get(g.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, node.Pending())
	assert.Equal(t, 0, node.Load(), "the expired reservation is released")

	// A late success only tells the node to drop the world it built
	call(t, nc, &protocol.ServerCreateGameWithAttributesResponse{
		MessageID:    req.MessageID,
		Confirmation: protocol.MGCLSuccess,
		WorldID:      9,
	})
	assert.Empty(t, drain(hc), "the host is answered once")
	end := only[*protocol.ServerEndGameRequest](t, drain(nc))
	assert.EqualValues(t, 9, end.WorldID)
}
