package server

import (
	"errors"
	"time"

	"github.com/aeolun/medius/pkg/plugins"
	"github.com/aeolun/medius/pkg/protocol"
)

// routingRole is where routing nodes (DMEs) register, report load and
// answer the world requests the lobby sends them. Player machines hosting
// peer-to-peer games talk to it too.
type routingRole struct {
	srv *Server
}

func (r *routingRole) connected(c *Conn) {
	c.log.Debug().Bool("identity", c.Client() != nil).Msg("routing connection ready")
}

// disconnected forgets the node. Its games close through the normal tick
// once their members are gone.
func (r *routingRole) disconnected(c *Conn) {
	if n, ok := r.forget(c); ok {
		c.log.Info().Int32("node", n.ID).Msg("routing node gone")
	}
}

// forget removes the node on c and fails the requests it still owed
func (r *routingRole) forget(c *Conn) (*RoutingNode, bool) {
	n, ok := r.srv.nodes.Remove(c)
	if ok {
		r.srv.failRouting(n.drainPending(), "node gone")
	}
	return n, ok
}

// failRouting answers requests a node will never answer. A failed create
// ends the game it reserved.
func (s *Server) failRouting(reqs []pendingRequest, reason string) {
	for _, req := range reqs {
		var conn *Conn
		if req.client != nil {
			conn = req.client.Conn()
		}
		switch req.kind {
		case requestCreate:
			if g, ok := s.games.Get(req.gameID); ok {
				s.games.EndGame(g)
			}
			if conn != nil {
				conn.SendApp(&protocol.CreateGameResponse{MessageID: req.messageID, StatusCode: protocol.StatusFail})
			}
		case requestJoin:
			if conn != nil {
				conn.SendApp(&protocol.JoinGameResponse{MessageID: req.messageID, StatusCode: protocol.StatusFail})
			}
		}
		s.log.Warn().
			Int32("game", req.gameID).
			Int32("account", req.accountID).
			Str("reason", reason).
			Msg("routing request failed")
	}
}

// expireRouting fails the requests whose node did not answer in time
func (s *Server) expireRouting(now time.Time) {
	for _, n := range s.nodes.List() {
		if reqs := n.expirePending(now); len(reqs) > 0 {
			s.failRouting(reqs, "no answer from node")
		}
	}
}

func (r *routingRole) handleApp(c *Conn, msg protocol.Message) error {
	switch m := msg.(type) {
	case *protocol.ServerSessionBeginRequest:
		return r.sessionBegin(c, m)
	case *protocol.ServerAuthenticationRequest:
		return r.authentication(c, m)
	case *protocol.ServerSetAttributesRequest:
		return r.setAttributes(c, m)
	case *protocol.ServerReport:
		if n, ok := r.srv.nodes.ForConn(c); ok {
			n.OnServerReport(m)
		}
		return nil
	case *protocol.ServerCreateGameWithAttributesResponse:
		return r.createGameResponse(c, m)
	case *protocol.ServerJoinGameResponse:
		return r.joinGameResponse(c, m)
	case *protocol.ServerCreateGameOnMeRequest:
		return r.createGameOnMe(c, m)
	case *protocol.ServerWorldReportOnMe:
		return r.worldReportOnMe(c, m)
	case *protocol.ServerEndGameOnMeRequest:
		return r.endGameOnMe(c, m)
	case *protocol.ServerConnectNotification:
		return r.connectNotification(c, m)
	case *protocol.ServerEndGameRequest:
		return r.endGame(c, m)
	case *protocol.ServerEndGameResponse:
		c.log.Debug().Stringer("confirmation", m.Confirmation).Msg("world end acknowledged")
		return nil
	case *protocol.ServerSessionEndRequest:
		return r.sessionEnd(c, m)
	case *protocol.ServerWorldStatusRequest:
		return r.worldStatus(c, m)
	}
	c.log.Warn().Stringer("tag", msg.Tag()).Msg("message not handled by role")
	return nil
}

// identity returns the connection's client, creating one for nodes that
// came straight to the routing role
func (r *routingRole) identity(c *Conn) *Client {
	if cl := c.Client(); cl != nil {
		return cl
	}
	cl := r.srv.clients.Create(c.AppID())
	c.bindClient(cl)
	return cl
}

func (r *routingRole) register(c *Conn, appID int32, addr protocol.NetAddress) *RoutingNode {
	if addr.Address == "" {
		addr.Address = hostOf(c.RemoteAddr())
	}
	if addr.AddressType == protocol.NetAddressNone {
		addr.AddressType = protocol.NetAddressTypeExternal
	}
	n := r.srv.nodes.Register(c, appID, addr)
	c.log.Info().
		Int32("node", n.ID).
		Str("address", addr.Address).
		Uint32("port", addr.Port).
		Msg("routing node registered")
	return n
}

func (r *routingRole) sessionBegin(c *Conn, m *protocol.ServerSessionBeginRequest) error {
	cl := r.identity(c)
	r.register(c, m.ApplicationID, protocol.NetAddress{Port: uint32(m.Port)})
	return c.SendApp(&protocol.ServerSessionBeginResponse{
		MessageID:    m.MessageID,
		Confirmation: protocol.MGCLSuccess,
		ConnectInfo:  r.srv.routingConnectInfo(cl),
	})
}

func (r *routingRole) authentication(c *Conn, m *protocol.ServerAuthenticationRequest) error {
	cl := r.identity(c)
	r.register(c, c.AppID(), m.AddressList[0])
	return c.SendApp(&protocol.ServerAuthenticationResponse{
		MessageID:    m.MessageID,
		Confirmation: protocol.MGCLSuccess,
		ConnectInfo:  r.srv.routingConnectInfo(cl),
	})
}

func (r *routingRole) setAttributes(c *Conn, m *protocol.ServerSetAttributesRequest) error {
	r.identity(c)
	r.register(c, c.AppID(), m.ListenServerAddress)
	return c.SendApp(&protocol.ServerSetAttributesResponse{
		ConfirmationResponse: protocol.ConfirmationResponse{
			MessageID:    m.MessageID,
			Confirmation: protocol.MGCLSuccess,
		},
	})
}

// answer resolves a node's answer to the request it correlates with. The
// game is nil when it ended while the node was working.
func (r *routingRole) answer(c *Conn, messageID string) (*RoutingNode, pendingRequest, *Game, bool) {
	n, ok := r.srv.nodes.ForConn(c)
	if !ok {
		c.log.Warn().Str("message_id", messageID).Msg("routing answer from unregistered node")
		return nil, pendingRequest{}, nil, false
	}
	req, ok := n.takePending(messageID)
	if !ok {
		c.log.Warn().Str("message_id", messageID).Msg("routing answer without a request")
		return nil, pendingRequest{}, nil, false
	}
	if req.client == nil && !req.settled {
		req.client, _ = r.srv.clients.ByAccount(c.AppID(), req.accountID)
	}
	g, ok := r.srv.games.Get(req.gameID)
	if !ok || g.Closed() {
		g = nil
	}
	return n, req, g, true
}

func (r *routingRole) createGameResponse(c *Conn, m *protocol.ServerCreateGameWithAttributesResponse) error {
	n, req, g, ok := r.answer(c, m.MessageID)
	if !ok {
		return nil
	}
	respond := func(status protocol.CallbackStatus, worldID int32) {
		if req.client == nil {
			return
		}
		if conn := req.client.Conn(); conn != nil {
			conn.SendApp(&protocol.CreateGameResponse{
				MessageID:     req.messageID,
				StatusCode:    status,
				MediusWorldID: worldID,
			})
		}
	}

	if g == nil {
		if m.Confirmation == protocol.MGCLSuccess {
			n.EndWorld(m.WorldID)
		}
		respond(protocol.StatusGameNotFound, 0)
		return nil
	}
	if m.Confirmation != protocol.MGCLSuccess {
		c.log.Warn().Stringer("confirmation", m.Confirmation).Int32("game", g.ID).Msg("node refused world")
		respond(protocol.StatusFail, 0)
		r.srv.games.EndGame(g)
		return nil
	}

	g.SetDMEWorldID(m.WorldID)
	var addrs protocol.NetAddressList
	addrs[0] = n.Address()
	g.setAddresses(addrs)
	respond(protocol.StatusSuccess, g.ID)
	r.srv.emit(plugins.EventGameCreated, string(RoleRouting), req.client, g)
	return nil
}

func (r *routingRole) joinGameResponse(c *Conn, m *protocol.ServerJoinGameResponse) error {
	_, req, g, ok := r.answer(c, m.MessageID)
	if !ok || req.client == nil {
		return nil
	}
	cl := req.client
	conn := cl.Conn()
	if conn == nil {
		c.log.Debug().Stringer("client", cl).Msg("join answer for a client that left")
		return nil
	}
	if g == nil || m.Confirmation != protocol.MGCLSuccess {
		return conn.SendApp(&protocol.JoinGameResponse{MessageID: req.messageID, StatusCode: protocol.StatusFail})
	}

	cl.JoinGame(g, m.DmeClientIndex)
	p := g.Params()
	connType := protocol.NetConnectionClientServerTCP
	if p.HostType == protocol.HostClientServerAuxUDP {
		connType = protocol.NetConnectionClientServerTCPAuxUDP
	}
	key := m.PublicKey
	if len(key) == 0 {
		key = r.srv.serverKey()
	}
	return conn.SendApp(&protocol.JoinGameResponse{
		MessageID:    req.messageID,
		StatusCode:   protocol.StatusSuccess,
		GameHostType: p.HostType,
		ConnectInfo: protocol.NetConnectionInfo{
			Type:        connType,
			AddressList: g.Addresses(),
			WorldID:     g.DMEWorldID(),
			ServerKey:   key,
			SessionKey:  cl.SessionKey,
			AccessKey:   m.AccessKey,
		},
	})
}

// createGameOnMe registers a game hosted on the requesting machine
func (r *routingRole) createGameOnMe(c *Conn, m *protocol.ServerCreateGameOnMeRequest) error {
	reply := func(confirmation protocol.MGCLError, worldID int32) error {
		return c.SendApp(&protocol.ServerCreateGameOnMeResponse{
			MessageID:     m.MessageID,
			Confirmation:  confirmation,
			MediusWorldID: worldID,
		})
	}

	cl := c.Client()
	if cl == nil {
		cl, _ = r.srv.clients.ByAccount(c.AppID(), m.AccountID)
	}
	if cl == nil {
		return reply(protocol.MGCLNotInitialized, 0)
	}
	app := c.App()
	if !r.srv.filter.PassTextFilter(app.AppID, FilterGameName, m.GameName) {
		return reply(protocol.MGCLInvalidArg, 0)
	}

	ch := cl.CurrentChannel()
	if ch == nil {
		ch = r.srv.channels.DefaultLobby(app.AppID, app.DefaultLobbyName)
	}
	params := GameParams{
		Name:             m.GameName,
		Password:         m.GamePassword,
		MinPlayers:       m.MinClients,
		MaxPlayers:       m.MaxClients,
		GameLevel:        m.GameLevel,
		PlayerSkillLevel: m.PlayerSkillLevel,
		RulesSet:         m.RulesSet,
		GenericFields:    m.GenericFields,
		HostType:         m.GameHostType,
	}
	timeout := time.Duration(app.GameTimeoutSeconds) * time.Second
	g, err := r.srv.games.Create(cl, params, ch, nil, timeout, r.srv.now())
	if errors.Is(err, ErrGameNameExists) {
		return reply(protocol.MGCLUnsuccessful, 0)
	}
	if err != nil {
		return err
	}
	g.SetDMEWorldID(m.WorldID)
	g.setAddresses(m.AddressList)
	g.setOwner(c)
	cl.JoinGame(g, 0)

	r.srv.emit(plugins.EventPlayerCreateGame, string(RoleRouting), cl, g)
	r.srv.emit(plugins.EventGameCreated, string(RoleRouting), cl, g)
	return reply(protocol.MGCLSuccess, g.ID)
}

// ownGame returns the game id names when the connection registered it or
// its client hosts or plays in it
func (r *routingRole) ownGame(c *Conn, id int32) (*Game, bool) {
	g, ok := r.srv.games.Get(id)
	if !ok {
		return nil, false
	}
	if g.OwnedBy(c) {
		return g, true
	}
	cl := c.Client()
	if cl == nil || (g.Host() != cl && cl.CurrentGame() != g) {
		return nil, false
	}
	return g, true
}

func (r *routingRole) worldReportOnMe(c *Conn, m *protocol.ServerWorldReportOnMe) error {
	g, ok := r.ownGame(c, m.MediusWorldID)
	if !ok {
		c.log.Debug().Int32("world", m.MediusWorldID).Msg("world report for a foreign game")
		return nil
	}
	g.OnWorldReport(WorldReport{
		WorldID:          m.MediusWorldID,
		Name:             m.GameName,
		Stats:            m.GameStats,
		MinPlayers:       m.MinClients,
		MaxPlayers:       m.MaxClients,
		GameLevel:        m.GameLevel,
		PlayerSkillLevel: m.PlayerSkillLevel,
		RulesSet:         m.RulesSet,
		GenericFields:    m.GenericFields,
		Status:           m.WorldStatus,
	})
	return nil
}

func (r *routingRole) endGameOnMe(c *Conn, m *protocol.ServerEndGameOnMeRequest) error {
	confirmation := protocol.MGCLSuccess
	if g, ok := r.ownGame(c, m.MediusWorldID); ok {
		r.srv.games.EndGame(g)
	} else {
		confirmation = protocol.MGCLInvalidArg
	}
	return c.SendApp(&protocol.ServerEndGameOnMeResponse{
		ConfirmationResponse: protocol.ConfirmationResponse{MessageID: m.MessageID, Confirmation: confirmation},
	})
}

// worldGame finds the game behind a routing-side world id. Peer hosts only
// reach games they registered, by either id.
func (r *routingRole) worldGame(c *Conn, world int32) (*Game, bool) {
	n, isNode := r.srv.nodes.ForConn(c)
	mine := func(g *Game) bool { return isNode || g.OwnedBy(c) }
	if g, ok := r.srv.games.ByDMEWorld(n, world); ok && mine(g) {
		return g, true
	}
	if g, ok := r.srv.games.Get(world); ok && g.Node == n && mine(g) {
		return g, true
	}
	return nil, false
}

func (r *routingRole) connectNotification(c *Conn, m *protocol.ServerConnectNotification) error {
	g, ok := r.worldGame(c, int32(m.MediusWorldUID))
	if !ok {
		c.log.Debug().Uint32("world", m.MediusWorldUID).Msg("connect notification for unknown world")
		return nil
	}
	cl, left := g.OnConnectNotification(m.PlayerSessionKey, m.ConnectEventType)
	if cl == nil {
		c.log.Debug().Int32("game", g.ID).Msg("connect notification for a non-member")
		return nil
	}
	if left {
		r.srv.emit(plugins.EventPlayerLeftGame, string(RoleRouting), cl, g)
	} else {
		r.srv.emit(plugins.EventPlayerJoinedGame, string(RoleRouting), cl, g)
	}
	return nil
}

// endGame is a node ending one of its worlds. The brutal flag skips the
// drain through the reaper.
func (r *routingRole) endGame(c *Conn, m *protocol.ServerEndGameRequest) error {
	confirmation := protocol.MGCLSuccess
	g, ok := r.worldGame(c, m.WorldID)
	switch {
	case !ok:
		confirmation = protocol.MGCLInvalidArg
	case m.BrutalFlag:
		r.srv.games.EndGame(g)
	default:
		g.End()
	}
	return c.SendApp(&protocol.ServerEndGameResponse{
		ConfirmationResponse: protocol.ConfirmationResponse{MessageID: m.MessageID, Confirmation: confirmation},
	})
}

// sessionEnd keeps the node's identity for its next connection
func (r *routingRole) sessionEnd(c *Conn, m *protocol.ServerSessionEndRequest) error {
	confirmation := protocol.MGCLSuccess
	if cl := c.Client(); cl != nil {
		cl.KeepAliveUntilNextConnection(r.srv.now().Add(r.srv.clients.KeepAliveGrace()))
		r.forget(c)
	} else {
		confirmation = protocol.MGCLSessionEndFailed
	}
	return c.SendApp(&protocol.ServerSessionEndResponse{
		ConfirmationResponse: protocol.ConfirmationResponse{MessageID: m.MessageID, Confirmation: confirmation},
	})
}

func (r *routingRole) worldStatus(c *Conn, m *protocol.ServerWorldStatusRequest) error {
	g, ok := r.srv.games.Get(m.WorldID)
	if !ok {
		return c.SendApp(&protocol.ServerWorldStatusResponse{
			MessageID:     m.MessageID,
			ApplicationID: m.ApplicationID,
			Confirmation:  protocol.MGCLInvalidArg,
		})
	}
	return c.SendApp(&protocol.ServerWorldStatusResponse{
		MessageID:     m.MessageID,
		ApplicationID: g.AppID,
		MaxClients:    g.Params().MaxPlayers,
		ActiveClients: g.PlayerCount(),
		Confirmation:  protocol.MGCLSuccess,
	})
}
