package server

import (
	"errors"
	"time"

	"github.com/aeolun/medius/pkg/plugins"
	"github.com/aeolun/medius/pkg/protocol"
)

// lobbyRole serves channels and games. Session and account messages fall
// through to the auth handling it embeds.
type lobbyRole struct {
	authRole
}

// connected places a handed-off identity in its title's default lobby
func (l *lobbyRole) connected(c *Conn) {
	cl := c.Client()
	if cl == nil {
		c.log.Debug().Msg("lobby connection without identity, waiting for session begin")
		return
	}
	l.srv.emit(plugins.EventPlayerConnected, string(RoleLobby), cl, nil)
	l.enterLobby(cl, c.App())
}

func (l *lobbyRole) disconnected(*Conn) {}

func (l *lobbyRole) handleApp(c *Conn, msg protocol.Message) error {
	switch m := msg.(type) {
	case *protocol.ChannelListRequest:
		return sendChannelList(l.srv, c, m.PageRequest)
	case *protocol.JoinChannelRequest:
		return l.joinChannel(c, m)
	case *protocol.GameListRequest:
		return l.gameList(c, m.PageRequest)
	case *protocol.GameInfoRequest:
		return l.gameInfo(c, m)
	case *protocol.CreateGameRequest:
		return l.createGame(c, m)
	case *protocol.JoinGameRequest:
		return l.joinGame(c, m)
	case *protocol.WorldReport:
		return l.worldReport(c, m)
	case *protocol.EndGameReport:
		return l.endGameReport(c, m)
	case *protocol.PlayerReport:
		c.log.Debug().Int32("world", m.MediusWorldID).Int("stats", len(m.Stats)).Msg("player report")
		return nil
	}
	return l.authRole.handleApp(c, msg)
}

// enterLobby joins cl to its title's default lobby unless it is already in
// a channel
func (l *lobbyRole) enterLobby(cl *Client, app AppSettings) *Channel {
	if ch := cl.CurrentChannel(); ch != nil {
		return ch
	}
	ch := l.lobbyFor(app)
	cl.JoinChannel(ch)
	l.srv.emit(plugins.EventPlayerJoinedChannel, string(RoleLobby), cl, nil)
	return ch
}

// pageBounds returns the slice bounds of a 1-based page. A zero page size
// selects everything.
func pageBounds(n int, pageID, pageSize uint16) (int, int) {
	if pageSize == 0 {
		return 0, n
	}
	start := 0
	if pageID > 1 {
		start = int(pageID-1) * int(pageSize)
	}
	if start > n {
		start = n
	}
	end := start + int(pageSize)
	if end > n {
		end = n
	}
	return start, end
}

// sendChannelList answers one response per lobby channel of the title, the
// last flagged end of list
func sendChannelList(s *Server, c *Conn, req protocol.PageRequest) error {
	channels := s.channels.ForApp(c.AppID())
	start, end := pageBounds(len(channels), req.PageID, req.PageSize)
	channels = channels[start:end]
	if len(channels) == 0 {
		return c.SendApp(&protocol.ChannelListResponse{
			MessageID:  req.MessageID,
			StatusCode: protocol.StatusNoResult,
			EndOfList:  true,
		})
	}
	for i, ch := range channels {
		if err := c.SendApp(&protocol.ChannelListResponse{
			MessageID:     req.MessageID,
			StatusCode:    protocol.StatusSuccess,
			MediusWorldID: ch.ID,
			LobbyName:     ch.Name,
			PlayerCount:   ch.PlayerCount(),
			EndOfList:     i == len(channels)-1,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (l *lobbyRole) joinChannel(c *Conn, m *protocol.JoinChannelRequest) error {
	reply := func(status protocol.CallbackStatus, info protocol.NetConnectionInfo) error {
		return c.SendApp(&protocol.JoinChannelResponse{
			MessageID:   m.MessageID,
			StatusCode:  status,
			ConnectInfo: info,
		})
	}

	cl := l.sessionOf(c, m.SessionKey)
	if cl == nil {
		return reply(protocol.StatusInvalidSession, protocol.NetConnectionInfo{})
	}
	ch, ok := l.srv.channels.Get(m.MediusWorldID)
	if !ok || ch.AppID != c.AppID() {
		return reply(protocol.StatusChannelNotFound, protocol.NetConnectionInfo{})
	}

	cl.JoinChannel(ch)
	l.srv.emit(plugins.EventPlayerJoinedChannel, string(RoleLobby), cl, nil)
	return reply(protocol.StatusSuccess, protocol.NetConnectionInfo{
		Type:        protocol.NetConnectionClientServerTCP,
		AddressList: addressList(l.srv.cfg.Host, l.srv.cfg.Listeners[RoleLobby].Port),
		WorldID:     ch.ID,
		ServerKey:   l.srv.serverKey(),
		SessionKey:  cl.SessionKey,
		AccessKey:   cl.AccessToken,
	})
}

// gameList pages through the title's games that are not closed
func (l *lobbyRole) gameList(c *Conn, req protocol.PageRequest) error {
	var games []*Game
	for _, g := range l.srv.games.List() {
		if g.AppID == c.AppID() && !g.Closed() {
			games = append(games, g)
		}
	}
	start, end := pageBounds(len(games), req.PageID, req.PageSize)
	games = games[start:end]
	if len(games) == 0 {
		return c.SendApp(&protocol.GameListResponse{
			MessageID:  req.MessageID,
			StatusCode: protocol.StatusNoResult,
			EndOfList:  true,
		})
	}
	for i, g := range games {
		p := g.Params()
		if err := c.SendApp(&protocol.GameListResponse{
			MessageID:     req.MessageID,
			StatusCode:    protocol.StatusSuccess,
			MediusWorldID: g.ID,
			GameName:      p.Name,
			WorldStatus:   g.Status(),
			GameHostType:  p.HostType,
			PlayerCount:   g.PlayerCount(),
			EndOfList:     i == len(games)-1,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (l *lobbyRole) gameInfo(c *Conn, m *protocol.GameInfoRequest) error {
	g, ok := l.srv.games.Get(m.MediusWorldID)
	if !ok || g.AppID != c.AppID() {
		return c.SendApp(&protocol.GameInfoResponse{
			MessageID:  m.MessageID,
			StatusCode: protocol.StatusGameNotFound,
		})
	}
	p := g.Params()
	return c.SendApp(&protocol.GameInfoResponse{
		MessageID:        m.MessageID,
		StatusCode:       protocol.StatusSuccess,
		ApplicationID:    g.AppID,
		MinPlayers:       p.MinPlayers,
		MaxPlayers:       p.MaxPlayers,
		GameLevel:        p.GameLevel,
		PlayerSkillLevel: p.PlayerSkillLevel,
		PlayerCount:      g.PlayerCount(),
		GameStats:        g.Stats(),
		GameName:         p.Name,
		RulesSet:         p.RulesSet,
		GenericFields:    p.GenericFields,
		WorldStatus:      g.Status(),
		GameHostType:     p.HostType,
	})
}

// createGame reserves a routing node and asks it for a world. The client
// is answered when the node responds.
func (l *lobbyRole) createGame(c *Conn, m *protocol.CreateGameRequest) error {
	reply := func(status protocol.CallbackStatus) error {
		return c.SendApp(&protocol.CreateGameResponse{MessageID: m.MessageID, StatusCode: status})
	}

	cl := l.sessionOf(c, m.SessionKey)
	if cl == nil {
		return reply(protocol.StatusInvalidSession)
	}
	app := c.App()
	if !l.srv.filter.PassTextFilter(app.AppID, FilterGameName, m.GameName) {
		return reply(protocol.StatusFail)
	}
	ch := l.enterLobby(cl, app)
	if ch.NameTaken(m.GameName) {
		return reply(protocol.StatusGameNameExists)
	}
	node, ok := l.srv.nodes.Least(app.AppID)
	if !ok {
		c.log.Warn().Str("game", m.GameName).Msg("no routing node available")
		return reply(protocol.StatusFail)
	}

	params := GameParams{
		Name:              m.GameName,
		Password:          m.GamePassword,
		SpectatorPassword: m.SpectatorPassword,
		MinPlayers:        m.MinPlayers,
		MaxPlayers:        m.MaxPlayers,
		GameLevel:         m.GameLevel,
		PlayerSkillLevel:  m.PlayerSkillLevel,
		RulesSet:          m.RulesSet,
		Attributes:        m.Attributes,
		GenericFields:     m.GenericFields,
		HostType:          m.GameHostType,
	}
	timeout := time.Duration(app.GameTimeoutSeconds) * time.Second
	g, err := l.srv.games.Create(cl, params, ch, node, timeout, l.srv.now())
	if errors.Is(err, ErrGameNameExists) {
		return reply(protocol.StatusGameNameExists)
	}
	if err != nil {
		return err
	}
	l.srv.emit(plugins.EventPlayerCreateGame, string(RoleLobby), cl, g)

	if err := node.RequestCreateGame(g, cl, m.MessageID, l.srv.now().Add(l.srv.cfg.RoutingTimeout)); err != nil {
		c.log.Warn().Err(err).Int32("game", g.ID).Msg("routing node create request failed")
		l.srv.games.EndGame(g)
		return reply(protocol.StatusFail)
	}
	return nil
}

// joinGame admits cl to a game. Peer-hosted games answer straight away
// with the host's addresses; routed games ask the node first.
func (l *lobbyRole) joinGame(c *Conn, m *protocol.JoinGameRequest) error {
	reply := func(status protocol.CallbackStatus) error {
		return c.SendApp(&protocol.JoinGameResponse{MessageID: m.MessageID, StatusCode: status})
	}

	cl := l.sessionOf(c, m.SessionKey)
	if cl == nil {
		return reply(protocol.StatusInvalidSession)
	}
	g, ok := l.srv.games.Get(m.MediusWorldID)
	if !ok || g.AppID != c.AppID() || g.Closed() {
		return reply(protocol.StatusGameNotFound)
	}
	if !g.CheckPassword(m.GamePassword) {
		return reply(protocol.StatusInvalidPassword)
	}
	p := g.Params()
	if p.MaxPlayers > 0 && g.PlayerCount() >= p.MaxPlayers {
		return reply(protocol.StatusWorldIsFull)
	}

	if g.Node == nil {
		cl.JoinGame(g, 0)
		return c.SendApp(&protocol.JoinGameResponse{
			MessageID:    m.MessageID,
			StatusCode:   protocol.StatusSuccess,
			GameHostType: p.HostType,
			ConnectInfo: protocol.NetConnectionInfo{
				Type:        protocol.NetConnectionPeerToPeerUDP,
				AddressList: g.Addresses(),
				WorldID:     g.DMEWorldID(),
				ServerKey:   l.srv.serverKey(),
				SessionKey:  cl.SessionKey,
				AccessKey:   cl.AccessToken,
			},
		})
	}

	if !g.Node.Alive() {
		return reply(protocol.StatusFail)
	}
	if err := g.Node.RequestJoinGame(g, cl, m.MessageID, l.srv.now().Add(l.srv.cfg.RoutingTimeout)); err != nil {
		c.log.Warn().Err(err).Int32("game", g.ID).Msg("routing node join request failed")
		return reply(protocol.StatusFail)
	}
	return nil
}

// worldReport accepts a report from a member of the game
func (l *lobbyRole) worldReport(c *Conn, m *protocol.WorldReport) error {
	cl := l.sessionOf(c, m.SessionKey)
	g, ok := l.srv.games.Get(m.MediusWorldID)
	if cl == nil || !ok || cl.CurrentGame() != g {
		c.log.Debug().Int32("world", m.MediusWorldID).Msg("world report for a game the client is not in")
		return nil
	}
	g.OnWorldReport(WorldReport{
		WorldID:          m.MediusWorldID,
		Name:             m.GameName,
		Stats:            m.GameStats,
		MinPlayers:       m.MinPlayers,
		MaxPlayers:       m.MaxPlayers,
		GameLevel:        m.GameLevel,
		PlayerSkillLevel: m.PlayerSkillLevel,
		RulesSet:         m.RulesSet,
		GenericFields:    m.GenericFields,
		Status:           m.WorldStatus,
	})
	return nil
}

func (l *lobbyRole) endGameReport(c *Conn, m *protocol.EndGameReport) error {
	cl := l.sessionOf(c, m.SessionKey)
	g, ok := l.srv.games.Get(m.MediusWorldID)
	if cl == nil || !ok {
		return nil
	}
	if g.Host() != cl && cl.CurrentGame() != g {
		c.log.Debug().Int32("game", g.ID).Msg("end game report from a non-member ignored")
		return nil
	}
	c.log.Info().Int32("game", g.ID).Int32("winning_team", m.WinningTeam).Msg("end game report")
	g.End()
	return nil
}
