package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aeolun/medius/pkg/database"
	"github.com/aeolun/medius/pkg/plugins"
	"github.com/aeolun/medius/pkg/protocol"
)

const (
	// dbTimeout bounds one account store call made for a client request
	dbTimeout = 5 * time.Second
	// versionServerString is answered to VersionServer requests
	versionServerString = "Medius Authentication Server Version 3.03.0000"
	// extendedSessionApp sends the special patch field in extended session begins
	extendedSessionApp = 22920
)

// authRole answers session, account and routing-node authentication
// messages
type authRole struct {
	srv *Server
}

func (a *authRole) connected(c *Conn) {
	a.srv.emit(plugins.EventPlayerConnected, string(c.role.Role), c.Client(), nil)
}

func (a *authRole) disconnected(*Conn) {}

func (a *authRole) handleApp(c *Conn, msg protocol.Message) error {
	switch m := msg.(type) {
	case *protocol.SessionBeginRequest:
		return a.sessionBegin(c, m.MessageID)
	case *protocol.ExtendedSessionBeginRequest:
		if c.AppID() == extendedSessionApp {
			c.log.Debug().Int32("patch", m.ClientVersionSpecialPatch).Msg("extended session begin")
		}
		return a.sessionBegin(c, m.MessageID)
	case *protocol.SessionEndRequest:
		return a.sessionEnd(c, m)
	case *protocol.AccountRegistrationRequest:
		return a.register(c, m)
	case *protocol.AccountLoginRequest:
		return a.login(c, m)
	case *protocol.AnonymousLoginRequest:
		return a.anonymousLogin(c, m)
	case *protocol.AccountLogoutRequest:
		return a.logout(c, m)
	case *protocol.MachineSignaturePost:
		return a.machineSignature(c, m)
	case *protocol.VersionServerRequest:
		return c.SendApp(&protocol.VersionServerResponse{
			MessageID:     m.MessageID,
			VersionServer: versionServerString,
			StatusCode:    protocol.StatusSuccess,
		})
	case *protocol.GetServerTimeRequest:
		return c.SendApp(serverTime(m.MessageID, a.srv.now()))
	case *protocol.ServerSessionBeginRequest:
		return a.serverSessionBegin(c, m)
	case *protocol.ServerAuthenticationRequest:
		return a.serverAuthentication(c, m)
	}
	c.log.Warn().Stringer("tag", msg.Tag()).Msg("message not handled by role")
	return nil
}

// sessionOf returns the client a request acts for: the connection's bound
// identity, else the one the request's session key names
func (a *authRole) sessionOf(c *Conn, sessionKey string) *Client {
	if cl := c.Client(); cl != nil {
		return cl
	}
	if sessionKey == "" {
		return nil
	}
	cl, ok := a.srv.clients.BySessionKey(sessionKey)
	if !ok || cl.AppID != c.AppID() {
		return nil
	}
	c.bindClient(cl)
	return cl
}

func (a *authRole) sessionBegin(c *Conn, messageID string) error {
	cl := c.Client()
	if cl == nil {
		cl = a.srv.clients.Create(c.AppID())
		c.bindClient(cl)
	}
	c.log.Debug().Msg("session begin")
	return c.SendApp(&protocol.SessionBeginResponse{
		MessageID:  messageID,
		StatusCode: protocol.StatusSuccess,
		SessionKey: cl.SessionKey,
	})
}

func (a *authRole) sessionEnd(c *Conn, m *protocol.SessionEndRequest) error {
	status := protocol.StatusSuccess
	if cl := a.sessionOf(c, m.SessionKey); cl == nil {
		status = protocol.StatusInvalidSession
	} else {
		a.endSession(cl)
	}
	return c.SendApp(&protocol.SessionEndResponse{
		StatusResponse: protocol.StatusResponse{MessageID: m.MessageID, StatusCode: status},
	})
}

// endSession logs cl out of everything and drops it from the registry
func (a *authRole) endSession(cl *Client) {
	if g := cl.CurrentGame(); g != nil {
		cl.LeaveGame(g)
	}
	if ch := cl.CurrentChannel(); ch != nil {
		cl.LeaveChannel(ch)
	}
	if cl.IsLoggedIn() {
		cl.logout()
		a.srv.emit(plugins.EventPlayerLoggedOut, "auth", cl, nil)
	}
	a.srv.clients.Remove(cl)
}

func (a *authRole) logout(c *Conn, m *protocol.AccountLogoutRequest) error {
	status := protocol.StatusSuccess
	cl := a.sessionOf(c, m.SessionKey)
	switch {
	case cl == nil:
		status = protocol.StatusInvalidSession
	case !cl.IsLoggedIn():
		status = protocol.StatusInvalidOperation
	default:
		if g := cl.CurrentGame(); g != nil {
			cl.LeaveGame(g)
		}
		if ch := cl.CurrentChannel(); ch != nil {
			cl.LeaveChannel(ch)
		}
		cl.logout()
		a.srv.emit(plugins.EventPlayerLoggedOut, string(c.role.Role), cl, nil)
	}
	return c.SendApp(&protocol.AccountLogoutResponse{
		StatusResponse: protocol.StatusResponse{MessageID: m.MessageID, StatusCode: status},
	})
}

func (a *authRole) register(c *Conn, m *protocol.AccountRegistrationRequest) error {
	reply := func(status protocol.CallbackStatus, id int32) error {
		return c.SendApp(&protocol.AccountRegistrationResponse{
			MessageID:  m.MessageID,
			StatusCode: status,
			AccountID:  id,
		})
	}

	cl := a.sessionOf(c, m.SessionKey)
	if cl == nil {
		return reply(protocol.StatusInvalidOperation, 0)
	}
	app := c.App()
	if app.DisableAccountCreation {
		return reply(protocol.StatusFail, 0)
	}
	if !a.srv.filter.PassTextFilter(app.AppID, FilterAccountName, m.AccountName) {
		return reply(protocol.StatusFail, 0)
	}
	if a.srv.accounts == nil {
		return reply(protocol.StatusDBError, 0)
	}

	in := database.NewAccount{
		AppID:       app.AppID,
		Name:        m.AccountName,
		Password:    m.Password,
		AccountType: m.AccountType,
		MachineID:   cl.MachineID(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		defer cancel()
		acct, err := a.srv.accounts.CreateAccount(ctx, in)

		c.post(func() {
			switch {
			case errors.Is(err, database.ErrAccountExists):
				reply(protocol.StatusAccountAlreadyExists, 0)
			case err != nil:
				c.log.Error().Err(err).Str("account", in.Name).Msg("account creation failed")
				reply(protocol.StatusDBError, 0)
			default:
				c.log.Info().Str("account", acct.Name).Int64("account_id", acct.ID).Msg("account registered")
				reply(protocol.StatusSuccess, int32(acct.ID))
			}
		})
	}()
	return nil
}

// loginLookup is the result of the asynchronous part of a login
type loginLookup struct {
	account        *database.Account
	err            error
	ipBanned       bool
	machineBanned  bool
	maintenance    bool
	created        bool
	creationFailed bool
}

func (a *authRole) login(c *Conn, m *protocol.AccountLoginRequest) error {
	reply := func(resp *protocol.AccountLoginResponse) error {
		a.srv.metrics.RecordLogin(resp.StatusCode.String())
		return c.SendApp(resp)
	}
	fail := func(status protocol.CallbackStatus) error {
		return reply(&protocol.AccountLoginResponse{MessageID: m.MessageID, StatusCode: status})
	}

	cl := a.sessionOf(c, m.SessionKey)
	if cl == nil {
		return fail(protocol.StatusInvalidOperation)
	}
	if cl.IsLoggedIn() {
		return fail(protocol.StatusAccountLoggedIn)
	}
	if a.srv.accounts == nil {
		return fail(protocol.StatusDBError)
	}

	app := c.App()
	ip := hostOf(c.RemoteAddr())
	machineID := cl.MachineID()
	go func() {
		res := a.lookupAccount(app, m.Username, m.Password, ip, machineID)
		c.post(func() {
			if c.Client() != cl {
				c.log.Debug().Msg("login answer dropped, identity changed")
				return
			}
			a.finishLogin(c, cl, app, m, res, reply, fail)
		})
	}()
	return nil
}

// lookupAccount performs every store call a login needs. It runs off the
// connection's processing turn.
func (a *authRole) lookupAccount(app AppSettings, name, password, ip, machineID string) loginLookup {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	var res loginLookup
	store := a.srv.accounts
	if flags, err := store.GetServerFlags(ctx); err == nil {
		res.maintenance = flags.InMaintenance(a.srv.now())
	}
	if banned, err := store.IsIPBanned(ctx, ip); err == nil {
		res.ipBanned = banned
	}
	if machineID != "" {
		if banned, err := store.IsMachineBanned(ctx, machineID); err == nil {
			res.machineBanned = banned
		}
	}

	res.account, res.err = store.GetAccountByName(ctx, name, app.AppID)
	if !errors.Is(res.err, database.ErrAccountNotFound) || !app.CreateAccountOnNotFound {
		return res
	}

	if app.DisableAccountCreation || !a.srv.filter.PassTextFilter(app.AppID, FilterAccountName, name) {
		res.creationFailed = true
		return res
	}
	res.account, res.err = store.CreateAccount(ctx, database.NewAccount{
		AppID:     app.AppID,
		Name:      name,
		Password:  password,
		MachineID: machineID,
	})
	res.created = res.err == nil
	return res
}

func (a *authRole) finishLogin(c *Conn, cl *Client, app AppSettings, m *protocol.AccountLoginRequest, res loginLookup,
	reply func(*protocol.AccountLoginResponse) error, fail func(protocol.CallbackStatus) error) {
	acct := res.account
	switch {
	case res.maintenance:
		fail(protocol.StatusRequestDenied)
		return
	case res.machineBanned:
		fail(protocol.StatusMachineBanned)
		return
	case res.ipBanned:
		fail(protocol.StatusAccountBanned)
		return
	case res.creationFailed:
		fail(protocol.StatusFail)
		return
	case errors.Is(res.err, database.ErrAccountNotFound):
		fail(protocol.StatusAccountNotFound)
		return
	case res.err != nil:
		c.log.Error().Err(res.err).Str("account", m.Username).Msg("account lookup failed")
		fail(protocol.StatusDBError)
		return
	case acct.Banned:
		fail(protocol.StatusAccountBanned)
		return
	case app.WhitelistEnabled && !app.Whitelisted(acct.Name):
		fail(protocol.StatusFail)
		return
	case !res.created && !acct.CheckPassword(m.Password):
		fail(protocol.StatusInvalidPassword)
		return
	}

	if !a.srv.clients.Login(cl, int32(acct.ID), acct.Name, acct.AccountType, a.srv.now()) {
		fail(protocol.StatusAccountLoggedIn)
		return
	}
	a.srv.accounts.PostAccountIP(acct.ID, hostOf(c.RemoteAddr()))
	cl.KeepAliveUntilNextConnection(a.srv.now().Add(a.srv.clients.KeepAliveGrace()))
	c.log.Info().Str("account", acct.Name).Int64("account_id", acct.ID).Bool("created", res.created).Msg("logged in")
	a.srv.emit(plugins.EventPlayerLoggedIn, string(c.role.Role), cl, nil)

	reply(&protocol.AccountLoginResponse{
		MessageID:     m.MessageID,
		StatusCode:    protocol.StatusSuccess,
		AccountID:     int32(acct.ID),
		AccountType:   acct.AccountType,
		MediusWorldID: a.lobbyFor(app).ID,
		ConnectInfo:   a.lobbyConnectInfo(cl, app),
	})
}

func (a *authRole) anonymousLogin(c *Conn, m *protocol.AnonymousLoginRequest) error {
	fail := func(status protocol.CallbackStatus) error {
		a.srv.metrics.RecordLogin(status.String())
		return c.SendApp(&protocol.AnonymousLoginResponse{AccountLoginResponse: protocol.AccountLoginResponse{
			MessageID:  m.MessageID,
			StatusCode: status,
		}})
	}

	cl := a.sessionOf(c, m.SessionKey)
	if cl == nil {
		return fail(protocol.StatusInvalidOperation)
	}
	if cl.IsLoggedIn() {
		return fail(protocol.StatusAccountLoggedIn)
	}
	app := c.App()
	if !a.srv.filter.PassTextFilter(app.AppID, FilterAccountName, m.SessionDisplayName) {
		return fail(protocol.StatusFail)
	}

	id := a.srv.clients.LoginAnonymous(cl, m.SessionDisplayName, a.srv.now())
	cl.KeepAliveUntilNextConnection(a.srv.now().Add(a.srv.clients.KeepAliveGrace()))
	a.srv.metrics.RecordLogin(protocol.StatusSuccess.String())
	a.srv.emit(plugins.EventPlayerLoggedIn, string(c.role.Role), cl, nil)
	return c.SendApp(&protocol.AnonymousLoginResponse{AccountLoginResponse: protocol.AccountLoginResponse{
		MessageID:     m.MessageID,
		StatusCode:    protocol.StatusSuccess,
		AccountID:     id,
		MediusWorldID: a.lobbyFor(app).ID,
		ConnectInfo:   a.lobbyConnectInfo(cl, app),
	}})
}

// machineSignature records the console's machine id. It has no response.
func (a *authRole) machineSignature(c *Conn, m *protocol.MachineSignaturePost) error {
	cl := a.sessionOf(c, m.SessionKey)
	if cl == nil {
		return fmt.Errorf("%w: machine signature", ErrNoSession)
	}
	id := fmt.Sprintf("%x", m.MachineSignature)
	cl.setMachineID(id)
	if acct := cl.AccountID(); acct > 0 && a.srv.accounts != nil {
		a.srv.accounts.PostMachineID(int64(acct), id)
	}
	return nil
}

func (a *authRole) lobbyFor(app AppSettings) *Channel {
	return a.srv.channels.DefaultLobby(app.AppID, app.DefaultLobbyName)
}

// lobbyConnectInfo tells a logged in client where the lobby role is and
// which credentials to present there
func (a *authRole) lobbyConnectInfo(cl *Client, app AppSettings) protocol.NetConnectionInfo {
	return protocol.NetConnectionInfo{
		Type:        protocol.NetConnectionClientServerTCP,
		AddressList: addressList(a.srv.cfg.Host, a.srv.cfg.Listeners[RoleLobby].Port),
		WorldID:     a.lobbyFor(app).ID,
		ServerKey:   a.srv.serverKey(),
		SessionKey:  cl.SessionKey,
		AccessKey:   cl.AccessToken,
	}
}

// serverSessionBegin gives a routing node an identity it carries to the
// routing role
func (a *authRole) serverSessionBegin(c *Conn, m *protocol.ServerSessionBeginRequest) error {
	cl := c.Client()
	if cl == nil {
		cl = a.srv.clients.Create(c.AppID())
		c.bindClient(cl)
	}
	cl.KeepAliveUntilNextConnection(a.srv.now().Add(a.srv.clients.KeepAliveGrace()))
	c.log.Info().
		Int32("location", m.LocationID).
		Str("version", m.ServerVersion).
		Int32("port", m.Port).
		Msg("routing node session begin")
	return c.SendApp(&protocol.ServerSessionBeginResponse{
		MessageID:    m.MessageID,
		Confirmation: protocol.MGCLSuccess,
		ConnectInfo:  a.srv.routingConnectInfo(cl),
	})
}

func (a *authRole) serverAuthentication(c *Conn, m *protocol.ServerAuthenticationRequest) error {
	cl := c.Client()
	if cl == nil {
		return c.SendApp(&protocol.ServerAuthenticationResponse{
			MessageID:    m.MessageID,
			Confirmation: protocol.MGCLNotInitialized,
		})
	}
	cl.KeepAliveUntilNextConnection(a.srv.now().Add(a.srv.clients.KeepAliveGrace()))
	return c.SendApp(&protocol.ServerAuthenticationResponse{
		MessageID:    m.MessageID,
		Confirmation: protocol.MGCLSuccess,
		ConnectInfo:  a.srv.routingConnectInfo(cl),
	})
}

// routingConnectInfo tells a node where the routing role is
func (s *Server) routingConnectInfo(cl *Client) protocol.NetConnectionInfo {
	return protocol.NetConnectionInfo{
		Type:        protocol.NetConnectionClientServerTCP,
		AddressList: addressList(s.cfg.Host, s.cfg.Listeners[RoleRouting].Port),
		ServerKey:   s.serverKey(),
		SessionKey:  cl.SessionKey,
		AccessKey:   cl.AccessToken,
	}
}

func serverTime(messageID string, now time.Time) *protocol.GetServerTimeResponse {
	_, offset := now.Zone()
	return &protocol.GetServerTimeResponse{
		MessageID:           messageID,
		StatusCode:          protocol.StatusSuccess,
		GMTTime:             int32(now.Unix()),
		LocalServerTimeZone: int32(offset / 60),
	}
}
