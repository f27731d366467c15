package server

import (
	"fmt"
	"time"

	"github.com/aeolun/medius/pkg/cipher"
	"github.com/aeolun/medius/pkg/protocol"
)

// connectRequireContents is the body of CONNECT_REQUIRE: a zero server
// password requirement followed by the 0x0248 capability word
var connectRequireContents = []byte{0x00, 0x48, 0x02}

// handleRT applies one decoded RT message to the connection state machine
func (c *Conn) handleRT(msg protocol.RTMessage, now time.Time) error {
	id := msg.ID()
	if raw, ok := msg.(*protocol.RawRT); ok {
		c.role.srv.metrics.RecordRawMessage(c.role.Role, "rt")
		c.log.Warn().Stringer("id", raw.RawID).Int("len", len(raw.Contents)).Msg("unknown RT message")
		return nil
	}
	if serverOnly[id] {
		return fmt.Errorf("%w: client sent %s", ErrUnexpectedMessage, id)
	}
	state := c.State()
	if !permits(state, id) {
		return fmt.Errorf("%w: %s in %s", ErrUnexpectedMessage, id, state)
	}

	switch m := msg.(type) {
	case *protocol.ClientHello:
		return c.onHello()
	case *protocol.ClientCryptKeyPublic:
		return c.onCryptKeyPublic(m)
	case *protocol.ClientConnectTCP:
		return c.onConnect(m.AppID, m.ConnectCredentials, now)
	case *protocol.ClientConnectTCPAuxUDP:
		return c.onConnect(m.AppID, m.ConnectCredentials, now)
	case *protocol.ClientConnectReadyRequire:
		return c.onReadyRequire()
	case *protocol.ClientConnectReadyTCP:
		return c.onReadyTCP(now)
	case *protocol.ClientEcho:
		return c.Send(&protocol.ClientEcho{Value: m.Value})
	case *protocol.ServerEcho, *protocol.ClientFlushAll:
		return nil
	case *protocol.ClientDisconnect:
		c.Close(errPeerDisconnect)
		return nil
	case *protocol.ClientDisconnectWithReason:
		c.log.Debug().Uint8("reason", m.Reason).Msg("client disconnect")
		c.Close(errPeerDisconnect)
		return nil
	case *protocol.ClientAppToServer:
		return c.onApp(m)
	}
	return fmt.Errorf("%w: no handler for %s", ErrUnexpectedMessage, id)
}

// onHello answers with the server modulus, or the zero sentinel when
// encryption is off
func (c *Conn) onHello() error {
	c.setState(StateHandshakeHello)
	hello := &protocol.ServerHello{}
	if own := c.cipher.OwnKey(); own != nil && !c.cipher.Disabled() {
		hello.RSAPublicKey = own.Modulus()
	}
	return c.Send(hello)
}

// onCryptKeyPublic installs the peer's key and a fresh client session key,
// then returns that key wrapped under the peer's key
func (c *Conn) onCryptKeyPublic(m *protocol.ClientCryptKeyPublic) error {
	if err := c.cipher.GenerateAsymmetric(m.PublicKey); err != nil {
		return fmt.Errorf("client public key: %w", err)
	}
	key, err := c.cipher.GenerateSymmetric(cipher.ContextRCClientSession)
	if err != nil {
		return fmt.Errorf("%w: session key: %v", ErrInvariant, err)
	}
	c.setState(StateHandshakeKeyExchange)
	return c.Send(&protocol.ServerCryptKeyPeer{SessionKey: key})
}

// onConnect validates the title and binds a handed-off identity. The
// messages that follow depend on the title's protocol version.
func (c *Conn) onConnect(appID int32, creds protocol.ConnectCredentials, now time.Time) error {
	srv := c.role.srv
	app, ok := srv.apps.Lookup(appID)
	if !ok {
		c.Send(&protocol.ServerConnectReject{Reason: protocol.RejectUnsupportedApp})
		return fmt.Errorf("%w: %d", ErrUnsupportedApp, appID)
	}
	c.setApp(app)

	if creds.AccessToken != "" {
		cl, ok := srv.clients.ByAccessToken(creds.AccessToken)
		switch {
		case !ok:
			c.log.Warn().Msg("connect with unknown access token")
		case cl.AppID != appID:
			c.log.Warn().Int32("token_app", cl.AppID).Msg("connect with an access token of another title")
		case creds.SessionKey != "" && creds.SessionKey != cl.SessionKey:
			c.log.Warn().Msg("connect with mismatched session key")
		default:
			c.bindClient(cl)
		}
	}

	switch {
	case app.MediusVersion <= 108:
		c.sendAccept()
		c.sendGameKey()
		if srv.apps.CompletesPre108(appID) {
			c.Send(&protocol.ServerConnectComplete{ClientCountAtConnect: 1})
			c.authenticated()
			return nil
		}
		c.setState(StateConnectPending)
	case app.MediusVersion == 111:
		c.sendAccept()
		c.sendGameKey()
		c.Send(&protocol.ServerConnectComplete{ClientCountAtConnect: 1})
		c.authenticated()
	default:
		// every role asks 109+ titles for ready-require, auth included
		c.setState(StateConnectPending)
		c.Send(&protocol.ServerConnectRequire{Contents: connectRequireContents})
	}
	return nil
}

func (c *Conn) onReadyRequire() error {
	c.sendGameKey()
	c.sendAccept()
	return nil
}

func (c *Conn) onReadyTCP(now time.Time) error {
	c.Send(&protocol.ServerConnectComplete{ClientCountAtConnect: 1})
	if c.DecodeContext().MediusVersion > 108 {
		c.Send(&protocol.ServerEcho{UnixTimestamp: uint32(now.Unix())})
	}
	c.authenticated()
	return nil
}

func (c *Conn) sendAccept() {
	c.Send(&protocol.ServerConnectAcceptTCP{
		ScertID:     c.ID,
		PlayerCount: 1,
		IP:          ipBytes(c.remote),
	})
}

func (c *Conn) sendGameKey() {
	if c.cipher.HasKey(cipher.ContextRCClientSession) {
		c.Send(&protocol.ServerCryptKeyGame{GameKey: c.cipher.Key(cipher.ContextRCClientSession)})
	}
}

func (c *Conn) authenticated() {
	c.setState(StateAuthenticated)
	c.role.srv.metrics.RecordHandshake(c.role.Role)
	c.log.Debug().Msg("handshake complete")
	c.role.handler.connected(c)
}

// onApp unwraps an application message for the role handler. Messages
// without a schema are logged and dropped.
func (c *Conn) onApp(m *protocol.ClientAppToServer) error {
	if m.Message == nil {
		return fmt.Errorf("%w: empty application message", ErrMalformed)
	}
	if raw, ok := m.Message.(*protocol.RawMessage); ok {
		c.role.srv.metrics.RecordRawMessage(c.role.Role, "app")
		c.log.Warn().Stringer("tag", raw.MsgTag).Msg("unhandled application message")
		return nil
	}
	return c.role.handler.handleApp(c, m.Message)
}
