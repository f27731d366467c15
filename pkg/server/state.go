package server

import (
	"fmt"

	"github.com/aeolun/medius/pkg/protocol"
)

// ConnState is the handshake position of a connection
type ConnState int32

const (
	StateInit ConnState = iota
	StateHandshakeHello
	StateHandshakeKeyExchange
	StateConnectPending
	StateAuthenticated
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateHandshakeHello:
		return "HandshakeHello"
	case StateHandshakeKeyExchange:
		return "HandshakeKeyExchange"
	case StateConnectPending:
		return "ConnectPending"
	case StateAuthenticated:
		return "Authenticated"
	case StateDisconnected:
		return "Disconnected"
	}
	return fmt.Sprintf("ConnState(%d)", int32(s))
}

// permits reports whether a client may send id while the connection is in
// state s. Titles that skip the hello or the key exchange connect straight
// from an earlier state.
func permits(s ConnState, id protocol.RTID) bool {
	if s == StateDisconnected {
		return false
	}
	switch id {
	case protocol.RTClientHello:
		return s == StateInit
	case protocol.RTClientCryptKeyPublic:
		return s == StateInit || s == StateHandshakeHello
	case protocol.RTClientConnectTCP, protocol.RTClientConnectTCPAuxUDP:
		return s <= StateHandshakeKeyExchange
	case protocol.RTClientConnectReadyRequire, protocol.RTClientConnectReadyTCP:
		return s == StateConnectPending
	case protocol.RTClientAppToServer:
		return s == StateAuthenticated
	case protocol.RTClientEcho, protocol.RTServerEcho,
		protocol.RTClientDisconnect, protocol.RTClientDisconnectWithReason,
		protocol.RTClientFlushAll:
		return true
	}
	return false
}

// serverOnly lists ids only a server may send. A client sending one is a
// protocol violation rather than an unknown message.
var serverOnly = map[protocol.RTID]bool{
	protocol.RTServerHello:            true,
	protocol.RTServerCryptKeyPeer:     true,
	protocol.RTServerCryptKeyGame:     true,
	protocol.RTServerConnectAcceptTCP: true,
	protocol.RTServerConnectRequire:   true,
	protocol.RTServerConnectComplete:  true,
	protocol.RTServerConnectReject:    true,
	protocol.RTServerForcedDisconnect: true,
	protocol.RTServerApp:              true,
}
