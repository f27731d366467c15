package protocol

import (
	"fmt"
)

// RTID is the 7-bit RT transport message id
type RTID uint8

// RT message ids (SCERT table)
const (
	RTClientConnectTCP           RTID = 0x00
	RTClientDisconnect           RTID = 0x01
	RTClientAppBroadcast         RTID = 0x02
	RTClientAppSingle            RTID = 0x03
	RTClientAppList              RTID = 0x04
	RTClientEcho                 RTID = 0x05
	RTServerConnectReject        RTID = 0x06
	RTServerConnectAcceptTCP     RTID = 0x07
	RTServerConnectNotify        RTID = 0x08
	RTServerDisconnectNotify     RTID = 0x09
	RTServerApp                  RTID = 0x0A
	RTClientAppToServer          RTID = 0x0B
	RTUDPApp                     RTID = 0x0C
	RTClientSetRecvFlag          RTID = 0x0D
	RTClientSetAggTime           RTID = 0x0E
	RTClientFlushAll             RTID = 0x0F
	RTClientFlushSingle          RTID = 0x10
	RTServerForcedDisconnect     RTID = 0x11
	RTClientCryptKeyPublic       RTID = 0x12
	RTServerCryptKeyPeer         RTID = 0x13
	RTServerCryptKeyGame         RTID = 0x14
	RTClientConnectTCPAuxUDP     RTID = 0x15
	RTClientConnectAuxUDP        RTID = 0x16
	RTClientConnectReadyAuxUDP   RTID = 0x17
	RTServerInfoAuxUDP           RTID = 0x18
	RTServerConnectAcceptAuxUDP  RTID = 0x19
	RTServerConnectComplete      RTID = 0x1A
	RTClientCryptKeyPeer         RTID = 0x1B
	RTServerSystemMessage        RTID = 0x1C
	RTServerCheatQuery           RTID = 0x1D
	RTServerMemoryPoke           RTID = 0x1E
	RTServerEcho                 RTID = 0x1F
	RTClientDisconnectWithReason RTID = 0x20
	RTClientConnectReadyTCP      RTID = 0x21
	RTServerConnectRequire       RTID = 0x22
	RTClientConnectReadyRequire  RTID = 0x23
	RTClientHello                RTID = 0x24
	RTServerHello                RTID = 0x25
)

var rtNames = map[RTID]string{
	RTClientConnectTCP:           "CLIENT_CONNECT_TCP",
	RTClientDisconnect:           "CLIENT_DISCONNECT",
	RTClientAppList:              "CLIENT_APP_LIST",
	RTClientEcho:                 "CLIENT_ECHO",
	RTServerConnectReject:        "SERVER_CONNECT_REJECT",
	RTServerConnectAcceptTCP:     "SERVER_CONNECT_ACCEPT_TCP",
	RTServerApp:                  "SERVER_APP",
	RTClientAppToServer:          "CLIENT_APP_TOSERVER",
	RTClientFlushAll:             "CLIENT_FLUSH_ALL",
	RTServerForcedDisconnect:     "SERVER_FORCED_DISCONNECT",
	RTClientCryptKeyPublic:       "CLIENT_CRYPTKEY_PUBLIC",
	RTServerCryptKeyPeer:         "SERVER_CRYPTKEY_PEER",
	RTServerCryptKeyGame:         "SERVER_CRYPTKEY_GAME",
	RTClientConnectTCPAuxUDP:     "CLIENT_CONNECT_TCP_AUX_UDP",
	RTServerConnectComplete:      "SERVER_CONNECT_COMPLETE",
	RTServerEcho:                 "SERVER_ECHO",
	RTClientDisconnectWithReason: "CLIENT_DISCONNECT_WITH_REASON",
	RTClientConnectReadyTCP:      "CLIENT_CONNECT_READY_TCP",
	RTServerConnectRequire:       "SERVER_CONNECT_REQUIRE",
	RTClientConnectReadyRequire:  "CLIENT_CONNECT_READY_REQUIRE",
	RTClientHello:                "CLIENT_HELLO",
	RTServerHello:                "SERVER_HELLO",
}

func (id RTID) String() string {
	if name, ok := rtNames[id]; ok {
		return name
	}
	return fmt.Sprintf("RT(0x%02X)", uint8(id))
}

// RTMessage is a decoded RT transport message
type RTMessage interface {
	Schema
	ID() RTID
}

var rtRegistry = map[RTID]func() RTMessage{}

func registerRT(factories ...func() RTMessage) {
	for _, f := range factories {
		id := f().ID()
		if _, dup := rtRegistry[id]; dup {
			panic(fmt.Sprintf("protocol: duplicate RT id %s", id))
		}
		rtRegistry[id] = f
	}
}

func init() {
	registerRT(
		func() RTMessage { return &ClientHello{} },
		func() RTMessage { return &ServerHello{} },
		func() RTMessage { return &ClientCryptKeyPublic{} },
		func() RTMessage { return &ServerCryptKeyPeer{} },
		func() RTMessage { return &ServerCryptKeyGame{} },
		func() RTMessage { return &ClientConnectTCP{} },
		func() RTMessage { return &ClientConnectTCPAuxUDP{} },
		func() RTMessage { return &ServerConnectAcceptTCP{} },
		func() RTMessage { return &ServerConnectRequire{} },
		func() RTMessage { return &ClientConnectReadyRequire{} },
		func() RTMessage { return &ClientConnectReadyTCP{} },
		func() RTMessage { return &ServerConnectComplete{} },
		func() RTMessage { return &ClientEcho{} },
		func() RTMessage { return &ServerEcho{} },
		func() RTMessage { return &ClientAppToServer{} },
		func() RTMessage { return &ServerApp{} },
		func() RTMessage { return &ClientDisconnect{} },
		func() RTMessage { return &ClientDisconnectWithReason{} },
		func() RTMessage { return &ServerConnectReject{} },
		func() RTMessage { return &ServerForcedDisconnect{} },
		func() RTMessage { return &ClientFlushAll{} },
	)
}

// DecodeRT decodes a plaintext frame payload into its RT message. Unknown
// ids decode to *RawRT.
func DecodeRT(id RTID, payload []byte, ctx DecodeContext) (RTMessage, error) {
	r := NewReader(payload)
	f, ok := rtRegistry[id]
	if !ok {
		raw := &RawRT{RawID: id}
		raw.Decode(r, ctx)
		return raw, nil
	}

	msg := f()
	msg.Decode(r, ctx)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	if rest, ok := msg.(interface{ decodeErr() error }); ok {
		if err := rest.decodeErr(); err != nil {
			return nil, fmt.Errorf("decode %s: %w", id, err)
		}
	}
	return msg, nil
}

// EncodeRT serializes an RT message payload (without the frame header)
func EncodeRT(m RTMessage, ctx DecodeContext) []byte {
	w := &Writer{}
	m.Encode(w, ctx)
	return w.Bytes()
}

// RawRT is an RT message with no registered schema
type RawRT struct {
	Base
	RawID    RTID
	Contents []byte
}

func (m *RawRT) ID() RTID                          { return m.RawID }
func (m *RawRT) Encode(w *Writer, _ DecodeContext) { w.Raw(m.Contents) }
func (m *RawRT) Decode(r *Reader, _ DecodeContext) { m.Contents = r.Rest() }

// ClientHello opens the handshake on newer titles
type ClientHello struct {
	Base
	Parameters []uint16
}

func (m *ClientHello) ID() RTID             { return RTClientHello }
func (m *ClientHello) SkipEncryption() bool { return true }

func (m *ClientHello) Encode(w *Writer, _ DecodeContext) {
	for _, p := range m.Parameters {
		w.Uint16(p)
	}
}

func (m *ClientHello) Decode(r *Reader, _ DecodeContext) {
	m.Parameters = nil
	for r.Remaining() >= 2 {
		m.Parameters = append(m.Parameters, r.Uint16())
	}
	r.Skip(r.Remaining())
}

// ServerHello carries the server RSA modulus, all zero when encryption is off
type ServerHello struct {
	Base
	RSAPublicKey []byte
}

func (m *ServerHello) ID() RTID             { return RTServerHello }
func (m *ServerHello) SkipEncryption() bool { return true }

func (m *ServerHello) Encode(w *Writer, _ DecodeContext) {
	w.FixedBytes(m.RSAPublicKey, RSAKeyLen)
}

func (m *ServerHello) Decode(r *Reader, _ DecodeContext) {
	m.RSAPublicKey = r.Bytes(RSAKeyLen)
}

// EncryptionDisabled reports whether the modulus is the zero sentinel
func (m *ServerHello) EncryptionDisabled() bool {
	for _, b := range m.RSAPublicKey {
		if b != 0 {
			return false
		}
	}
	return true
}

// ClientCryptKeyPublic carries the client's RSA modulus, byte-reversed
type ClientCryptKeyPublic struct {
	Base
	PublicKey []byte
}

func (m *ClientCryptKeyPublic) ID() RTID             { return RTClientCryptKeyPublic }
func (m *ClientCryptKeyPublic) SkipEncryption() bool { return true }

func (m *ClientCryptKeyPublic) Encode(w *Writer, _ DecodeContext) {
	w.FixedBytes(m.PublicKey, RSAKeyLen)
}

func (m *ClientCryptKeyPublic) Decode(r *Reader, _ DecodeContext) {
	m.PublicKey = r.Bytes(RSAKeyLen)
}

// ServerCryptKeyPeer returns the client session key, wrapped under the
// client's RSA key by the frame cipher
type ServerCryptKeyPeer struct {
	Base
	SessionKey []byte
}

func (m *ServerCryptKeyPeer) ID() RTID { return RTServerCryptKeyPeer }

func (m *ServerCryptKeyPeer) Encode(w *Writer, _ DecodeContext) {
	w.FixedBytes(m.SessionKey, RSAKeyLen)
}

func (m *ServerCryptKeyPeer) Decode(r *Reader, _ DecodeContext) {
	m.SessionKey = r.Bytes(RSAKeyLen)
}

// ServerCryptKeyGame sends the game traffic key
type ServerCryptKeyGame struct {
	Base
	GameKey []byte
}

func (m *ServerCryptKeyGame) ID() RTID { return RTServerCryptKeyGame }

func (m *ServerCryptKeyGame) Encode(w *Writer, _ DecodeContext) {
	w.FixedBytes(m.GameKey, RSAKeyLen)
}

func (m *ServerCryptKeyGame) Decode(r *Reader, _ DecodeContext) {
	m.GameKey = r.Bytes(RSAKeyLen)
}

// ConnectCredentials is the optional session key / access token tail of
// the connect messages. It is present only when the client is being handed
// off from a previous server.
type ConnectCredentials struct {
	SessionKey  string
	AccessToken string
}

func (c *ConnectCredentials) encode(w *Writer) {
	if c.SessionKey == "" && c.AccessToken == "" {
		return
	}
	w.String(c.SessionKey, SessionKeyLen)
	w.String(c.AccessToken, AccessKeyLen)
}

func (c *ConnectCredentials) decode(r *Reader) {
	if r.Remaining() == 0 {
		return
	}
	c.SessionKey = r.String(SessionKeyLen)
	c.AccessToken = r.String(AccessKeyLen)
}

// ClientConnectTCP asks to join the server for an application id
type ClientConnectTCP struct {
	Base
	TargetWorldID uint32
	AppID         int32
	Key           []byte
	ConnectCredentials
}

func (m *ClientConnectTCP) ID() RTID { return RTClientConnectTCP }

func (m *ClientConnectTCP) Encode(w *Writer, _ DecodeContext) {
	w.Uint32(m.TargetWorldID)
	w.Int32(m.AppID)
	w.FixedBytes(m.Key, RSAKeyLen)
	m.ConnectCredentials.encode(w)
}

func (m *ClientConnectTCP) Decode(r *Reader, _ DecodeContext) {
	m.TargetWorldID = r.Uint32()
	m.AppID = r.Int32()
	m.Key = r.Bytes(RSAKeyLen)
	m.ConnectCredentials.decode(r)
}

// ClientConnectTCPAuxUDP is the connect variant used by titles that also
// open an auxiliary UDP channel
type ClientConnectTCPAuxUDP struct {
	Base
	Arg1  uint32
	AppID int32
	Key   []byte
	ConnectCredentials
}

func (m *ClientConnectTCPAuxUDP) ID() RTID { return RTClientConnectTCPAuxUDP }

func (m *ClientConnectTCPAuxUDP) Encode(w *Writer, _ DecodeContext) {
	w.Uint32(m.Arg1)
	w.Int32(m.AppID)
	w.FixedBytes(m.Key, RSAKeyLen)
	m.ConnectCredentials.encode(w)
}

func (m *ClientConnectTCPAuxUDP) Decode(r *Reader, _ DecodeContext) {
	m.Arg1 = r.Uint32()
	m.AppID = r.Int32()
	m.Key = r.Bytes(RSAKeyLen)
	m.ConnectCredentials.decode(r)
}

// ServerConnectAcceptTCP acknowledges a connect
type ServerConnectAcceptTCP struct {
	Base
	PlayerID    uint16
	ScertID     uint32
	PlayerCount uint16
	IP          [4]byte
}

func (m *ServerConnectAcceptTCP) ID() RTID { return RTServerConnectAcceptTCP }

func (m *ServerConnectAcceptTCP) Encode(w *Writer, _ DecodeContext) {
	w.Uint16(m.PlayerID)
	w.Uint32(m.ScertID)
	w.Uint16(m.PlayerCount)
	w.Raw(m.IP[:])
}

func (m *ServerConnectAcceptTCP) Decode(r *Reader, _ DecodeContext) {
	m.PlayerID = r.Uint16()
	m.ScertID = r.Uint32()
	m.PlayerCount = r.Uint16()
	copy(m.IP[:], r.Bytes(4))
}

// ServerConnectRequire asks newer titles to confirm readiness
type ServerConnectRequire struct {
	Base
	Contents []byte
}

func (m *ServerConnectRequire) ID() RTID                          { return RTServerConnectRequire }
func (m *ServerConnectRequire) Encode(w *Writer, _ DecodeContext) { w.Raw(m.Contents) }
func (m *ServerConnectRequire) Decode(r *Reader, _ DecodeContext) { m.Contents = r.Rest() }

type ClientConnectReadyRequire struct {
	Base
	Contents []byte
}

func (m *ClientConnectReadyRequire) ID() RTID                          { return RTClientConnectReadyRequire }
func (m *ClientConnectReadyRequire) Encode(w *Writer, _ DecodeContext) { w.Raw(m.Contents) }
func (m *ClientConnectReadyRequire) Decode(r *Reader, _ DecodeContext) { m.Contents = r.Rest() }

type ClientConnectReadyTCP struct {
	Base
	Contents []byte
}

func (m *ClientConnectReadyTCP) ID() RTID                          { return RTClientConnectReadyTCP }
func (m *ClientConnectReadyTCP) Encode(w *Writer, _ DecodeContext) { w.Raw(m.Contents) }
func (m *ClientConnectReadyTCP) Decode(r *Reader, _ DecodeContext) { m.Contents = r.Rest() }

// ServerConnectComplete finishes the handshake
type ServerConnectComplete struct {
	Base
	ClientCountAtConnect uint16
}

func (m *ServerConnectComplete) ID() RTID { return RTServerConnectComplete }

func (m *ServerConnectComplete) Encode(w *Writer, _ DecodeContext) {
	w.Uint16(m.ClientCountAtConnect)
}

func (m *ServerConnectComplete) Decode(r *Reader, _ DecodeContext) {
	m.ClientCountAtConnect = r.Uint16()
}

// ClientEcho is answered with an identical payload
type ClientEcho struct {
	Base
	Value []byte
}

func (m *ClientEcho) ID() RTID                          { return RTClientEcho }
func (m *ClientEcho) Encode(w *Writer, _ DecodeContext) { w.Raw(m.Value) }
func (m *ClientEcho) Decode(r *Reader, _ DecodeContext) { m.Value = r.Rest() }

// ServerEcho is the server-initiated keep-alive
type ServerEcho struct {
	Base
	UnixTimestamp uint32
	Unk           uint32
}

func (m *ServerEcho) ID() RTID { return RTServerEcho }

func (m *ServerEcho) Encode(w *Writer, _ DecodeContext) {
	w.Uint32(m.UnixTimestamp)
	w.Uint32(m.Unk)
}

func (m *ServerEcho) Decode(r *Reader, _ DecodeContext) {
	m.UnixTimestamp = r.Uint32()
	m.Unk = r.Uint32()
}

// ClientAppToServer wraps a Medius application message from the client
type ClientAppToServer struct {
	Base
	Message Message
	err     error
}

func (m *ClientAppToServer) ID() RTID { return RTClientAppToServer }

func (m *ClientAppToServer) Encode(w *Writer, ctx DecodeContext) {
	if m.Message != nil {
		w.Raw(EncodeMessage(m.Message, ctx))
	}
}

func (m *ClientAppToServer) Decode(r *Reader, ctx DecodeContext) {
	m.Message, m.err = DecodeMessage(r.Rest(), ctx)
}

func (m *ClientAppToServer) decodeErr() error { return m.err }

// ServerApp wraps a Medius application message to the client. Encryption
// follows the inner message's override.
type ServerApp struct {
	Base
	Message Message
	err     error
}

func (m *ServerApp) ID() RTID { return RTServerApp }

func (m *ServerApp) SkipEncryption() bool {
	return m.NoEncryption || (m.Message != nil && m.Message.SkipEncryption())
}

func (m *ServerApp) Encode(w *Writer, ctx DecodeContext) {
	if m.Message != nil {
		w.Raw(EncodeMessage(m.Message, ctx))
	}
}

func (m *ServerApp) Decode(r *Reader, ctx DecodeContext) {
	m.Message, m.err = DecodeMessage(r.Rest(), ctx)
}

func (m *ServerApp) decodeErr() error { return m.err }

type ClientDisconnect struct {
	Base
	Contents []byte
}

func (m *ClientDisconnect) ID() RTID                          { return RTClientDisconnect }
func (m *ClientDisconnect) Encode(w *Writer, _ DecodeContext) { w.Raw(m.Contents) }
func (m *ClientDisconnect) Decode(r *Reader, _ DecodeContext) { m.Contents = r.Rest() }

type ClientDisconnectWithReason struct {
	Base
	Reason uint8
}

func (m *ClientDisconnectWithReason) ID() RTID                          { return RTClientDisconnectWithReason }
func (m *ClientDisconnectWithReason) Encode(w *Writer, _ DecodeContext) { w.Uint8(m.Reason) }
func (m *ClientDisconnectWithReason) Decode(r *Reader, _ DecodeContext) { m.Reason = r.Uint8() }

// RejectReason is sent with SERVER_CONNECT_REJECT
type RejectReason uint8

const (
	RejectNone             RejectReason = 0
	RejectUnsupportedApp   RejectReason = 1
	RejectServerFull       RejectReason = 2
	RejectBadCredentials   RejectReason = 3
	RejectProtocolMismatch RejectReason = 4
)

type ServerConnectReject struct {
	Base
	Reason RejectReason
	Unk1   uint16
}

func (m *ServerConnectReject) ID() RTID { return RTServerConnectReject }

func (m *ServerConnectReject) Encode(w *Writer, _ DecodeContext) {
	w.Uint8(uint8(m.Reason))
	w.Uint16(m.Unk1)
}

func (m *ServerConnectReject) Decode(r *Reader, _ DecodeContext) {
	m.Reason = RejectReason(r.Uint8())
	m.Unk1 = r.Uint16()
}

type ServerForcedDisconnect struct {
	Base
	Reason uint8
}

func (m *ServerForcedDisconnect) ID() RTID                          { return RTServerForcedDisconnect }
func (m *ServerForcedDisconnect) Encode(w *Writer, _ DecodeContext) { w.Uint8(m.Reason) }
func (m *ServerForcedDisconnect) Decode(r *Reader, _ DecodeContext) { m.Reason = r.Uint8() }

type ClientFlushAll struct {
	Base
	Contents []byte
}

func (m *ClientFlushAll) ID() RTID                          { return RTClientFlushAll }
func (m *ClientFlushAll) Encode(w *Writer, _ DecodeContext) { w.Raw(m.Contents) }
func (m *ClientFlushAll) Decode(r *Reader, _ DecodeContext) { m.Contents = r.Rest() }
