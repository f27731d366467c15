package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeolun/medius/pkg/protocol"
)

// pipeClient speaks the RT framing over one end of a net.Pipe while the
// other end is served by a role
type pipeClient struct {
	t      *testing.T
	srv    *Server
	clock  *fakeClock
	conn   net.Conn
	dctx   protocol.DecodeContext
	frames chan *protocol.Frame
	done   chan struct{}
}

func dialPipe(t *testing.T, srv *Server, clock *fakeClock, role Role) (*pipeClient, *Conn) {
	t.Helper()
	client, server := net.Pipe()
	c := srv.Role(role).ServeConn(server, "pipe")

	p := &pipeClient{
		t:      t,
		srv:    srv,
		clock:  clock,
		conn:   client,
		frames: make(chan *protocol.Frame, 64),
		done:   make(chan struct{}),
	}
	go p.readLoop()
	t.Cleanup(func() { client.Close() })
	return p, c
}

func (p *pipeClient) readLoop() {
	defer close(p.done)
	var dec protocol.FrameDecoder
	buf := make([]byte, 4096)
	for {
		n, err := p.conn.Read(buf)
		if n > 0 {
			dec.Write(buf[:n])
			for {
				f, derr := dec.Next()
				if derr != nil || f == nil {
					break
				}
				p.frames <- f
			}
		}
		if err != nil {
			return
		}
	}
}

func (p *pipeClient) send(m protocol.RTMessage) {
	p.t.Helper()
	b, err := protocol.AppendFrame(nil, &protocol.Frame{ID: m.ID(), Payload: protocol.EncodeRT(m, p.dctx)})
	require.NoError(p.t, err)
	_, err = p.conn.Write(b)
	require.NoError(p.t, err)
}

func (p *pipeClient) sendApp(m protocol.Message) {
	p.t.Helper()
	p.send(&protocol.ClientAppToServer{Message: m})
}

// recv ticks the server until a frame arrives
func (p *pipeClient) recv() protocol.RTMessage {
	p.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		p.srv.Tick(p.clock.Now())
		select {
		case f := <-p.frames:
			m, err := protocol.DecodeRT(f.ID, f.Payload, p.dctx)
			require.NoError(p.t, err)
			return m
		case <-time.After(5 * time.Millisecond):
		}
	}
	p.t.Fatal("no frame from server")
	return nil
}

func recvAs[T protocol.RTMessage](p *pipeClient) T {
	p.t.Helper()
	m := p.recv()
	v, ok := m.(T)
	require.True(p.t, ok, "got %T", m)
	return v
}

func recvApp[T protocol.Message](p *pipeClient) T {
	p.t.Helper()
	app := recvAs[*protocol.ServerApp](p)
	v, ok := app.Message.(T)
	require.True(p.t, ok, "got %T", app.Message)
	return v
}

// handshake runs the 109 connect sequence with encryption off
func (p *pipeClient) handshake(appID int32) {
	p.t.Helper()
	p.send(&protocol.ClientHello{})
	hello := recvAs[*protocol.ServerHello](p)
	require.True(p.t, hello.EncryptionDisabled())

	p.send(&protocol.ClientConnectTCP{AppID: appID})
	recvAs[*protocol.ServerConnectRequire](p)
	p.dctx = protocol.DecodeContext{MediusVersion: 109, AppID: appID}

	p.send(&protocol.ClientConnectReadyRequire{})
	recvAs[*protocol.ServerConnectAcceptTCP](p)

	p.send(&protocol.ClientConnectReadyTCP{})
	recvAs[*protocol.ServerConnectComplete](p)
	recvAs[*protocol.ServerEcho](p)
}

func TestStreamBadPasswordKeepsConnection(t *testing.T) {
	srv, store, clock := newTestServer(t)
	store.addAccount(testAppID, "alice", "secret")

	p, c := dialPipe(t, srv, clock, RoleAuth)
	p.handshake(testAppID)
	assert.Equal(t, StateAuthenticated, c.State())

	p.sendApp(&protocol.SessionBeginRequest{MessageID: "s1"})
	session := recvApp[*protocol.SessionBeginResponse](p)
	require.Equal(t, protocol.StatusSuccess, session.StatusCode)

	p.sendApp(&protocol.AccountLoginRequest{MessageID: "l1", Username: "alice", Password: "nope"})
	login := recvApp[*protocol.AccountLoginResponse](p)
	assert.Equal(t, "l1", login.MessageID)
	assert.Equal(t, protocol.StatusInvalidPassword, login.StatusCode)

	// Still open and answering
	p.send(&protocol.ClientEcho{Value: []byte{0xAB}})
	echo := recvAs[*protocol.ClientEcho](p)
	assert.Equal(t, []byte{0xAB}, echo.Value)
	assert.True(t, c.Alive())

	p.sendApp(&protocol.AccountLoginRequest{MessageID: "l2", Username: "alice", Password: "secret"})
	login = recvApp[*protocol.AccountLoginResponse](p)
	assert.Equal(t, protocol.StatusSuccess, login.StatusCode)
	assert.Equal(t, session.SessionKey, login.ConnectInfo.SessionKey)
}

func TestStreamPeerCloseReleasesConnection(t *testing.T) {
	srv, _, clock := newTestServer(t)
	p, c := dialPipe(t, srv, clock, RoleAuth)
	p.handshake(testAppID)

	p.conn.Close()
	deadline := time.Now().Add(3 * time.Second)
	for srv.Role(RoleAuth).Count() > 0 && time.Now().Before(deadline) {
		srv.Tick(clock.Now())
		time.Sleep(5 * time.Millisecond)
	}
	assert.Zero(t, srv.Role(RoleAuth).Count())
	assert.Equal(t, StateDisconnected, c.State())
	<-p.done
}

func TestStreamGarbageClosesConnection(t *testing.T) {
	srv, _, clock := newTestServer(t)
	p, c := dialPipe(t, srv, clock, RoleAuth)

	// A length above the frame limit
	_, err := p.conn.Write([]byte{byte(protocol.RTClientHello), 0xFF, 0xFF})
	require.NoError(t, err)

	deadline := time.Now().Add(3 * time.Second)
	for c.Alive() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.False(t, c.Alive())
	srv.Tick(clock.Now())
	assert.ErrorIs(t, c.closeErr, ErrMalformed)
}
