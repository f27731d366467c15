package server

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aeolun/medius/pkg/plugins"
	"github.com/aeolun/medius/pkg/protocol"
)

const testAppID int32 = 11184

// fakeClock is a settable time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// recordSink keeps every emitted event
type recordSink struct {
	mu     sync.Mutex
	events []plugins.Event
}

func (s *recordSink) Emit(_ context.Context, ev plugins.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordSink) types() []plugins.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]plugins.EventType, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

// recordTransport collects written frames
type recordTransport struct {
	mu       sync.Mutex
	frames   []*protocol.Frame
	closed   bool
	blocked  bool
	addr     net.Addr
	writeErr error
}

func newRecordTransport() *recordTransport {
	return &recordTransport{addr: &net.TCPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 50123}}
}

func (t *recordTransport) Write(frames []*protocol.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeErr != nil {
		return t.writeErr
	}
	t.frames = append(t.frames, frames...)
	return nil
}

func (t *recordTransport) Writable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed && !t.blocked
}

func (t *recordTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *recordTransport) RemoteAddr() net.Addr { return t.addr }
func (t *recordTransport) Kind() string         { return "test" }

func (t *recordTransport) setBlocked(b bool) {
	t.mu.Lock()
	t.blocked = b
	t.mu.Unlock()
}

func (t *recordTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// take returns and forgets the frames written so far
func (t *recordTransport) take() []*protocol.Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.frames
	t.frames = nil
	return out
}

// newTestServer builds a server with encryption off, an in-memory store
// and a fake clock. Listeners are never opened.
func newTestServer(t *testing.T, opts ...Option) (*Server, *memStore, *fakeClock) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.EncryptionEnabled = false
	cfg.AdminPort = 0
	cfg.InboundRate = 0
	apps := NewAppTable(DefaultTOMLConfig().Apps, cfg.Pre108CompleteApps)

	store := newMemStore()
	clock := newFakeClock()
	opts = append([]Option{WithAccountStore(store), WithClock(clock.Now)}, opts...)
	srv, err := NewServer(cfg, apps, opts...)
	require.NoError(t, err)
	return srv, store, clock
}

// testConn adds a connection to role that already completed its handshake
// for appID
func testConn(t *testing.T, srv *Server, role Role, appID int32) (*Conn, *recordTransport) {
	t.Helper()
	rs := srv.Role(role)
	tr := newRecordTransport()
	c := newConn(rs, srv.nextConnID(), tr, srv.now())
	rs.addConn(c)
	app, ok := srv.apps.Lookup(appID)
	require.True(t, ok, "app %d not configured", appID)
	c.setApp(app)
	c.setState(StateAuthenticated)
	return c, tr
}

// loggedIn binds a fresh identity logged in as name to c
func loggedIn(t *testing.T, srv *Server, c *Conn, accountID int32, name string) *Client {
	t.Helper()
	cl := srv.clients.Create(c.AppID())
	c.bindClient(cl)
	require.True(t, srv.clients.Login(cl, accountID, name, 0, srv.now()))
	return cl
}

// drain returns the application messages queued on c, unwrapped
func drain(c *Conn) []protocol.Message {
	var out []protocol.Message
	for len(c.outbox) > 0 {
		m := <-c.outbox
		if app, ok := m.(*protocol.ServerApp); ok {
			out = append(out, app.Message)
		}
	}
	return out
}

// drainRT returns every RT message queued on c
func drainRT(c *Conn) []protocol.RTMessage {
	var out []protocol.RTMessage
	for len(c.outbox) > 0 {
		out = append(out, <-c.outbox)
	}
	return out
}

// runPosted runs continuations posted to c until one arrives or the
// timeout passes
func runPosted(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case in := <-c.inbox:
		require.NotNil(t, in.fn, "expected a posted continuation")
		in.fn()
	case <-time.After(2 * time.Second):
		t.Fatal("no continuation posted")
	}
}

// only asserts msgs holds one message of type T and returns it
func only[T protocol.Message](t *testing.T, msgs []protocol.Message) T {
	t.Helper()
	require.Len(t, msgs, 1)
	m, ok := msgs[0].(T)
	require.True(t, ok, "got %T", msgs[0])
	return m
}
