package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aeolun/medius/pkg/cipher"
	"github.com/aeolun/medius/pkg/protocol"
)

// inbound is one entry of a connection's inbox: a frame read from the
// transport, or a continuation posted by an asynchronous collaborator call
type inbound struct {
	frame *protocol.Frame
	fn    func()
}

// Conn is one transport connection of a role. Its inbox and outbox are the
// only state shared with the I/O goroutines; everything else is touched by
// the dispatcher inside the connection's own processing turn.
type Conn struct {
	ID          uint32
	ConnectedAt time.Time

	role    *RoleServer
	tr      transport
	remote  net.Addr
	log     zerolog.Logger
	cipher  *cipher.Session
	limiter *rate.Limiter

	state  atomic.Int32
	client atomic.Pointer[Client]

	mu      sync.RWMutex
	dctx    protocol.DecodeContext
	app     AppSettings
	encrypt bool

	inbox  chan inbound
	outbox chan protocol.RTMessage

	processing  atomic.Bool
	closed      atomic.Bool
	closeOnce   sync.Once
	closeErr    error
	lastInbound atomic.Int64 // unix nanoseconds

	// datagram peers have no read deadline and expire on inbound silence
	datagram bool

	// touched only inside the processing turn
	finished  bool
	lastFlush time.Time
}

func newConn(role *RoleServer, id uint32, tr transport, now time.Time) *Conn {
	srv := role.srv
	c := &Conn{
		ID:          id,
		ConnectedAt: now,
		role:        role,
		tr:          tr,
		remote:      tr.RemoteAddr(),
		inbox:       make(chan inbound, srv.cfg.MaxInboundQueue),
		outbox:      make(chan protocol.RTMessage, srv.cfg.MaxOutboundQueue),
		lastFlush:   now,
	}
	if srv.cfg.EncryptionEnabled && srv.rsa != nil {
		c.cipher = cipher.NewSession(srv.rsa)
	} else {
		c.cipher = cipher.NewDisabledSession()
	}
	c.encrypt = !c.cipher.Disabled()
	c.lastInbound.Store(now.UnixNano())
	_, c.datagram = tr.(*datagramTransport)
	if srv.cfg.InboundRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(srv.cfg.InboundRate), srv.cfg.InboundBurst)
	}
	c.log = role.log.With().
		Uint32("conn", id).
		Str("transport", tr.Kind()).
		Str("remote", hostOf(c.remote)).
		Logger()
	return c
}

func (c *Conn) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Conn) setState(s ConnState) {
	c.state.Store(int32(s))
}

// Alive reports whether the connection has not been closed
func (c *Conn) Alive() bool {
	return !c.closed.Load()
}

// Client returns the identity bound to the connection, nil if none
func (c *Conn) Client() *Client {
	return c.client.Load()
}

// bindClient makes cl the connection's identity
func (c *Conn) bindClient(cl *Client) {
	cl.bind(c)
	c.client.Store(cl)
	c.log = c.log.With().Str("session", cl.SessionKey).Logger()
}

func (c *Conn) DecodeContext() protocol.DecodeContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dctx
}

// AppID is the title negotiated at connect, 0 before it
func (c *Conn) AppID() int32 {
	return c.DecodeContext().AppID
}

// App returns the settings of the negotiated title
func (c *Conn) App() AppSettings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.app
}

func (c *Conn) setApp(app AppSettings) {
	c.mu.Lock()
	c.app = app
	c.dctx = protocol.DecodeContext{MediusVersion: app.MediusVersion, AppID: app.AppID}
	c.encrypt = app.EnableEncryption && !c.cipher.Disabled()
	c.mu.Unlock()
	c.log = c.log.With().Int32("app", app.AppID).Logger()
}

func (c *Conn) encryptOutbound() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.encrypt
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.remote
}

// enqueue queues a frame read from the transport. It runs on the reader
// goroutine.
func (c *Conn) enqueue(f *protocol.Frame) {
	if c.closed.Load() {
		return
	}
	if c.limiter != nil && !c.limiter.Allow() {
		c.Close(fmt.Errorf("%w: inbound rate exceeded", ErrBacklog))
		return
	}
	c.lastInbound.Store(c.role.srv.now().UnixNano())
	select {
	case c.inbox <- inbound{frame: f}:
	default:
		c.Close(fmt.Errorf("%w: inbound queue full", ErrBacklog))
	}
}

// post schedules fn to run inside the connection's next processing turn.
// It is dropped if the connection closes first.
func (c *Conn) post(fn func()) {
	if c.closed.Load() {
		return
	}
	select {
	case c.inbox <- inbound{fn: fn}:
	default:
		c.Close(fmt.Errorf("%w: inbound queue full", ErrBacklog))
	}
}

// Send queues m for the next flush. It is safe from any goroutine.
func (c *Conn) Send(m protocol.RTMessage) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	select {
	case c.outbox <- m:
		return nil
	default:
		err := fmt.Errorf("%w: outbound queue full", ErrBacklog)
		c.Close(err)
		return err
	}
}

// SendApp wraps an application message in SERVER_APP and queues it
func (c *Conn) SendApp(msg protocol.Message) error {
	return c.Send(&protocol.ServerApp{Message: msg})
}

// Close marks the connection closed. The transport is released in the
// connection's next processing turn, after queued replies are flushed.
func (c *Conn) Close(reason error) {
	c.closeOnce.Do(func() {
		c.closeErr = reason
		c.closed.Store(true)
	})
}

// process is one processing turn: drain the inbox, then flush the outbox.
// Turns of one connection never overlap.
func (c *Conn) process(now time.Time) {
	if !c.processing.CompareAndSwap(false, true) {
		return
	}
	defer c.processing.Store(false)
	if c.finished {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.log.Error().
				Interface("panic", r).
				Stringer("state", c.State()).
				Msg("invariant violation in message handler")
			c.Close(fmt.Errorf("%w: %v", ErrInvariant, r))
			c.finish(now)
		}
	}()

	if c.datagram {
		if t := c.role.srv.cfg.ReadTimeout; t > 0 && now.Sub(time.Unix(0, c.lastInbound.Load())) > t {
			c.Close(fmt.Errorf("%w: nothing received for %s", errPeerIdle, t))
		}
	}

	for n := len(c.inbox); n > 0 && !c.closed.Load(); n-- {
		in := <-c.inbox
		if err := c.handle(in, now); err != nil {
			c.report(err)
		}
	}

	if !c.closed.Load() {
		c.flush(now)
	}
	if c.closed.Load() {
		c.finish(now)
	}
}

// report applies the error taxonomy to a handler error
func (c *Conn) report(err error) {
	switch {
	case Fatal(err):
		if errors.Is(err, ErrMalformed) {
			c.role.srv.metrics.RecordDecodeError(c.role.Role)
		}
		c.log.Warn().Err(err).Stringer("state", c.State()).Msg("closing connection")
		c.Close(err)
	case errors.Is(err, ErrNoSession), errors.Is(err, ErrInvariant):
		c.log.Error().Err(err).Stringer("state", c.State()).Msg("invariant violation")
	default:
		c.log.Warn().Err(err).Msg("message failed")
	}
}

func (c *Conn) handle(in inbound, now time.Time) error {
	if in.fn != nil {
		in.fn()
		return nil
	}

	f := in.frame
	c.role.srv.metrics.RecordFrameReceived(c.role.Role, uint8(f.ID))
	payload := f.Payload
	if f.Encrypted {
		plain, err := c.cipher.Decrypt(f.Hash, payload)
		if err != nil {
			return fmt.Errorf("decrypt %s: %w", f.ID, err)
		}
		payload = plain
	}

	msg, err := protocol.DecodeRT(f.ID, payload, c.DecodeContext())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return c.handleRT(msg, now)
}

// flush hands the queued messages to the transport if it can take them. A
// transport that stays unwritable past the write-idle timeout closes the
// connection.
func (c *Conn) flush(now time.Time) {
	if len(c.outbox) == 0 {
		c.lastFlush = now
		return
	}
	if !c.tr.Writable() {
		c.role.srv.metrics.RecordDeferral(c.role.Role)
		if idle := c.role.srv.cfg.WriteIdleTimeout; idle > 0 && now.Sub(c.lastFlush) > idle {
			c.role.srv.metrics.RecordWriteIdleClose(c.role.Role)
			c.Close(fmt.Errorf("%w: write idle for %s", ErrBacklog, now.Sub(c.lastFlush)))
		}
		return
	}
	if err := c.writeOut(); err != nil {
		c.report(err)
		c.Close(err)
		return
	}
	c.lastFlush = now
}

// writeOut encrypts and frames everything queued and writes it as one batch
func (c *Conn) writeOut() error {
	n := len(c.outbox)
	if n == 0 {
		return nil
	}
	dctx := c.DecodeContext()
	encrypt := c.encryptOutbound()
	frames := make([]*protocol.Frame, 0, n)
	for ; n > 0; n-- {
		m := <-c.outbox
		f, err := c.frame(m, dctx, encrypt)
		if err != nil {
			return err
		}
		frames = append(frames, f)
		c.role.srv.metrics.RecordFrameSent(c.role.Role, uint8(m.ID()))
	}
	return c.tr.Write(frames)
}

func (c *Conn) frame(m protocol.RTMessage, dctx protocol.DecodeContext, encrypt bool) (*protocol.Frame, error) {
	payload := protocol.EncodeRT(m, dctx)
	f := &protocol.Frame{ID: m.ID(), Payload: payload}
	if m.SkipEncryption() || c.cipher.Disabled() {
		return f, nil
	}

	ctx := cipher.ContextRCClientSession
	if m.ID() == protocol.RTServerCryptKeyPeer {
		ctx = cipher.ContextRSAAuth
	} else if !encrypt {
		return f, nil
	}
	out, hash, ok, err := c.cipher.Encrypt(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("encrypt %s: %w", m.ID(), err)
	}
	if ok {
		f.Encrypted, f.Hash, f.Payload = true, hash, out
	}
	return f, nil
}

// finish releases the connection: last replies are written, queues are
// dropped and the identity loses its connection reference
func (c *Conn) finish(now time.Time) {
	if c.finished {
		return
	}
	c.finished = true
	c.closed.Store(true)

	if c.tr.Writable() {
		if err := c.writeOut(); err != nil {
			c.log.Debug().Err(err).Msg("final flush failed")
		}
	}
	c.tr.Close()

	for len(c.inbox) > 0 {
		<-c.inbox
	}
	for len(c.outbox) > 0 {
		<-c.outbox
	}

	c.setState(StateDisconnected)
	c.role.handler.disconnected(c)
	if cl := c.client.Load(); cl != nil {
		cl.release(c, now)
	}
	c.role.removeConn(c)

	ev := c.log.Info()
	if c.closeErr != nil && !isClosedErr(c.closeErr) {
		ev = c.log.Warn().Err(c.closeErr)
	}
	ev.Dur("lifetime", now.Sub(c.ConnectedAt)).Msg("connection closed")
}

// String identifies the connection in logs
func (c *Conn) String() string {
	return fmt.Sprintf("%s#%d", c.role.Role, c.ID)
}

// isClosedErr reports whether err is an ordinary end of connection
func isClosedErr(err error) bool {
	return errors.Is(err, ErrConnectionClosed) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, errPeerDisconnect) || errors.Is(err, errPeerIdle) || isEOF(err)
}
