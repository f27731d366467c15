package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aeolun/medius/pkg/protocol"
)

// roleHandler serves the application messages of one role
type roleHandler interface {
	handleApp(c *Conn, msg protocol.Message) error
	// connected runs once the handshake completes
	connected(c *Conn)
	// disconnected runs when the connection is released
	disconnected(c *Conn)
}

// RoleServer owns the listeners and connections of one role
type RoleServer struct {
	Role    Role
	srv     *Server
	handler roleHandler
	log     zerolog.Logger
	section RoleSection

	mu       sync.RWMutex
	conns    map[uint32]*Conn
	udpPeers map[string]*Conn

	listener   net.Listener
	packetConn net.PacketConn
	wg         sync.WaitGroup
}

func newRoleServer(srv *Server, role Role, handler roleHandler) *RoleServer {
	return &RoleServer{
		Role:     role,
		srv:      srv,
		handler:  handler,
		log:      srv.log.With().Str("component", string(role)).Logger(),
		section:  srv.cfg.Listeners[role],
		conns:    make(map[uint32]*Conn),
		udpPeers: make(map[string]*Conn),
	}
}

// Start opens the role's TCP listener and, when configured, its UDP socket
func (r *RoleServer) Start() error {
	lc := net.ListenConfig{Control: controlSocket}
	addr := fmt.Sprintf(":%d", r.section.Port)
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	r.listener = ln
	logListenBacklog(r.log, ln.Addr().String())

	if r.section.UDPPort > 0 {
		uaddr := fmt.Sprintf(":%d", r.section.UDPPort)
		pc, err := lc.ListenPacket(context.Background(), "udp", uaddr)
		if err != nil {
			ln.Close()
			return fmt.Errorf("failed to listen on udp %s: %w", uaddr, err)
		}
		r.packetConn = pc
		r.log.Info().Str("addr", pc.LocalAddr().String()).Msg("UDP listening")
		r.wg.Add(1)
		go r.udpLoop()
	}

	r.wg.Add(1)
	go r.acceptLoop()
	return nil
}

// Addr returns the TCP listen address, nil before Start
func (r *RoleServer) Addr() net.Addr {
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Stop closes the listeners and every connection, then waits for the I/O
// goroutines. Connections are released by the next processing turn.
func (r *RoleServer) Stop() {
	if r.listener != nil {
		r.listener.Close()
	}
	if r.packetConn != nil {
		r.packetConn.Close()
	}
	for _, c := range r.Conns() {
		c.Close(ErrConnectionClosed)
		if st, ok := c.tr.(*streamTransport); ok {
			st.abort()
		}
	}
	r.wg.Wait()
}

func (r *RoleServer) acceptLoop() {
	defer r.wg.Done()

	for {
		nc, err := r.listener.Accept()
		if err != nil {
			select {
			case <-r.srv.shutdown:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			r.log.Warn().Err(err).Msg("accept failed")
			continue
		}

		// Disable Nagle's algorithm for immediate sends
		if tcpConn, ok := nc.(*net.TCPConn); ok {
			tcpConn.SetNoDelay(true)
		}
		r.ServeConn(nc, "tcp")
	}
}

// ServeConn adopts an accepted stream connection. kind names the transport
// in logs.
func (r *RoleServer) ServeConn(nc net.Conn, kind string) *Conn {
	var c *Conn
	st := newStreamTransport(nc, kind, r.srv.cfg.WriteIdleTimeout, func(err error) {
		c.Close(fmt.Errorf("write: %w", err))
	})
	c = newConn(r, r.srv.nextConnID(), st, r.srv.now())
	r.addConn(c)
	c.log.Debug().Msg("connection accepted")

	r.wg.Add(1)
	go r.readLoop(c, nc)
	return c
}

// readLoop slices the stream into frames and queues them on c
func (r *RoleServer) readLoop(c *Conn, nc net.Conn) {
	defer r.wg.Done()

	var dec protocol.FrameDecoder
	buf := make([]byte, 4096)
	for c.Alive() {
		if t := r.srv.cfg.ReadTimeout; t > 0 {
			_ = nc.SetReadDeadline(time.Now().Add(t))
		}
		n, err := nc.Read(buf)
		if n > 0 {
			dec.Write(buf[:n])
			for {
				f, derr := dec.Next()
				if derr != nil {
					r.srv.metrics.RecordDecodeError(r.Role)
					c.Close(fmt.Errorf("%w: %w", ErrMalformed, derr))
					return
				}
				if f == nil {
					break
				}
				c.enqueue(f)
			}
		}
		if err != nil {
			c.Close(err)
			return
		}
	}
}

func (r *RoleServer) udpLoop() {
	defer r.wg.Done()

	buf := make([]byte, 65535)
	for {
		n, addr, err := r.packetConn.ReadFrom(buf)
		if err != nil {
			select {
			case <-r.srv.shutdown:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			r.log.Warn().Err(err).Msg("UDP read failed")
			continue
		}

		frames, err := protocol.DecodeFrames(append([]byte(nil), buf[:n]...))
		c := r.udpPeer(addr)
		if err != nil {
			r.srv.metrics.RecordDecodeError(r.Role)
			c.Close(fmt.Errorf("%w: %w", ErrMalformed, err))
			continue
		}
		for _, f := range frames {
			c.enqueue(f)
		}
	}
}

// udpPeer returns the connection of the datagram peer at addr, creating it
// on first contact
func (r *RoleServer) udpPeer(addr net.Addr) *Conn {
	key := addr.String()
	r.mu.RLock()
	c, ok := r.udpPeers[key]
	r.mu.RUnlock()
	if ok && c.Alive() {
		return c
	}

	tr := &datagramTransport{
		pc:     r.packetConn,
		addr:   addr,
		maxLen: r.srv.cfg.MaxDatagram,
	}
	c = newConn(r, r.srv.nextConnID(), tr, r.srv.now())
	tr.onClose = func() {
		r.mu.Lock()
		if r.udpPeers[key] == c {
			delete(r.udpPeers, key)
		}
		r.mu.Unlock()
	}

	r.mu.Lock()
	r.udpPeers[key] = c
	r.mu.Unlock()
	r.addConn(c)
	c.log.Debug().Msg("datagram peer")
	return c
}

func (r *RoleServer) addConn(c *Conn) {
	r.mu.Lock()
	r.conns[c.ID] = c
	r.mu.Unlock()
}

func (r *RoleServer) removeConn(c *Conn) {
	r.mu.Lock()
	delete(r.conns, c.ID)
	r.mu.Unlock()
}

// Conns returns a snapshot of the role's connections
func (r *RoleServer) Conns() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *RoleServer) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
