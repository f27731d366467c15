package main

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aeolun/medius/pkg/cipher"
	"github.com/aeolun/medius/pkg/protocol"
)

var (
	errClosed  = errors.New("connection closed")
	errTimeout = errors.New("timeout")
)

// mediusConn is the client end of one RT connection
type mediusConn struct {
	conn   net.Conn
	dctx   atomic.Pointer[protocol.DecodeContext]
	cipher atomic.Pointer[cipher.Session]

	writeMu  sync.Mutex
	incoming chan protocol.RTMessage
	readErr  error
	done     chan struct{}
}

func dialMedius(addr string, timeout time.Duration) (*mediusConn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	c := &mediusConn{
		conn:     conn,
		incoming: make(chan protocol.RTMessage, 64),
		done:     make(chan struct{}),
	}
	c.dctx.Store(&protocol.DecodeContext{})
	c.cipher.Store(cipher.NewDisabledSession())
	go c.readLoop()
	return c, nil
}

func (c *mediusConn) readLoop() {
	defer close(c.done)
	defer close(c.incoming)

	var dec protocol.FrameDecoder
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			dec.Write(buf[:n])
			for {
				f, derr := dec.Next()
				if derr != nil {
					c.readErr = derr
					return
				}
				if f == nil {
					break
				}
				payload := f.Payload
				if f.Encrypted {
					if payload, derr = c.cipher.Load().Decrypt(f.Hash, payload); derr != nil {
						c.readErr = fmt.Errorf("decrypt %s: %w", f.ID, derr)
						return
					}
				}
				m, derr := protocol.DecodeRT(f.ID, payload, *c.dctx.Load())
				if derr != nil {
					c.readErr = derr
					return
				}
				c.incoming <- m
			}
		}
		if err != nil {
			c.readErr = err
			return
		}
	}
}

// send frames m, encrypting under the session key once there is one
func (c *mediusConn) send(m protocol.RTMessage) error {
	payload := protocol.EncodeRT(m, *c.dctx.Load())
	f := &protocol.Frame{ID: m.ID(), Payload: payload}
	if !m.SkipEncryption() {
		out, hash, ok, err := c.cipher.Load().Encrypt(cipher.ContextRCClientSession, payload)
		if err != nil {
			return err
		}
		if ok {
			f.Encrypted, f.Hash, f.Payload = true, hash, out
		}
	}
	b, err := protocol.AppendFrame(nil, f)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err = c.conn.Write(b)
	return err
}

func (c *mediusConn) sendApp(m protocol.Message) error {
	return c.send(&protocol.ClientAppToServer{Message: m})
}

// recv returns the next message, skipping server echoes
func (c *mediusConn) recv(timeout time.Duration) (protocol.RTMessage, error) {
	deadline := time.After(timeout)
	for {
		select {
		case m, ok := <-c.incoming:
			if !ok {
				if c.readErr != nil {
					return nil, fmt.Errorf("%w: %v", errClosed, c.readErr)
				}
				return nil, errClosed
			}
			if _, echo := m.(*protocol.ServerEcho); echo {
				continue
			}
			return m, nil
		case <-deadline:
			return nil, fmt.Errorf("%w after %s", errTimeout, timeout)
		}
	}
}

func recvApp[T protocol.Message](c *mediusConn, timeout time.Duration) (T, error) {
	var zero T
	m, err := c.recv(timeout)
	if err != nil {
		return zero, err
	}
	app, ok := m.(*protocol.ServerApp)
	if !ok {
		return zero, fmt.Errorf("expected SERVER_APP, got %s", m.ID())
	}
	v, ok := app.Message.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected reply %T", app.Message)
	}
	return v, nil
}

// handshake runs hello, the optional key exchange and the connect
// sequence for appID
func (c *mediusConn) handshake(appID int32, version int, creds protocol.ConnectCredentials, timeout time.Duration) error {
	if err := c.send(&protocol.ClientHello{}); err != nil {
		return err
	}
	m, err := c.recv(timeout)
	if err != nil {
		return fmt.Errorf("hello: %w", err)
	}
	hello, ok := m.(*protocol.ServerHello)
	if !ok {
		return fmt.Errorf("expected SERVER_HELLO, got %s", m.ID())
	}

	if !hello.EncryptionDisabled() {
		own, err := cipher.GenerateRSAKey(rand.Reader)
		if err != nil {
			return err
		}
		sess := cipher.NewSession(own)
		c.cipher.Store(sess)
		if err := c.send(&protocol.ClientCryptKeyPublic{PublicKey: own.Modulus()}); err != nil {
			return err
		}
		m, err := c.recv(timeout)
		if err != nil {
			return fmt.Errorf("key exchange: %w", err)
		}
		peer, ok := m.(*protocol.ServerCryptKeyPeer)
		if !ok {
			return fmt.Errorf("expected SERVER_CRYPTKEY_PEER, got %s", m.ID())
		}
		sess.SetSymmetric(cipher.ContextRCClientSession, peer.SessionKey)
	}

	if err := c.send(&protocol.ClientConnectTCP{AppID: appID, ConnectCredentials: creds}); err != nil {
		return err
	}
	c.dctx.Store(&protocol.DecodeContext{MediusVersion: version, AppID: appID})

	// Titles on the short path get COMPLETE right behind the accept, the
	// others wait for READY_TCP
	accepted, ready := false, false
	for {
		wait := timeout
		if accepted && !ready {
			wait = 100 * time.Millisecond
		}
		m, err := c.recv(wait)
		if errors.Is(err, errTimeout) && accepted && !ready {
			ready = true
			if err := c.send(&protocol.ClientConnectReadyTCP{}); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		switch v := m.(type) {
		case *protocol.ServerConnectRequire:
			err = c.send(&protocol.ClientConnectReadyRequire{})
		case *protocol.ServerConnectAcceptTCP:
			accepted = true
		case *protocol.ServerCryptKeyGame:
		case *protocol.ServerConnectComplete:
			return nil
		case *protocol.ServerConnectReject:
			return fmt.Errorf("connect rejected: reason %d", v.Reason)
		default:
			return fmt.Errorf("unexpected %s during connect", m.ID())
		}
		if err != nil {
			return err
		}
	}
}

func (c *mediusConn) Close() error {
	_ = c.send(&protocol.ClientDisconnect{})
	err := c.conn.Close()
	<-c.done
	return err
}
